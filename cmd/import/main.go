package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"discount-rules/internal/config"
	"discount-rules/internal/database"
	"discount-rules/internal/discount"
	"discount-rules/internal/importer"
	"discount-rules/internal/ledger"
	"discount-rules/internal/model"
	"discount-rules/internal/repository"
	"discount-rules/internal/service"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	sourceFile = "file"
	sourceS3   = "s3"
	sourceAuto = "auto"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "discount-import",
		Short:        "Bulk import and schema tooling for discount rules",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		rulesCommand(),
		migrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rulesCommand() *cobra.Command {
	var (
		source      string
		concurrency int
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "rules <file>",
		Short: "Create every rule in a gzipped JSON-lines file",
		Long: "Reads one rule definition per line and creates each independently.\n" +
			"The per-line report is printed as JSON; a failing line never stops the others.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := importRules(ctx, args[0], source, concurrency)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			if failOnError && len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d rules failed to import", len(report.Failed), len(report.Failed)+len(report.Succeeded))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", sourceAuto, "where to read the file from: file, s3 or auto (s3 with local fallback)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent creates (defaults to BULK_CONCURRENCY)")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when any line fails")

	return cmd
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the discount rule and usage tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			pool, err := database.NewPool(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer pool.Close()

			if err := database.EnsureSchema(cmd.Context(), pool); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}

			logger.Info().Msg("schema applied")
			return nil
		},
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, config.NewLogger(cfg.Logger).With().Str("command", "import").Logger(), nil
}

func importRules(ctx context.Context, name, source string, concurrency int) (report model.BulkReport, err error) {
	cfg, logger, err := setup()
	if err != nil {
		return report, err
	}
	if concurrency <= 0 {
		concurrency = cfg.Bulk.Concurrency
	}

	loader, err := newLoader(ctx, cfg.S3, source, logger)
	if err != nil {
		return report, err
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return report, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return report, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	mode, err := ledger.ParseMode(cfg.Ledger.CooldownMode)
	if err != nil {
		return report, fmt.Errorf("invalid ledger cooldown mode: %w", err)
	}
	usage := ledger.NewPostgresLedger(pool, ledger.PostgresConfig{
		Mode:       mode,
		MaxRetries: uint(cfg.Ledger.MaxRetries),
		RetryDelay: cfg.Ledger.RetryDelay(),
	}, nil, logger)

	rules := service.NewRuleService(repository.NewRuleRepository(pool, logger), usage, discount.NewRuleValidator(), concurrency, logger)

	report, err = importer.New(loader, rules, concurrency, logger).Import(ctx, name)
	if err != nil {
		return report, fmt.Errorf("failed to import %s: %w", name, err)
	}

	logger.Info().
		Str("file", name).
		Int("created", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("import finished")

	return report, nil
}

func newLoader(ctx context.Context, cfg config.S3Config, source string, logger zerolog.Logger) (importer.Loader, error) {
	fileLoader := importer.NewFileLoader(logger)

	switch source {
	case sourceFile:
		return fileLoader, nil
	case sourceS3, sourceAuto:
	default:
		return nil, fmt.Errorf("unknown source %q: want file, s3 or auto", source)
	}

	if !cfg.Enabled || cfg.Bucket == "" {
		if source == sourceS3 {
			return nil, fmt.Errorf("source s3 requires S3_ENABLED=true and S3_BUCKET")
		}
		logger.Info().Msg("using local file system for rule files (S3 disabled)")
		return fileLoader, nil
	}

	s3Loader, err := importer.NewS3Loader(ctx, cfg.Bucket, cfg.Region, logger)
	if err != nil {
		if source == sourceS3 {
			return nil, fmt.Errorf("failed to initialise S3 loader: %w", err)
		}
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 loader, falling back to local file system only")
		return fileLoader, nil
	}

	if source == sourceS3 {
		return importer.NewFallbackLoader(s3Loader, nil, cfg.Prefix, logger), nil
	}
	return importer.NewFallbackLoader(s3Loader, fileLoader, cfg.Prefix, logger), nil
}
