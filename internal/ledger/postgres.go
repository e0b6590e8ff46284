package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"discount-rules/internal/metrics"
	"discount-rules/internal/model"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// errVersionConflict means another writer changed the row between our read and write.
var errVersionConflict = errors.New("usage record changed concurrently")

const pgForeignKeyViolation = "23503"

// PostgresConfig tunes the optimistic retry loop.
type PostgresConfig struct {
	Mode Mode
	// MaxRetries bounds how many times a conflicting write is re-attempted.
	MaxRetries uint
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// DefaultPostgresConfig returns the default retry settings.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Mode:       ModeFixedWindow,
		MaxRetries: 10,
		RetryDelay: 5 * time.Millisecond,
	}
}

// postgresLedger makes each consume a read, a pure decision and a conditional
// write guarded by the row version. A lost race re-reads and decides again.
//
// Rows are never deleted by resets. A reset clears the row and bumps its
// version instead, so versions only grow and a write decided before the reset
// can never match the row again.
type postgresLedger struct {
	pool    *pgxpool.Pool
	config  PostgresConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewPostgresLedger creates a ledger stored in the customer_rule_usage table.
func NewPostgresLedger(pool *pgxpool.Pool, config PostgresConfig, m *metrics.Metrics, logger zerolog.Logger) Ledger {
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultPostgresConfig().MaxRetries
	}
	if config.Mode == "" {
		config.Mode = ModeFixedWindow
	}
	return &postgresLedger{
		pool:    pool,
		config:  config,
		metrics: m,
		logger:  logger.With().Str("component", "ledger").Str("backend", "postgres").Logger(),
	}
}

func (l *postgresLedger) TryConsume(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error) {
	key := Key{CustomerID: customerID, RuleID: ruleID}

	var result model.ConsumeResult
	var out *model.CustomerRuleUsage

	err := retry.Do(
		func() error {
			row, err := l.load(ctx, key)
			if err != nil {
				return err
			}

			var next *model.CustomerRuleUsage
			result, next = Decide(policy, key, row.rec, now, l.config.Mode)
			if !result.Allowed() {
				out = next
				return nil
			}

			if err := l.store(ctx, row, next); err != nil {
				return err
			}
			out = next
			return nil
		},
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errVersionConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			l.metrics.LedgerConflict()
			l.logger.Debug().
				Uint("attempt", n+1).
				Str("customer_id", customerID).
				Str("rule_id", ruleID.String()).
				Msg("usage write conflict, retrying")
		}),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(l.config.RetryDelay),
		retry.Attempts(l.config.MaxRetries),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, model.ErrRuleNotFound) {
			return "", nil, err
		}
		l.logger.Error().
			Err(err).
			Str("customer_id", customerID).
			Str("rule_id", ruleID.String()).
			Msg("failed to consume usage")
		return "", nil, model.NewInfrastructureError("consume usage", err)
	}

	return result, out, nil
}

func (l *postgresLedger) Peek(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error) {
	key := Key{CustomerID: customerID, RuleID: ruleID}

	row, err := l.load(ctx, key)
	if err != nil {
		return "", nil, model.NewInfrastructureError("peek usage", err)
	}

	cur := row.rec
	result, _ := Decide(policy, key, cur, now, l.config.Mode)
	if cur == nil {
		cur = Fresh(key, policy)
	}
	return result, cur, nil
}

func (l *postgresLedger) Get(ctx context.Context, customerID string, ruleID uuid.UUID) (*model.CustomerRuleUsage, error) {
	row, err := l.load(ctx, Key{CustomerID: customerID, RuleID: ruleID})
	if err != nil {
		return nil, model.NewInfrastructureError("get usage", err)
	}
	return row.rec, nil
}

func (l *postgresLedger) Reset(ctx context.Context, customerID string, ruleID uuid.UUID) error {
	query := `UPDATE customer_rule_usage SET ` + clearColumns + `
		WHERE customer_id = $1 AND rule_id = $2 AND last_used_at IS NOT NULL`

	if _, err := l.pool.Exec(ctx, query, customerID, ruleID); err != nil {
		l.logger.Error().
			Err(err).
			Str("customer_id", customerID).
			Str("rule_id", ruleID.String()).
			Msg("failed to reset usage")
		return model.NewInfrastructureError("reset usage", err)
	}
	return nil
}

func (l *postgresLedger) ResetCustomer(ctx context.Context, customerID string) error {
	query := `UPDATE customer_rule_usage SET ` + clearColumns + `
		WHERE customer_id = $1 AND last_used_at IS NOT NULL`

	tag, err := l.pool.Exec(ctx, query, customerID)
	if err != nil {
		l.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to reset customer usage")
		return model.NewInfrastructureError("reset customer usage", err)
	}

	l.logger.Debug().
		Str("customer_id", customerID).
		Int64("records", tag.RowsAffected()).
		Msg("customer usage reset")
	return nil
}

func (l *postgresLedger) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	query := `UPDATE customer_rule_usage SET ` + clearColumns + `
		WHERE rule_id = $1 AND last_used_at IS NOT NULL`

	if _, err := l.pool.Exec(ctx, query, ruleID); err != nil {
		l.logger.Error().Err(err).Str("rule_id", ruleID.String()).Msg("failed to delete rule usage")
		return model.NewInfrastructureError("delete rule usage", err)
	}
	return nil
}

// clearColumns turns a row back into "no history" while moving its version forward.
const clearColumns = `remaining_uses = 0, last_used_at = NULL, window_started_at = NULL,
		version = version + 1, updated_at = NOW()`

// usageRow is what load found for a key. Every consume stamps last_used_at,
// so a row without it has been reset and reads as no record.
type usageRow struct {
	rec     *model.CustomerRuleUsage // nil when there is no row or it was reset
	version int64                    // 0 when there is no row
}

// load returns the stored row for key.
func (l *postgresLedger) load(ctx context.Context, key Key) (usageRow, error) {
	query := `
		SELECT remaining_uses, last_used_at, window_started_at, version, updated_at
		FROM customer_rule_usage
		WHERE customer_id = $1 AND rule_id = $2
	`

	rec := model.CustomerRuleUsage{CustomerID: key.CustomerID, RuleID: key.RuleID}
	err := l.pool.QueryRow(ctx, query, key.CustomerID, key.RuleID).Scan(
		&rec.RemainingUses,
		&rec.LastUsedAt,
		&rec.WindowStartedAt,
		&rec.Version,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return usageRow{}, nil
		}
		return usageRow{}, fmt.Errorf("failed to query usage: %w", err)
	}

	if rec.LastUsedAt == nil {
		return usageRow{version: rec.Version}, nil
	}
	return usageRow{rec: &rec, version: rec.Version}, nil
}

// store writes next if the row is still at the loaded version, or still absent
// when load found none.
func (l *postgresLedger) store(ctx context.Context, row usageRow, next *model.CustomerRuleUsage) error {
	var (
		tag pgconn.CommandTag
		err error
	)

	if row.version == 0 {
		query := `
			INSERT INTO customer_rule_usage
				(customer_id, rule_id, remaining_uses, last_used_at, window_started_at, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, $6)
			ON CONFLICT (customer_id, rule_id) DO NOTHING
		`
		tag, err = l.pool.Exec(ctx, query,
			next.CustomerID, next.RuleID, next.RemainingUses, next.LastUsedAt, next.WindowStartedAt, next.UpdatedAt)
		next.Version = 1
	} else {
		query := `
			UPDATE customer_rule_usage
			SET remaining_uses = $3, last_used_at = $4, window_started_at = $5,
				version = version + 1, updated_at = $6
			WHERE customer_id = $1 AND rule_id = $2 AND version = $7
		`
		tag, err = l.pool.Exec(ctx, query,
			next.CustomerID, next.RuleID, next.RemainingUses, next.LastUsedAt, next.WindowStartedAt, next.UpdatedAt, row.version)
		next.Version = row.version + 1
	}

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return model.ErrRuleNotFound
		}
		return fmt.Errorf("failed to write usage: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errVersionConflict
	}
	return nil
}
