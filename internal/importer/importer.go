package importer

import (
	"context"
	"fmt"

	"discount-rules/internal/model"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// RuleCreator creates a rule from its definition.
type RuleCreator interface {
	Create(ctx context.Context, in model.RuleInput) (*model.DiscountRule, error)
}

// Importer creates every rule in an import file, one independent create per line.
type Importer struct {
	loader      Loader
	rules       RuleCreator
	concurrency int
	logger      zerolog.Logger
}

// New creates an Importer. concurrency bounds the number of in-flight creates.
func New(loader Loader, rules RuleCreator, concurrency int, logger zerolog.Logger) *Importer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Importer{
		loader:      loader,
		rules:       rules,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "importer").Logger(),
	}
}

// Import loads name and creates each rule in it. The returned report lists
// every line in file order; a failing line never stops the others.
// An error is returned only when the file itself cannot be read.
func (im *Importer) Import(ctx context.Context, name string) (model.BulkReport, error) {
	records, err := im.loader.Load(ctx, name)
	if err != nil {
		return model.BulkReport{}, err
	}

	errs := make([]error, len(records))

	p := pool.New().WithMaxGoroutines(im.concurrency)
	for i, rec := range records {
		if rec.Err != nil {
			errs[i] = rec.Err
			continue
		}
		p.Go(func() {
			_, errs[i] = im.rules.Create(ctx, rec.Input)
		})
	}
	p.Wait()

	report := model.BulkReport{
		Succeeded: make([]string, 0, len(records)),
		Failed:    make([]model.BulkFailure, 0),
	}
	for i, rec := range records {
		item := itemLabel(rec)
		if errs[i] != nil {
			report.Failed = append(report.Failed, model.BulkFailure{Item: item, Error: errs[i].Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, item)
	}

	im.logger.Info().
		Str("file", name).
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("rule import finished")

	return report, nil
}

func itemLabel(rec Record) string {
	if rec.Err != nil || rec.Input.Code == "" {
		return fmt.Sprintf("line %d", rec.Line)
	}
	return fmt.Sprintf("line %d (%s)", rec.Line, rec.Input.Code)
}
