package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"discount-rules/internal/discount"
	"discount-rules/internal/ledger"
	"discount-rules/internal/model"
	"discount-rules/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// DefaultBulkConcurrency bounds concurrent deletes when none is configured.
const DefaultBulkConcurrency = 8

// ruleService implements RuleService.
type ruleService struct {
	ruleRepo    repository.RuleRepository
	ledger      ledger.Ledger
	validator   *discount.RuleValidator
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewRuleService creates a new rule service.
func NewRuleService(
	ruleRepo repository.RuleRepository,
	usage ledger.Ledger,
	validator *discount.RuleValidator,
	concurrency int,
	logger zerolog.Logger,
) RuleService {
	if concurrency < 1 {
		concurrency = DefaultBulkConcurrency
	}
	return &ruleService{
		ruleRepo:    ruleRepo,
		ledger:      usage,
		validator:   validator,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.With().Str("service", "rule").Logger(),
	}
}

// Create validates the input and stores it as a new rule.
func (s *ruleService) Create(ctx context.Context, in model.RuleInput) (*model.DiscountRule, error) {
	rule, err := s.validator.Validate(in)
	if err != nil {
		s.logger.Debug().Err(err).Str("code", in.Code).Msg("rule rejected")
		return nil, err
	}

	now := s.now().UTC()
	rule.ID = uuid.New()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.ruleRepo.Create(ctx, &rule); err != nil {
		return nil, s.storageError("create", err)
	}

	s.logger.Info().
		Str("rule_id", rule.ID.String()).
		Str("code", rule.Code).
		Str("policy", string(rule.Policy.Kind())).
		Msg("rule created")

	return &rule, nil
}

// Update replaces every editable field of an existing rule.
func (s *ruleService) Update(ctx context.Context, id uuid.UUID, in model.RuleInput) (*model.DiscountRule, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule, err := s.validator.Validate(in)
	if err != nil {
		s.logger.Debug().Err(err).Str("rule_id", id.String()).Msg("rule update rejected")
		return nil, err
	}

	return s.replace(ctx, existing, rule)
}

// Get retrieves a single rule by ID.
func (s *ruleService) Get(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("rule_id", id.String()).Msg("failed to get rule by ID")
		return nil, model.NewInfrastructureError("get rule", err)
	}

	if rule == nil {
		s.logger.Debug().Str("rule_id", id.String()).Msg("rule not found")
		return nil, model.ErrRuleNotFound
	}

	return rule, nil
}

// List retrieves rules newest first with pagination.
func (s *ruleService) List(ctx context.Context, limit, offset int, activeOnly bool) ([]model.DiscountRule, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	filter := repository.ListFilter{Limit: limit, Offset: offset, ActiveOnly: activeOnly}
	rules, err := s.ruleRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to list rules")
		return nil, model.NewInfrastructureError("list rules", err)
	}

	s.logger.Debug().
		Int("count", len(rules)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved rules")

	return rules, nil
}

// Delete removes a rule together with its usage records.
func (s *ruleService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.ruleRepo.Delete(ctx, id); err != nil {
		return s.storageError("delete", err)
	}

	if err := s.ledger.DeleteRule(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("rule_id", id.String()).Msg("failed to delete usage records")
		return fmt.Errorf("rule deleted but usage records remain: %w", err)
	}

	s.logger.Info().Str("rule_id", id.String()).Msg("rule deleted")

	return nil
}

// Deactivate soft-deletes a rule by clearing its active flag.
func (s *ruleService) Deactivate(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !existing.IsActive {
		return existing, nil
	}

	rule := existing.Clone()
	rule.IsActive = false

	return s.replace(ctx, existing, rule)
}

// Copy duplicates a rule under a new ID and code. Usage history is not copied.
func (s *ruleService) Copy(ctx context.Context, id uuid.UUID, newCode *string) (*model.DiscountRule, error) {
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in := source.Input()
	if newCode != nil {
		in.Code = *newCode
	} else {
		in.Code = copyCode(source.Code)
	}

	rule, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("source_id", source.ID.String()).
		Str("rule_id", rule.ID.String()).
		Str("code", rule.Code).
		Msg("rule copied")

	return rule, nil
}

// BulkDelete deletes each ID independently and reports the outcome per ID.
// Both lists keep the input order.
func (s *ruleService) BulkDelete(ctx context.Context, ids []string) model.BulkReport {
	errs := make([]error, len(ids))

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for i, raw := range ids {
		p.Go(func() {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				errs[i] = model.ErrInvalidRuleID
				return
			}
			errs[i] = s.Delete(ctx, id)
		})
	}
	p.Wait()

	report := model.BulkReport{
		Succeeded: make([]string, 0, len(ids)),
		Failed:    make([]model.BulkFailure, 0),
	}
	for i, raw := range ids {
		if errs[i] != nil {
			report.Failed = append(report.Failed, model.BulkFailure{Item: raw, Error: errs[i].Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, raw)
	}

	s.logger.Info().
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("bulk delete finished")

	return report
}

// replace writes rule over existing, keeping its identity and creation time.
func (s *ruleService) replace(ctx context.Context, existing *model.DiscountRule, rule model.DiscountRule) (*model.DiscountRule, error) {
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = s.now().UTC()

	if err := s.ruleRepo.Update(ctx, &rule); err != nil {
		return nil, s.storageError("update", err)
	}

	s.logger.Info().
		Str("rule_id", rule.ID.String()).
		Bool("is_active", rule.IsActive).
		Msg("rule updated")

	return &rule, nil
}

// storageError passes domain errors through and wraps everything else as retriable.
func (s *ruleService) storageError(op string, err error) error {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Msg("rule storage failed")
	return model.NewInfrastructureError(op+" rule", err)
}

// copyCode derives a fresh code for a copied rule.
func copyCode(code string) string {
	return fmt.Sprintf("%s-COPY-%s", code, strings.ToUpper(uuid.NewString()[:8]))
}
