package repository

import (
	"context"
	"errors"
	"fmt"

	"discount-rules/internal/discount"
	"discount-rules/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

const ruleColumns = `
	id, code, name, description, emc_code, discount_rule_type,
	amount::text, percentage::text, scope, schedule, is_active,
	one_time, limitation, max_uses, cooldown_period, created_at, updated_at
`

// ruleRepository implements the RuleRepository interface using PostgreSQL.
type ruleRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRuleRepository creates a new PostgreSQL-backed rule repository.
func NewRuleRepository(pool *pgxpool.Pool, logger zerolog.Logger) RuleRepository {
	return &ruleRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "rule").Logger(),
	}
}

// Create inserts a new rule.
func (r *ruleRepository) Create(ctx context.Context, rule *model.DiscountRule) error {
	query := `
		INSERT INTO discount_rules (
			id, code, name, description, emc_code, discount_rule_type,
			amount, percentage, scope, schedule, is_active,
			one_time, limitation, max_uses, cooldown_period, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	policy := model.FieldsOf(rule.Policy)
	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.Code, rule.Name, rule.Description, rule.EMCCode, string(rule.Type),
		decimalArg(rule.Amount), decimalArg(rule.Percentage), rule.Scope, rule.Schedule, rule.IsActive,
		policy.OneTime, policy.Limitation, policy.MaxUses, policy.CooldownPeriod, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug().Str("code", rule.Code).Msg("rule code already exists")
			return model.ErrDuplicateRuleCode
		}
		r.logger.Error().
			Err(err).
			Str("rule_id", rule.ID.String()).
			Msg("failed to create rule")
		return fmt.Errorf("failed to create rule: %w", err)
	}

	r.logger.Debug().
		Str("rule_id", rule.ID.String()).
		Str("code", rule.Code).
		Msg("rule created successfully")

	return nil
}

// Update replaces every mutable field of an existing rule.
func (r *ruleRepository) Update(ctx context.Context, rule *model.DiscountRule) error {
	query := `
		UPDATE discount_rules SET
			code = $2, name = $3, description = $4, emc_code = $5, discount_rule_type = $6,
			amount = $7, percentage = $8, scope = $9, schedule = $10, is_active = $11,
			one_time = $12, limitation = $13, max_uses = $14, cooldown_period = $15, updated_at = $16
		WHERE id = $1
	`

	policy := model.FieldsOf(rule.Policy)
	tag, err := r.pool.Exec(ctx, query,
		rule.ID, rule.Code, rule.Name, rule.Description, rule.EMCCode, string(rule.Type),
		decimalArg(rule.Amount), decimalArg(rule.Percentage), rule.Scope, rule.Schedule, rule.IsActive,
		policy.OneTime, policy.Limitation, policy.MaxUses, policy.CooldownPeriod, rule.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateRuleCode
		}
		r.logger.Error().
			Err(err).
			Str("rule_id", rule.ID.String()).
			Msg("failed to update rule")
		return fmt.Errorf("failed to update rule: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrRuleNotFound
	}

	r.logger.Debug().Str("rule_id", rule.ID.String()).Msg("rule updated successfully")

	return nil
}

// GetByID retrieves a single rule by its ID.
func (r *ruleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM discount_rules WHERE id = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("rule_id", id.String()).Msg("rule not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("rule_id", id.String()).Msg("failed to query rule")
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}

	return rule, nil
}

// List retrieves rules newest first.
func (r *ruleRepository) List(ctx context.Context, filter ListFilter) ([]model.DiscountRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM discount_rules
		WHERE ($3 = FALSE OR is_active)
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, filter.Limit, filter.Offset, filter.ActiveOnly)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", filter.Limit).
			Int("offset", filter.Offset).
			Msg("failed to query rules")
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]model.DiscountRule, 0, filter.Limit)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan rule row")
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating rule rows")
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// Delete removes a rule; usage rows go with it through the foreign key.
func (r *ruleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM discount_rules WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("rule_id", id.String()).Msg("failed to delete rule")
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrRuleNotFound
	}

	r.logger.Debug().Str("rule_id", id.String()).Msg("rule deleted successfully")

	return nil
}

func scanRule(row pgx.Row) (*model.DiscountRule, error) {
	var (
		rule       model.DiscountRule
		ruleType   string
		amount     *string
		percentage *string
		policy     model.UsagePolicyFields
	)

	err := row.Scan(
		&rule.ID,
		&rule.Code,
		&rule.Name,
		&rule.Description,
		&rule.EMCCode,
		&ruleType,
		&amount,
		&percentage,
		&rule.Scope,
		&rule.Schedule,
		&rule.IsActive,
		&policy.OneTime,
		&policy.Limitation,
		&policy.MaxUses,
		&policy.CooldownPeriod,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Type = model.RuleType(ruleType)

	if rule.Amount, err = parseDecimal(amount); err != nil {
		return nil, fmt.Errorf("rule %s amount: %w", rule.ID, err)
	}
	if rule.Percentage, err = parseDecimal(percentage); err != nil {
		return nil, fmt.Errorf("rule %s percentage: %w", rule.ID, err)
	}

	if rule.Policy, err = discount.ResolvePolicy(policy); err != nil {
		return nil, fmt.Errorf("rule %s has an invalid stored usage policy: %w", rule.ID, err)
	}

	return &rule, nil
}

// decimalArg passes decimals as text so NUMERIC keeps full precision.
func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
