package repository

import (
	"context"
	"time"

	"discount-rules/internal/model"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is how long a rule stays cached when no TTL is configured.
const DefaultCacheTTL = 30 * time.Second

// cachedRuleRepository serves GetByID from an in-process TTL cache and
// invalidates entries on every write that goes through it.
type cachedRuleRepository struct {
	next   RuleRepository
	cache  *gocache.Cache
	logger zerolog.Logger
}

// NewCachedRuleRepository decorates next with a read-through cache of rules by ID.
func NewCachedRuleRepository(next RuleRepository, ttl time.Duration, logger zerolog.Logger) RuleRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &cachedRuleRepository{
		next:   next,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger.With().Str("repository", "rule-cache").Logger(),
	}
}

func (c *cachedRuleRepository) Create(ctx context.Context, rule *model.DiscountRule) error {
	return c.next.Create(ctx, rule)
}

func (c *cachedRuleRepository) Update(ctx context.Context, rule *model.DiscountRule) error {
	// Invalidate even when the write fails
	defer c.cache.Delete(rule.ID.String())
	return c.next.Update(ctx, rule)
}

func (c *cachedRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error) {
	key := id.String()
	if v, ok := c.cache.Get(key); ok {
		rule := v.(model.DiscountRule).Clone()
		return &rule, nil
	}

	rule, err := c.next.GetByID(ctx, id)
	if err != nil || rule == nil {
		return rule, err
	}

	// Store a private copy so callers cannot mutate the cached value
	c.cache.Set(key, rule.Clone(), gocache.DefaultExpiration)
	c.logger.Debug().Str("rule_id", key).Msg("rule cached")

	return rule, nil
}

func (c *cachedRuleRepository) List(ctx context.Context, filter ListFilter) ([]model.DiscountRule, error) {
	return c.next.List(ctx, filter)
}

func (c *cachedRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer c.cache.Delete(id.String())
	return c.next.Delete(ctx, id)
}
