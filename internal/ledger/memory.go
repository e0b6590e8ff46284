package ledger

import (
	"context"
	"sync"
	"time"

	"discount-rules/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// memoryLedger serialises each key on its own mutex; distinct keys never share a lock.
// Resets evict entries, so the map only holds pairs with live usage.
type memoryLedger struct {
	entries sync.Map       // Key -> *entry
	mode    Mode
	logger  zerolog.Logger
}

type entry struct {
	mu  sync.Mutex
	rec *model.CustomerRuleUsage

	// evicted is set under mu once the entry has left the map.
	evicted bool
}

// NewMemoryLedger creates a process-local ledger.
func NewMemoryLedger(mode Mode, logger zerolog.Logger) Ledger {
	return &memoryLedger{
		mode:   mode,
		logger: logger.With().Str("component", "ledger").Str("backend", "memory").Logger(),
	}
}

// lock returns the live entry for key with its mutex held. An entry evicted
// while we waited for it is skipped in favour of its replacement.
func (l *memoryLedger) lock(key Key) *entry {
	for {
		v, ok := l.entries.Load(key)
		if !ok {
			v, _ = l.entries.LoadOrStore(key, &entry{})
		}
		e := v.(*entry)

		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

// current returns a copy of the stored record without creating an entry.
func (l *memoryLedger) current(key Key) *model.CustomerRuleUsage {
	v, ok := l.entries.Load(key)
	if !ok {
		return nil
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil
	}
	return e.rec.Clone()
}

func (l *memoryLedger) TryConsume(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	key := Key{CustomerID: customerID, RuleID: ruleID}
	e := l.lock(key)
	defer e.mu.Unlock()

	result, next := Decide(policy, key, e.rec, now, l.mode)
	if !result.Allowed() {
		l.logger.Debug().
			Str("customer_id", customerID).
			Str("rule_id", ruleID.String()).
			Str("result", string(result)).
			Msg("usage denied")
		return result, next, nil
	}

	if e.rec != nil {
		next.Version = e.rec.Version + 1
	} else {
		next.Version = 1
	}
	e.rec = next

	return result, next.Clone(), nil
}

func (l *memoryLedger) Peek(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	key := Key{CustomerID: customerID, RuleID: ruleID}
	current := l.current(key)

	result, _ := Decide(policy, key, current, now, l.mode)
	if current == nil {
		current = Fresh(key, policy)
	}
	return result, current, nil
}

func (l *memoryLedger) Get(ctx context.Context, customerID string, ruleID uuid.UUID) (*model.CustomerRuleUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return l.current(Key{CustomerID: customerID, RuleID: ruleID}), nil
}

func (l *memoryLedger) Reset(ctx context.Context, customerID string, ruleID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := Key{CustomerID: customerID, RuleID: ruleID}
	v, ok := l.entries.Load(key)
	if !ok {
		return nil
	}
	l.evict(key, v.(*entry))
	return nil
}

func (l *memoryLedger) ResetCustomer(ctx context.Context, customerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.evictWhere(func(k Key) bool { return k.CustomerID == customerID })
	return nil
}

func (l *memoryLedger) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.evictWhere(func(k Key) bool { return k.RuleID == ruleID })
	return nil
}

func (l *memoryLedger) evictWhere(match func(Key) bool) {
	l.entries.Range(func(k, v any) bool {
		if key := k.(Key); match(key) {
			l.evict(key, v.(*entry))
		}
		return true
	})
}

// evict drops e from the map under its own lock. A consume already waiting on
// e sees evicted and retries against a fresh entry.
func (l *memoryLedger) evict(key Key, e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rec = nil
	e.evicted = true
	l.entries.CompareAndDelete(key, e)
}
