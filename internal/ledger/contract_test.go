package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discount-rules/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend builds a ledger plus a factory for rule ids it can store usage against.
type backend func(t *testing.T) (Ledger, func() uuid.UUID)

// runContract exercises the behaviour every Ledger implementation must share.
func runContract(t *testing.T, newBackend backend) {
	ctx := context.Background()

	t.Run("One time rule is consumed once until reset", func(t *testing.T) {
		l, newRule := newBackend(t)
		rule := newRule()

		result, rec, err := l.TryConsume(ctx, "alice", rule, model.OneTime{}, t0)
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeAllowed, result)
		assert.Equal(t, 0, rec.RemainingUses)

		for i := 1; i <= 3; i++ {
			result, _, err = l.TryConsume(ctx, "alice", rule, model.OneTime{}, t0.Add(time.Duration(i)*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, model.ConsumeDeniedOneTimeExhausted, result)
		}

		require.NoError(t, l.Reset(ctx, "alice", rule))

		result, _, err = l.TryConsume(ctx, "alice", rule, model.OneTime{}, t0.Add(5*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeAllowed, result)

		result, _, err = l.TryConsume(ctx, "alice", rule, model.OneTime{}, t0.Add(6*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeDeniedOneTimeExhausted, result)
	})

	t.Run("Fixed window replenishes after cooldown", func(t *testing.T) {
		l, newRule := newBackend(t)
		rule := newRule()

		for i := 0; i < 3; i++ {
			result, _, err := l.TryConsume(ctx, "bob", rule, hourly, t0.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, model.ConsumeAllowed, result, "use %d", i+1)
		}

		result, rec, err := l.TryConsume(ctx, "bob", rule, hourly, t0.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeDeniedLimitExceeded, result)
		assert.Equal(t, 0, rec.RemainingUses)

		later := t0.Add(61 * time.Minute)
		for i := 0; i < 3; i++ {
			result, _, err := l.TryConsume(ctx, "bob", rule, hourly, later.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, model.ConsumeAllowed, result, "second window use %d", i+1)
		}

		result, _, err = l.TryConsume(ctx, "bob", rule, hourly, later.Add(5*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeDeniedLimitExceeded, result)
	})

	t.Run("Peek never mutates", func(t *testing.T) {
		l, newRule := newBackend(t)
		rule := newRule()

		for i := 0; i < 10; i++ {
			result, rec, err := l.Peek(ctx, "carol", rule, model.OneTime{}, t0)
			require.NoError(t, err)
			assert.Equal(t, model.ConsumeAllowed, result)
			assert.Equal(t, 1, rec.RemainingUses)
		}

		stored, err := l.Get(ctx, "carol", rule)
		require.NoError(t, err)
		assert.Nil(t, stored)

		_, _, err = l.TryConsume(ctx, "carol", rule, model.OneTime{}, t0)
		require.NoError(t, err)

		result, rec, err := l.Peek(ctx, "carol", rule, model.OneTime{}, t0)
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeDeniedOneTimeExhausted, result)
		assert.NotNil(t, rec.LastUsedAt)
	})

	t.Run("Reset is idempotent and scoped", func(t *testing.T) {
		l, newRule := newBackend(t)
		ruleA, ruleB := newRule(), newRule()

		// Reset with no history succeeds
		require.NoError(t, l.Reset(ctx, "dave", ruleA))
		require.NoError(t, l.ResetCustomer(ctx, "dave"))

		for _, rule := range []uuid.UUID{ruleA, ruleB} {
			_, _, err := l.TryConsume(ctx, "dave", rule, model.OneTime{}, t0)
			require.NoError(t, err)
			_, _, err = l.TryConsume(ctx, "erin", rule, model.OneTime{}, t0)
			require.NoError(t, err)
		}

		require.NoError(t, l.ResetCustomer(ctx, "dave"))
		require.NoError(t, l.ResetCustomer(ctx, "dave"))

		for _, rule := range []uuid.UUID{ruleA, ruleB} {
			rec, err := l.Get(ctx, "dave", rule)
			require.NoError(t, err)
			assert.Nil(t, rec)

			rec, err = l.Get(ctx, "erin", rule)
			require.NoError(t, err)
			assert.NotNil(t, rec, "other customers keep their usage")
		}
	})

	t.Run("DeleteRule drops usage for every customer", func(t *testing.T) {
		l, newRule := newBackend(t)
		rule, other := newRule(), newRule()

		for _, c := range []string{"f1", "f2"} {
			_, _, err := l.TryConsume(ctx, c, rule, hourly, t0)
			require.NoError(t, err)
			_, _, err = l.TryConsume(ctx, c, other, hourly, t0)
			require.NoError(t, err)
		}

		require.NoError(t, l.DeleteRule(ctx, rule))

		for _, c := range []string{"f1", "f2"} {
			rec, err := l.Get(ctx, c, rule)
			require.NoError(t, err)
			assert.Nil(t, rec)

			rec, err = l.Get(ctx, c, other)
			require.NoError(t, err)
			assert.NotNil(t, rec)
		}
	})

	t.Run("Concurrent consumes never exceed the window quota", func(t *testing.T) {
		l, newRule := newBackend(t)
		rule := newRule()

		const attempts = 40
		var allowed, failed atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				result, _, err := l.TryConsume(ctx, "grace", rule, hourly, t0)
				if err != nil {
					// Exhausted conflict retries surface as infrastructure errors, never as extra grants
					assert.True(t, model.IsInfrastructure(err), "unexpected error: %v", err)
					failed.Add(1)
					return
				}
				if result.Allowed() {
					allowed.Add(1)
				}
			}()
		}

		close(start)
		wg.Wait()

		assert.LessOrEqual(t, int(allowed.Load()), hourly.MaxUses)
		assert.Positive(t, int(allowed.Load()))
		if failed.Load() == 0 {
			// Every attempt decided on settled state, so the whole quota went out
			assert.Equal(t, hourly.MaxUses, int(allowed.Load()))
		}

		rec, err := l.Get(ctx, "grace", rule)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, hourly.MaxUses-int(allowed.Load()), rec.RemainingUses)
	})

	t.Run("Distinct keys proceed independently", func(t *testing.T) {
		l, newRule := newBackend(t)
		rule := newRule()

		const customers = 20
		var wg sync.WaitGroup
		results := make([]model.ConsumeResult, customers)

		for i := 0; i < customers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, _, err := l.TryConsume(ctx, uuid.NewString(), rule, model.OneTime{}, t0)
				assert.NoError(t, err)
				results[i] = result
			}(i)
		}
		wg.Wait()

		for _, r := range results {
			assert.Equal(t, model.ConsumeAllowed, r)
		}
	})

	t.Run("Reset racing consumes is never lost", func(t *testing.T) {
		l, newRule := newBackend(t)
		rule := newRule()

		_, _, err := l.TryConsume(ctx, "heidi", rule, model.OneTime{}, t0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var allowed atomic.Int32
		start := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, l.Reset(ctx, "heidi", rule))
		}()

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				result, _, err := l.TryConsume(ctx, "heidi", rule, model.OneTime{}, t0.Add(time.Minute))
				if err == nil && result.Allowed() {
					allowed.Add(1)
				}
			}()
		}

		close(start)
		wg.Wait()

		// The reset grants exactly one more use, whichever side wins each race
		assert.LessOrEqual(t, int(allowed.Load()), 1)

		rec, err := l.Get(ctx, "heidi", rule)
		require.NoError(t, err)
		if allowed.Load() == 0 {
			// Reset landed after every consume attempt
			assert.Nil(t, rec)
		} else {
			require.NotNil(t, rec)
			assert.Equal(t, 0, rec.RemainingUses)
		}
	})
}
