package rateguard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/realtime/pkg/rateguard"
)

// failingStore simulates a shared store outage.
type failingStore struct{}

func (failingStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return 0, 0, rateguard.ErrStoreUnavailable
}

func (failingStore) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	return 0, 0, rateguard.ErrStoreUnavailable
}

func (failingStore) Delete(ctx context.Context, key string) error {
	return rateguard.ErrStoreUnavailable
}

func TestGuard_AllowsUnderThreshold(t *testing.T) {
	ctx := context.Background()
	guard := rateguard.New(rateguard.NewMemoryStore(),
		rateguard.WithDefaultLimit(rateguard.Limit{Threshold: 3, Window: time.Minute}))

	for i := 0; i < 2; i++ {
		guard.RecordFailure(ctx, "login", "192.0.2.1")
	}

	assert.NoError(t, guard.Check(ctx, "login", "192.0.2.1"))
}

func TestGuard_RejectsAtThreshold(t *testing.T) {
	ctx := context.Background()
	window := 900 * time.Second
	guard := rateguard.New(rateguard.NewMemoryStore(),
		rateguard.WithLimit("login", rateguard.Limit{Threshold: 5, Window: window}))

	for i := 0; i < 5; i++ {
		guard.RecordFailure(ctx, "login", "192.0.2.1")
	}

	err := guard.Check(ctx, "login", "192.0.2.1")
	require.Error(t, err)

	var rle *rateguard.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "login", rle.Action)
	assert.Greater(t, rle.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rle.RetryAfter, window)

	// Other actors are unaffected.
	assert.NoError(t, guard.Check(ctx, "login", "192.0.2.2"))
}

func TestGuard_ClearResetsWindow(t *testing.T) {
	ctx := context.Background()
	guard := rateguard.New(rateguard.NewMemoryStore(),
		rateguard.WithDefaultLimit(rateguard.Limit{Threshold: 2, Window: time.Minute}))

	guard.RecordFailure(ctx, "login", "user-1")
	guard.RecordFailure(ctx, "login", "user-1")
	require.Error(t, guard.Check(ctx, "login", "user-1"))

	// Successful login clears the counter; the next failure starts fresh.
	guard.Clear(ctx, "login", "user-1")
	assert.NoError(t, guard.Check(ctx, "login", "user-1"))

	guard.RecordFailure(ctx, "login", "user-1")
	assert.NoError(t, guard.Check(ctx, "login", "user-1"))
}

func TestGuard_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	guard := rateguard.New(rateguard.NewMemoryStore(),
		rateguard.WithDefaultLimit(rateguard.Limit{Threshold: 1, Window: 20 * time.Millisecond}))

	guard.RecordFailure(ctx, "invite", "user-9")
	require.Error(t, guard.Check(ctx, "invite", "user-9"))

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, guard.Check(ctx, "invite", "user-9"))
}

func TestGuard_FailsOpenWhenStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	guard := rateguard.New(failingStore{})

	assert.NoError(t, guard.Check(ctx, "login", "192.0.2.1"))
	guard.RecordFailure(ctx, "login", "192.0.2.1")
	guard.Clear(ctx, "login", "192.0.2.1")
}

func TestGuard_ActionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	guard := rateguard.New(rateguard.NewMemoryStore(),
		rateguard.WithDefaultLimit(rateguard.Limit{Threshold: 1, Window: time.Minute}))

	guard.RecordFailure(ctx, "login", "user-1")
	require.Error(t, guard.Check(ctx, "login", "user-1"))
	assert.NoError(t, guard.Check(ctx, "invite", "user-1"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "login_attempts:192.0.2.1", rateguard.Key("login", "192.0.2.1"))
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping race test in short mode")
	}

	ctx := context.Background()
	ms := rateguard.NewMemoryStore()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, _, err := ms.Incr(ctx, "login_attempts:u1", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, remaining, err := ms.Get(ctx, "login_attempts:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines), count)
	assert.Greater(t, remaining, time.Duration(0))
}

func TestMemoryStore_RejectsInvalidWindow(t *testing.T) {
	ms := rateguard.NewMemoryStore()
	_, _, err := ms.Incr(context.Background(), "k", 0)
	assert.True(t, errors.Is(err, rateguard.ErrInvalidWindow))
}
