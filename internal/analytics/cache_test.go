package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
)

// --- mocks ---

type countingOverview struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingOverview) Overview(context.Context) (domain.StateOverview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return domain.StateOverview{}, c.err
	}
	return domain.StateOverview{TotalDistricts: 75, DistrictsReporting: c.calls}, nil
}

func (c *countingOverview) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// gatedOverview blocks every computation until release is closed and records
// whether the context it was handed had been cancelled.
type gatedOverview struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	calls   int
	ctxErrs []error
}

func newGatedOverview() *gatedOverview {
	return &gatedOverview{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedOverview) Overview(ctx context.Context) (domain.StateOverview, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return domain.StateOverview{TotalDistricts: 75, DistrictsReporting: g.calls}, nil
}

func (g *gatedOverview) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
}

type fakeShared struct {
	mu      sync.Mutex
	entries map[string]domain.StateOverview
	err     error
	deletes int
}

func newFakeShared() *fakeShared {
	return &fakeShared{entries: map[string]domain.StateOverview{}}
}

func (f *fakeShared) GetOverview(_ context.Context, key string) (domain.StateOverview, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.StateOverview{}, false, f.err
	}
	ov, ok := f.entries[key]
	return ov, ok, nil
}

func (f *fakeShared) SetOverview(_ context.Context, key string, ov domain.StateOverview, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[key] = ov
	return nil
}

func (f *fakeShared) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.entries, key)
	return f.err
}

// --- CachedOverview tests ---

func TestCachedOverview_ServesFromCache(t *testing.T) {
	inner := &countingOverview{}
	metrics := observability.NewMetricsForTesting()
	c := NewCachedOverview(inner, nil, time.Minute, discardLogger(), metrics)

	for range 3 {
		ov, err := c.Overview(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, ov.DistrictsReporting)
	}
	assert.Equal(t, 1, inner.count())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("overview", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DistrictsReported))
}

func TestCachedOverview_Invalidate(t *testing.T) {
	inner := &countingOverview{}
	shared := newFakeShared()
	c := NewCachedOverview(inner, shared, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	_, err := c.Overview(context.Background())
	require.NoError(t, err)
	c.Invalidate(context.Background())

	ov, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.count())
	assert.Equal(t, 2, ov.DistrictsReporting)
	assert.Equal(t, 1, shared.deletes)
}

func TestCachedOverview_Expiry(t *testing.T) {
	inner := &countingOverview{}
	c := NewCachedOverview(inner, nil, 20*time.Millisecond, discardLogger(), observability.NewMetricsForTesting())

	_, _ = c.Overview(context.Background())
	time.Sleep(60 * time.Millisecond)
	_, _ = c.Overview(context.Background())

	assert.Equal(t, 2, inner.count())
}

func TestCachedOverview_SharedTier(t *testing.T) {
	shared := newFakeShared()
	shared.entries[overviewKey] = domain.StateOverview{TotalDistricts: 75, DistrictsReporting: 42}
	inner := &countingOverview{}
	c := NewCachedOverview(inner, shared, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	ov, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, ov.DistrictsReporting)
	assert.Equal(t, 0, inner.count(), "served by the shared tier")
}

func TestCachedOverview_SharedFailureFallsThrough(t *testing.T) {
	shared := newFakeShared()
	shared.err = errors.New("redis down")
	inner := &countingOverview{}
	c := NewCachedOverview(inner, shared, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	ov, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ov.DistrictsReporting)
	assert.Equal(t, 1, inner.count())
}

func TestCachedOverview_ErrorsAreNotCached(t *testing.T) {
	inner := &countingOverview{err: domain.StoreUnavailable("latest", errors.New("down"))}
	c := NewCachedOverview(inner, nil, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	_, err := c.Overview(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	_, err = c.Overview(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 2, inner.count())
}

func TestCachedOverview_CancelledWaiterDoesNotFailOthers(t *testing.T) {
	inner := newGatedOverview()
	c := NewCachedOverview(inner, nil, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Overview(firstCtx)
		firstErr <- err
	}()
	waitFor(t, inner.started)

	type result struct {
		ov  domain.StateOverview
		err error
	}
	second := make(chan result, 1)
	go func() {
		ov, err := c.Overview(context.Background())
		second <- result{ov, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(inner.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, 75, res.ov.TotalDistricts)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}

	inner.mu.Lock()
	defer inner.mu.Unlock()
	for _, err := range inner.ctxErrs {
		assert.NoError(t, err, "recomputation must not see the first caller's cancellation")
	}
}

func TestCachedOverview_InvalidateDuringRecomputeIsNotCached(t *testing.T) {
	inner := newGatedOverview()
	shared := newFakeShared()
	c := NewCachedOverview(inner, shared, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	done := make(chan domain.StateOverview, 1)
	go func() {
		ov, err := c.Overview(context.Background())
		assert.NoError(t, err)
		done <- ov
	}()
	waitFor(t, inner.started)

	c.Invalidate(context.Background())
	close(inner.release)

	select {
	case ov := <-done:
		assert.Equal(t, 1, ov.DistrictsReporting)
	case <-time.After(2 * time.Second):
		t.Fatal("recompute did not finish")
	}

	shared.mu.Lock()
	assert.Empty(t, shared.entries, "stale overview must not reach the shared tier")
	shared.mu.Unlock()

	ov, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ov.DistrictsReporting, "next read recomputes")
	assert.Equal(t, 2, inner.count())
}
