package draft

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careon/internal/enrollment/metrics"
	"careon/internal/enrollment/models"
	"careon/internal/enrollment/steps"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
	"careon/pkg/platform/sentinel"
)

// countingStore wraps InMemoryStore and counts writes.
type countingStore struct {
	*InMemoryStore
	saves atomic.Int32
	fail  bool
}

func (c *countingStore) Save(ctx context.Context, owner id.UserID, snap Snapshot) error {
	c.saves.Add(1)
	if c.fail {
		return errors.New("redis: connection refused")
	}
	return c.InMemoryStore.Save(ctx, owner, snap)
}

// gatedStore holds every Save until release is closed.
type gatedStore struct {
	*InMemoryStore
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		InMemoryStore: NewInMemoryStore(time.Hour),
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
}

func (g *gatedStore) Save(ctx context.Context, owner id.UserID, snap Snapshot) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.InMemoryStore.Save(ctx, owner, snap)
}

// startInFlightWrite lets a debounced write reach the store and park there.
func startInFlightWrite(t *testing.T, owner id.UserID) (*Service, *gatedStore) {
	t.Helper()
	store := newGatedStore()
	svc := NewService(store, steps.Default, WithDebounceDelay(0))
	_, err := svc.Autosave(context.Background(), owner, input("Kim", 3))
	require.NoError(t, err)
	select {
	case <-store.entered:
	case <-time.After(time.Second):
		t.Fatal("debounced write never reached the store")
	}
	return svc, store
}

func newTestService(t *testing.T, delay time.Duration) (*Service, *countingStore, *metrics.Metrics) {
	t.Helper()
	store := &countingStore{InMemoryStore: NewInMemoryStore(time.Hour)}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(store, steps.Default, WithDebounceDelay(delay), WithMetrics(m))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, store, m
}

func input(name string, step int) Input {
	return Input{Data: models.FormData{OwnerName: name}, StepIndex: step}
}

func TestAutosaveDebounces(t *testing.T) {
	svc, store, _ := newTestService(t, 50*time.Millisecond)
	ctx := context.Background()
	owner := id.NewUserID()

	for _, name := range []string{"K", "Ki", "Kim"} {
		_, err := svc.Autosave(ctx, owner, input(name, 1))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return store.saves.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), store.saves.Load())

	snap, err := store.Load(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "Kim", snap.Data.OwnerName)
	assert.Equal(t, FormatVersion, snap.Version)
}

func TestRestoreSeesPendingWrite(t *testing.T) {
	svc, store, _ := newTestService(t, time.Hour)
	ctx := context.Background()
	owner := id.NewUserID()

	_, err := svc.Autosave(ctx, owner, input("Kim", 2))
	require.NoError(t, err)
	assert.Equal(t, int32(0), store.saves.Load())

	snap, err := svc.Restore(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "Kim", snap.Data.OwnerName)
	assert.Equal(t, 2, snap.StepIndex)
	assert.Equal(t, int32(1), store.saves.Load())
}

func TestRestoreWithoutDraft(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	_, err := svc.Restore(context.Background(), id.NewUserID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestDiscardDropsPendingAndStored(t *testing.T) {
	svc, store, _ := newTestService(t, time.Hour)
	ctx := context.Background()
	owner := id.NewUserID()

	_, err := svc.SaveNow(ctx, owner, input("Kim", 0))
	require.NoError(t, err)
	_, err = svc.Autosave(ctx, owner, input("Kim Cafe", 3))
	require.NoError(t, err)

	require.NoError(t, svc.Discard(ctx, owner))
	_, err = store.Load(ctx, owner)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, int32(1), store.saves.Load())
}

func TestAutosaveRejectsUnknownStep(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	_, err := svc.Autosave(context.Background(), id.NewUserID(), input("Kim", steps.Default.Len()))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCloseFlushesPendingWrites(t *testing.T) {
	store := &countingStore{InMemoryStore: NewInMemoryStore(time.Hour)}
	svc := NewService(store, steps.Default, WithDebounceDelay(time.Hour))
	ctx := context.Background()
	alice := id.NewUserID()
	bob := id.NewUserID()

	_, err := svc.Autosave(ctx, alice, input("Alice", 1))
	require.NoError(t, err)
	_, err = svc.Autosave(ctx, bob, input("Bob", 1))
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx))
	assert.Equal(t, int32(2), store.saves.Load())

	_, err = svc.Autosave(ctx, alice, input("Alice", 2))
	assert.Error(t, err)
}

func TestFailedWritesAreCounted(t *testing.T) {
	svc, store, m := newTestService(t, time.Hour)
	store.fail = true

	_, err := svc.SaveNow(context.Background(), id.NewUserID(), input("Kim", 0))
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))
	assert.InDelta(t, 1, testutil.ToFloat64(m.DraftSaves.WithLabelValues("error")), 0)
}

func TestInMemoryStoreExpiry(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()
	owner := id.NewUserID()

	require.NoError(t, store.Save(ctx, owner, Snapshot{Version: FormatVersion}))
	_, err := store.Load(ctx, owner)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Load(ctx, owner)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestIncompatibleVersionIsAbsent(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	owner := id.NewUserID()
	require.NoError(t, store.Save(context.Background(), owner, Snapshot{Version: "0.9"}))
	_, err := store.Load(context.Background(), owner)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDeviceLabel(t *testing.T) {
	desktop := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	android := "Mozilla/5.0 (Linux; Android 13; SM-S911N) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	bot := "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

	assert.Contains(t, DeviceLabel(desktop), "Chrome")
	assert.NotContains(t, DeviceLabel(desktop), "(mobile)")
	assert.Contains(t, DeviceLabel(android), "(mobile)")
	assert.Equal(t, "bot", DeviceLabel(bot))
	assert.Empty(t, DeviceLabel("  "))
}

func TestDiscardWaitsForInFlightWrite(t *testing.T) {
	ctx := context.Background()
	owner := id.NewUserID()
	svc, store := startInFlightWrite(t, owner)

	done := make(chan error, 1)
	go func() { done <- svc.Discard(ctx, owner) }()

	select {
	case <-done:
		t.Fatal("discard returned while a write was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-done)

	_, err := store.Load(ctx, owner)
	require.ErrorIs(t, err, sentinel.ErrNotFound, "cleared draft came back")
	require.NoError(t, svc.Close(ctx))
}

func TestRestoreWaitsForInFlightWrite(t *testing.T) {
	ctx := context.Background()
	owner := id.NewUserID()
	svc, store := startInFlightWrite(t, owner)

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := svc.Restore(ctx, owner)
		done <- result{snap, err}
	}()

	time.Sleep(50 * time.Millisecond)
	close(store.release)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "Kim", got.snap.Data.OwnerName)
	assert.Equal(t, 3, got.snap.StepIndex)
	require.NoError(t, svc.Close(ctx))
}
