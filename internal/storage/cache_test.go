package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingDriver counts backend calls so cache behavior is observable.
type countingDriver struct {
	Driver
	reads  int
	exists int
}

func (d *countingDriver) Read(ctx context.Context, key Key) (Payload, error) {
	d.reads++
	return d.Driver.Read(ctx, key)
}

func (d *countingDriver) Exists(ctx context.Context, key Key) (bool, error) {
	d.exists++
	return d.Driver.Exists(ctx, key)
}

func TestCachedDriverServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingDriver{Driver: NewMemoryDriver()}
	d, err := NewCachedDriver(backend, 8)
	require.NoError(t, err)

	key := mustKey(t, "run1", "extract", TargetSlot)
	require.NoError(t, backend.Write(ctx, key, Text("payload")))

	first, err := d.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "payload", first.Text())

	second, err := d.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "payload", second.Text())
	require.Equal(t, 1, backend.reads, "second read should come from cache")
}

func TestCachedDriverWriteRefreshesEntry(t *testing.T) {
	ctx := context.Background()
	backend := &countingDriver{Driver: NewMemoryDriver()}
	d, err := NewCachedDriver(backend, 8)
	require.NoError(t, err)

	key := mustKey(t, "run1", "extract", TargetSlot)
	require.NoError(t, d.Write(ctx, key, Text("first")))
	require.NoError(t, d.Write(ctx, key, Text("second")))

	p, err := d.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "second", p.Text())
	require.Equal(t, 0, backend.reads, "cached entry should cover the read")
}

func TestCachedDriverExistsUsesCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingDriver{Driver: NewMemoryDriver()}
	d, err := NewCachedDriver(backend, 8)
	require.NoError(t, err)

	key := mustKey(t, "run1", "extract", TargetSlot)
	require.NoError(t, d.Write(ctx, key, Text("payload")))

	ok, err := d.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, backend.exists)

	missing := mustKey(t, "run1", "never-ran", TargetSlot)
	ok, err = d.Exists(ctx, missing)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, backend.exists, "miss should fall through to the backend")
}

func TestCachedDriverHandsOutCopies(t *testing.T) {
	ctx := context.Background()
	d, err := NewCachedDriver(NewMemoryDriver(), 8)
	require.NoError(t, err)

	key := mustKey(t, "run1", "extract", TargetSlot)
	require.NoError(t, d.Write(ctx, key, Bytes([]byte("payload"))))

	p, err := d.Read(ctx, key)
	require.NoError(t, err)
	p.Data[0] = 'X'

	again, err := d.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "payload", again.Text())
}
