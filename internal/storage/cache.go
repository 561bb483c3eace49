package storage

import (
	"context"

	"github.com/hashicorp/golang-lru/v2"
)

// CachedDriver serves repeated reads of step outputs from an in-process LRU.
// Writes go through to the backend and refresh the cached entry on success.
// No cross-process coherence is attempted: a step is the sole producer of its
// own target, so an entry only goes stale when another process re-runs a step
// this process already read.
type CachedDriver struct {
	backend Driver
	cache   *lru.Cache[string, []byte]
}

func NewCachedDriver(backend Driver, size int) (*CachedDriver, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedDriver{backend: backend, cache: c}, nil
}

func (d *CachedDriver) Write(ctx context.Context, key Key, payload Payload) error {
	if err := d.backend.Write(ctx, key, payload); err != nil {
		return err
	}
	d.cache.Add(key.String(), append([]byte(nil), payload.Data...))
	return nil
}

func (d *CachedDriver) Read(ctx context.Context, key Key) (Payload, error) {
	if b, ok := d.cache.Get(key.String()); ok {
		return Bytes(append([]byte(nil), b...)), nil
	}
	p, err := d.backend.Read(ctx, key)
	if err != nil {
		return Payload{}, err
	}
	d.cache.Add(key.String(), append([]byte(nil), p.Data...))
	return p, nil
}

func (d *CachedDriver) Exists(ctx context.Context, key Key) (bool, error) {
	if d.cache.Contains(key.String()) {
		return true, nil
	}
	return d.backend.Exists(ctx, key)
}

func (d *CachedDriver) List(ctx context.Context, runID, stepID string) ([]string, error) {
	return d.backend.List(ctx, runID, stepID)
}

func (d *CachedDriver) Location(key Key) string {
	return d.backend.Location(key)
}
