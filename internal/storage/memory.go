package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryDriver keeps payloads in process memory. It backs single-process
// pipelines and doubles as the test stand-in for the real backends.
type MemoryDriver struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{data: make(map[string][]byte)}
}

func (d *MemoryDriver) Write(_ context.Context, key Key, payload Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[key.String()] = append([]byte(nil), payload.Data...)
	return nil
}

func (d *MemoryDriver) Read(_ context.Context, key Key) (Payload, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	raw, ok := d.data[key.String()]
	if !ok {
		return Payload{}, ErrNotFound
	}
	return Bytes(append([]byte(nil), raw...)), nil
}

func (d *MemoryDriver) Exists(_ context.Context, key Key) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.data[key.String()]
	return ok, nil
}

func (d *MemoryDriver) List(_ context.Context, runID, stepID string) ([]string, error) {
	if err := checkIdentifier("run", runID); err != nil {
		return nil, err
	}
	if err := checkIdentifier("step", stepID); err != nil {
		return nil, err
	}
	prefix := runID + "/" + stepID + "/"
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.data))
	for k := range d.data {
		if strings.HasPrefix(k, prefix) {
			names = append(names, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *MemoryDriver) Location(key Key) string {
	return "memory://" + key.String()
}
