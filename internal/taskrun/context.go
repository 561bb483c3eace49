// Package taskrun resolves a step's dependency and target keys from the run
// context supplied by the orchestration host, and runs step bodies against a
// storage driver. Scheduling, retries, and DAG validation stay with the host.
package taskrun

import (
	"fmt"

	"fileflow/internal/storage"
)

// RunContext carries the identity of one step execution: which run, which
// step, and which upstream step feeds each declared dependency slot. The
// host builds one per invocation; it is consumed read-only.
type RunContext struct {
	RunID        string
	StepID       string
	Dependencies map[string]string // slot name -> upstream step identifier
}

// ResolveTarget returns the key the step writes its own output to.
func ResolveTarget(rc RunContext) (storage.Key, error) {
	return storage.Resolve(rc.RunID, rc.StepID, storage.TargetSlot)
}

// ResolveDependencies maps every declared slot to the upstream step's target
// key. A dependency names the upstream step's output, so the physical key
// uses the reserved target slot; the declared slot name is only the label
// the result is returned under.
//
// Resolution is pure: no backend is touched, so a caller can validate the
// whole dependency map before any I/O happens.
func ResolveDependencies(rc RunContext) (map[string]storage.Key, error) {
	keys := make(map[string]storage.Key, len(rc.Dependencies))
	for slot, upstream := range rc.Dependencies {
		if slot == storage.TargetSlot {
			return nil, fmt.Errorf("%w: slot %q is reserved for step output", storage.ErrInvalidIdentifier, slot)
		}
		if err := storage.ValidateSlot(slot); err != nil {
			return nil, err
		}
		key, err := storage.Resolve(rc.RunID, upstream, storage.TargetSlot)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", slot, err)
		}
		keys[slot] = key
	}
	return keys, nil
}
