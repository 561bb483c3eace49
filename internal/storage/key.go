package storage

import (
	"errors"
	"fmt"
	"strings"
)

// TargetSlot is the reserved slot name under which every step writes its own
// output. Dependency maps must not declare it.
const TargetSlot = "output"

// maxSegmentLen bounds each key segment so keys stay safe across backends.
const maxSegmentLen = 128

var (
	// ErrInvalidIdentifier reports a run, step, or slot identifier outside
	// the allowed character set. This is a caller bug and is never retried.
	ErrInvalidIdentifier = errors.New("storage: invalid identifier")

	// ErrNotFound reports a key with no stored payload. Upstream output that
	// has not been produced yet surfaces as this error.
	ErrNotFound = errors.New("storage: key not found")
)

// Key identifies one stored payload within a pipeline run. Keys are derived
// on demand via Resolve and never persisted.
type Key struct {
	RunID  string
	StepID string
	Slot   string
}

// String renders the canonical relative key. The rendering is deterministic
// and injective across distinct (RunID, StepID) pairs, and is safe both as a
// filesystem relative path and as an object-store key.
func (k Key) String() string {
	return k.RunID + "/" + k.StepID + "/" + k.Slot
}

// SlotSuffix returns the extension-like suffix of the slot name, including
// the dot, or "" when the slot has none. Backends that record a content-type
// use it for configured overrides.
func (k Key) SlotSuffix() string {
	if i := strings.IndexByte(k.Slot, '.'); i >= 0 {
		return k.Slot[i:]
	}
	return ""
}

// Resolve validates the three segments and returns the canonical key.
// Pure: deterministic, no I/O.
func Resolve(runID, stepID, slot string) (Key, error) {
	if err := checkIdentifier("run", runID); err != nil {
		return Key{}, err
	}
	if err := checkIdentifier("step", stepID); err != nil {
		return Key{}, err
	}
	if err := ValidateSlot(slot); err != nil {
		return Key{}, err
	}
	return Key{RunID: runID, StepID: stepID, Slot: slot}, nil
}

// ValidateSlot checks a slot name against the slot allow-list: the identifier
// character set plus at most one interior dot, so a slot can carry a
// file-extension-like suffix (e.g. "report.json").
func ValidateSlot(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty slot name", ErrInvalidIdentifier)
	}
	if len(s) > maxSegmentLen {
		return fmt.Errorf("%w: slot name exceeds %d bytes", ErrInvalidIdentifier, maxSegmentLen)
	}
	dots := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			dots++
			if dots > 1 || i == 0 || i == len(s)-1 {
				return fmt.Errorf("%w: slot %q has a malformed suffix", ErrInvalidIdentifier, s)
			}
			continue
		}
		if !identifierChar(c) {
			return fmt.Errorf("%w: slot %q contains %q", ErrInvalidIdentifier, s, string(c))
		}
	}
	return nil
}

func checkIdentifier(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty %s identifier", ErrInvalidIdentifier, kind)
	}
	if len(s) > maxSegmentLen {
		return fmt.Errorf("%w: %s identifier exceeds %d bytes", ErrInvalidIdentifier, kind, maxSegmentLen)
	}
	for i := 0; i < len(s); i++ {
		if !identifierChar(s[i]) {
			return fmt.Errorf("%w: %s identifier %q contains %q", ErrInvalidIdentifier, kind, s, string(s[i]))
		}
	}
	return nil
}

func identifierChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		return true
	}
	return false
}
