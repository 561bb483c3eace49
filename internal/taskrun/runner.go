package taskrun

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fileflow/internal/codec"
	"fileflow/internal/storage"
)

// Runner is the fixed execution contract a step satisfies. The step body is
// supplied as a function at construction; there is no runtime lookup of a
// configurable method name.
type Runner interface {
	Run(ctx context.Context) error
}

// RunFunc is a step body. It receives the step for dependency reads and the
// target write.
type RunFunc func(ctx context.Context, step *Step) error

// Step composes a run context with a storage driver by reference. The host
// executes it as one synchronous unit of work; a failed read or write is
// returned as-is for the host's retry policy to act on.
type Step struct {
	rc      RunContext
	store   storage.Driver
	run     RunFunc
	charset string
	log     *logrus.Entry
}

type Option func(*Step)

// WithCharset sets the charset recorded on text payloads written by this
// step.
func WithCharset(charset string) Option {
	return func(s *Step) { s.charset = charset }
}

// WithLogger replaces the default logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Step) { s.log = log }
}

// NewStep validates the run context up front: a malformed identifier or slot
// fails here, before any backend is touched.
func NewStep(rc RunContext, store storage.Driver, run RunFunc, opts ...Option) (*Step, error) {
	if store == nil {
		return nil, fmt.Errorf("taskrun: storage driver is required")
	}
	if _, err := ResolveTarget(rc); err != nil {
		return nil, err
	}
	if _, err := ResolveDependencies(rc); err != nil {
		return nil, err
	}
	s := &Step{
		rc:      rc,
		store:   store,
		run:     run,
		charset: storage.DefaultCharset,
		log: logrus.WithFields(logrus.Fields{
			"run":  rc.RunID,
			"step": rc.StepID,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Context returns the run context the step was built with.
func (s *Step) Context() RunContext {
	return s.rc
}

// TargetKey returns the key this step writes to.
func (s *Step) TargetKey() (storage.Key, error) {
	return ResolveTarget(s.rc)
}

// DependencyKey resolves one declared slot to the upstream step's target key.
func (s *Step) DependencyKey(slot string) (storage.Key, error) {
	upstream, ok := s.rc.Dependencies[slot]
	if !ok {
		return storage.Key{}, fmt.Errorf("taskrun: step %q declares no dependency slot %q", s.rc.StepID, slot)
	}
	return storage.Resolve(s.rc.RunID, upstream, storage.TargetSlot)
}

// ReadDependency reads the payload produced by the upstream step feeding
// slot. An existence probe runs first so a not-yet-produced upstream output
// is reported as storage.ErrNotFound with the slot and upstream step named —
// an ordering problem, distinct in logs from an infrastructure failure.
func (s *Step) ReadDependency(ctx context.Context, slot string) (storage.Payload, error) {
	key, err := s.DependencyKey(slot)
	if err != nil {
		return storage.Payload{}, err
	}
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return storage.Payload{}, err
	}
	if !ok {
		s.log.WithFields(logrus.Fields{
			"slot":     slot,
			"upstream": s.rc.Dependencies[slot],
		}).Warn("dependency output not produced yet")
		return storage.Payload{}, fmt.Errorf("dependency %q (upstream step %q): %w",
			slot, s.rc.Dependencies[slot], storage.ErrNotFound)
	}
	return s.store.Read(ctx, key)
}

// ReadDependencyJSON reads and unmarshals an upstream JSON payload into v.
func (s *Step) ReadDependencyJSON(ctx context.Context, slot string, v any) error {
	p, err := s.ReadDependency(ctx, slot)
	if err != nil {
		return err
	}
	return codec.DecodeJSON(p, v)
}

// ReadDependencyTable reads an upstream CSV payload into records.
func (s *Step) ReadDependencyTable(ctx context.Context, slot string) ([][]string, error) {
	p, err := s.ReadDependency(ctx, slot)
	if err != nil {
		return nil, err
	}
	return codec.DecodeTable(p)
}

// WriteTarget writes the step's own output. Last writer wins; re-running a
// step overwrites its previous output.
func (s *Step) WriteTarget(ctx context.Context, payload storage.Payload) error {
	key, err := s.TargetKey()
	if err != nil {
		return err
	}
	if payload.Kind == storage.PayloadText && payload.Charset == "" {
		payload.Charset = s.charset
	}
	if err := s.store.Write(ctx, key, payload); err != nil {
		s.log.WithField("location", s.store.Location(key)).Error("target write failed")
		return err
	}
	s.log.WithField("location", s.store.Location(key)).Debug("target written")
	return nil
}

// WriteTargetJSON marshals v and writes it as the step's output.
func (s *Step) WriteTargetJSON(ctx context.Context, v any) error {
	p, err := codec.EncodeJSON(v)
	if err != nil {
		return err
	}
	return s.WriteTarget(ctx, p)
}

// WriteTargetTable renders records as CSV and writes them as the step's
// output.
func (s *Step) WriteTargetTable(ctx context.Context, records [][]string) error {
	p, err := codec.EncodeTable(records)
	if err != nil {
		return err
	}
	return s.WriteTarget(ctx, p)
}

// WriteTimestamp writes a marker payload carrying the current time, for
// steps whose only output is the fact that they ran.
func (s *Step) WriteTimestamp(ctx context.Context) error {
	return s.WriteTargetJSON(ctx, map[string]string{"RUN": time.Now().Format(time.RFC3339)})
}

// Run executes the constructor-supplied body.
func (s *Step) Run(ctx context.Context) error {
	if s.run == nil {
		return fmt.Errorf("taskrun: step %q has no run function", s.rc.StepID)
	}
	return s.run(ctx, s)
}
