package taskrun

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fileflow/internal/storage"
)

// failDriver fails the test on any backend call. It proves identifier
// validation happens before I/O.
type failDriver struct {
	t *testing.T
}

func (d failDriver) Write(context.Context, storage.Key, storage.Payload) error {
	d.t.Error("Write called")
	return nil
}

func (d failDriver) Read(context.Context, storage.Key) (storage.Payload, error) {
	d.t.Error("Read called")
	return storage.Payload{}, nil
}

func (d failDriver) Exists(context.Context, storage.Key) (bool, error) {
	d.t.Error("Exists called")
	return false, nil
}

func (d failDriver) List(context.Context, string, string) ([]string, error) {
	d.t.Error("List called")
	return nil, nil
}

func (d failDriver) Location(storage.Key) string { return "" }

func TestStepPipelineHandoff(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryDriver()

	extract, err := NewStep(RunContext{RunID: "run42", StepID: "extract"}, store,
		func(ctx context.Context, step *Step) error {
			return step.WriteTarget(ctx, storage.Text(`{"rows": 10}`))
		})
	if err != nil {
		t.Fatalf("NewStep extract: %v", err)
	}
	if err := extract.Run(ctx); err != nil {
		t.Fatalf("extract.Run: %v", err)
	}

	var got string
	transform, err := NewStep(RunContext{
		RunID:        "run42",
		StepID:       "transform",
		Dependencies: map[string]string{"input": "extract"},
	}, store, func(ctx context.Context, step *Step) error {
		p, err := step.ReadDependency(ctx, "input")
		if err != nil {
			return err
		}
		got = p.Text()
		return step.WriteTimestamp(ctx)
	})
	if err != nil {
		t.Fatalf("NewStep transform: %v", err)
	}
	if err := transform.Run(ctx); err != nil {
		t.Fatalf("transform.Run: %v", err)
	}
	if got != `{"rows": 10}` {
		t.Fatalf("dependency payload: got %q", got)
	}

	// The timestamp marker lands under transform's own target key.
	key, err := ResolveTarget(transform.Context())
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	p, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if !strings.Contains(p.Text(), "RUN") {
		t.Fatalf("marker payload: got %q", p.Text())
	}
}

func TestStepReadDependencyNotProduced(t *testing.T) {
	store := storage.NewMemoryDriver()
	step, err := NewStep(RunContext{
		RunID:        "run1",
		StepID:       "transform",
		Dependencies: map[string]string{"input": "extract"},
	}, store, nil)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}

	_, err = step.ReadDependency(context.Background(), "input")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	// The error names the slot and upstream step so the ordering problem is
	// identifiable.
	if !strings.Contains(err.Error(), "input") || !strings.Contains(err.Error(), "extract") {
		t.Fatalf("error should name slot and upstream: %v", err)
	}
}

func TestStepUndeclaredSlot(t *testing.T) {
	store := storage.NewMemoryDriver()
	step, err := NewStep(RunContext{RunID: "run1", StepID: "transform"}, store, nil)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}
	if _, err := step.ReadDependency(context.Background(), "input"); err == nil {
		t.Fatal("undeclared slot accepted")
	}
}

func TestStepInvalidSlotFailsBeforeIO(t *testing.T) {
	_, err := NewStep(RunContext{
		RunID:        "run1",
		StepID:       "transform",
		Dependencies: map[string]string{"bad/slot": "extract"},
	}, failDriver{t: t}, nil)
	if !errors.Is(err, storage.ErrInvalidIdentifier) {
		t.Fatalf("got %v, want ErrInvalidIdentifier", err)
	}
}

func TestStepJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryDriver()

	producer, err := NewStep(RunContext{RunID: "run1", StepID: "count"}, store, nil)
	if err != nil {
		t.Fatalf("NewStep producer: %v", err)
	}
	if err := producer.WriteTargetJSON(ctx, map[string]int{"rows": 10}); err != nil {
		t.Fatalf("WriteTargetJSON: %v", err)
	}

	consumer, err := NewStep(RunContext{
		RunID:        "run1",
		StepID:       "report",
		Dependencies: map[string]string{"counts": "count"},
	}, store, nil)
	if err != nil {
		t.Fatalf("NewStep consumer: %v", err)
	}
	var got map[string]int
	if err := consumer.ReadDependencyJSON(ctx, "counts", &got); err != nil {
		t.Fatalf("ReadDependencyJSON: %v", err)
	}
	if got["rows"] != 10 {
		t.Fatalf("got %v", got)
	}
}

func TestStepTableHelpers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryDriver()

	producer, err := NewStep(RunContext{RunID: "run1", StepID: "export"}, store, nil)
	if err != nil {
		t.Fatalf("NewStep producer: %v", err)
	}
	records := [][]string{{"id", "value"}, {"1", "a,b"}}
	if err := producer.WriteTargetTable(ctx, records); err != nil {
		t.Fatalf("WriteTargetTable: %v", err)
	}

	consumer, err := NewStep(RunContext{
		RunID:        "run1",
		StepID:       "ingest",
		Dependencies: map[string]string{"rows": "export"},
	}, store, nil)
	if err != nil {
		t.Fatalf("NewStep consumer: %v", err)
	}
	got, err := consumer.ReadDependencyTable(ctx, "rows")
	if err != nil {
		t.Fatalf("ReadDependencyTable: %v", err)
	}
	if len(got) != 2 || got[1][1] != "a,b" {
		t.Fatalf("got %v", got)
	}
}

func TestStepRunRequiresBody(t *testing.T) {
	step, err := NewStep(RunContext{RunID: "run1", StepID: "noop"}, storage.NewMemoryDriver(), nil)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}
	if err := step.Run(context.Background()); err == nil {
		t.Fatal("Run with no body accepted")
	}
}

func TestStepRequiresDriver(t *testing.T) {
	if _, err := NewStep(RunContext{RunID: "run1", StepID: "noop"}, nil, nil); err == nil {
		t.Fatal("nil driver accepted")
	}
}
