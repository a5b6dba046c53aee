package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-verify/internal/database"
)

func TestMockRunStore(t *testing.T) {
	ctx := context.Background()
	store := NewMockRunStore()
	sweep := uuid.New()

	for _, v := range []float64{100, 10, 50} {
		run := &database.StoredRun{SweepID: sweep, SweepName: "fixed-epochs", Parameter: "epochs", Value: v}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		if run.ID == uuid.Nil || run.CreatedAt.IsZero() {
			t.Errorf("expected ID and timestamp to be assigned")
		}
	}
	if err := store.SaveRun(ctx, &database.StoredRun{SweepID: uuid.New(), Value: 1}); err != nil {
		t.Fatal(err)
	}

	t.Run("GetSweepRuns", func(t *testing.T) {
		runs, err := store.GetSweepRuns(ctx, sweep)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 3 || runs[0].Value != 10 || runs[2].Value != 100 {
			t.Errorf("unexpected runs %+v", runs)
		}
	})

	t.Run("GetRun", func(t *testing.T) {
		first := store.Runs()[0]
		got, err := store.GetRun(ctx, first.ID)
		if err != nil || got == nil || got.Value != first.Value {
			t.Errorf("GetRun = %+v, %v", got, err)
		}
		missing, err := store.GetRun(ctx, uuid.New())
		if err != nil || missing != nil {
			t.Errorf("expected nil for unknown run, got %+v, %v", missing, err)
		}
	})

	t.Run("ListSweeps", func(t *testing.T) {
		sweeps, err := store.ListSweeps(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(sweeps) != 2 {
			t.Errorf("expected 2 sweeps, got %d", len(sweeps))
		}
	})

	t.Run("DeleteSweep", func(t *testing.T) {
		n, err := store.DeleteSweep(ctx, sweep)
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 || len(store.Runs()) != 1 {
			t.Errorf("deleted %d, %d left", n, len(store.Runs()))
		}
	})

	t.Run("error injection", func(t *testing.T) {
		want := errors.New("db down")
		store.SaveRunError = want
		if err := store.SaveRun(ctx, &database.StoredRun{}); !errors.Is(err, want) {
			t.Errorf("expected injected error, got %v", err)
		}
	})
}
