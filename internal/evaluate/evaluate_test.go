package evaluate_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-verify/internal/classifier"
	"github.com/kozaktomas/face-verify/internal/evaluate"
	"github.com/kozaktomas/face-verify/internal/features"
	"github.com/kozaktomas/face-verify/internal/inference"
	"github.com/kozaktomas/face-verify/internal/inference/mock"
	"github.com/kozaktomas/face-verify/internal/pairs"
	"github.com/kozaktomas/face-verify/internal/train"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		yPred []int
		want  evaluate.Metrics
	}{
		{
			name:  "perfect",
			yTrue: []int{1, 0, 1, 0},
			yPred: []int{1, 0, 1, 0},
			want:  evaluate.Metrics{Accuracy: 1, Precision: 1, Recall: 1, F1: 1},
		},
		{
			name:  "mixed",
			yTrue: []int{1, 1, 1, 0, 0},
			yPred: []int{1, 1, 0, 1, 0},
			// tp=2 fp=1 fn=1 tn=1
			want: evaluate.Metrics{Accuracy: 0.6, Precision: 2.0 / 3, Recall: 2.0 / 3, F1: 2.0 / 3},
		},
		{
			name:  "no positive predictions",
			yTrue: []int{1, 0, 0},
			yPred: []int{0, 0, 0},
			want:  evaluate.Metrics{Accuracy: 2.0 / 3},
		},
		{
			name:  "no positives at all",
			yTrue: []int{0, 0},
			yPred: []int{0, 0},
			want:  evaluate.Metrics{Accuracy: 1},
		},
		{
			name:  "all wrong",
			yTrue: []int{1, 0},
			yPred: []int{0, 1},
			want:  evaluate.Metrics{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluate.Compute(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			check := func(name string, got, want float64) {
				if math.Abs(got-want) > 1e-12 {
					t.Errorf("%s = %v, want %v", name, got, want)
				}
			}
			check("accuracy", got.Accuracy, tt.want.Accuracy)
			check("precision", got.Precision, tt.want.Precision)
			check("recall", got.Recall, tt.want.Recall)
			check("f1", got.F1, tt.want.F1)
		})
	}
}

func TestCompute_Errors(t *testing.T) {
	if _, err := evaluate.Compute(nil, nil); !errors.Is(err, evaluate.ErrEmptyEvaluationSet) {
		t.Errorf("expected ErrEmptyEvaluationSet, got %v", err)
	}
	if _, err := evaluate.Compute([]int{1}, []int{1, 0}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func writeFace(t *testing.T, root, id string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for y := range 12 {
		for x := range 12 {
			img.SetRGBA(x, y, c)
		}
	}
	path := filepath.Join(root, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newExtractor(t *testing.T, root string) *features.Extractor {
	t.Helper()
	model := mock.NewMockModel()
	ic, err := inference.NewContext(context.Background(), model, model, inference.Options{
		Seed:               inference.DefaultSeed,
		RequireAccelerator: true,
		Logger:             slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return features.NewExtractor(ic, root)
}

func identityColor(i int) color.RGBA {
	return color.RGBA{R: uint8(40 + (i*37)%200), G: uint8(40 + (i*91)%200), B: uint8(40 + (i*53)%200), A: 255}
}

// scenario writes 150 identity images and returns 100 pairs where pair i
// joins person_i with person_(100+i%50).
func scenario(t *testing.T) (string, []pairs.Pair) {
	t.Helper()
	root := t.TempDir()
	for i := range 150 {
		writeFace(t, root, fmt.Sprintf("person_%d/0.png", i), identityColor(i))
	}
	table := make([]pairs.Pair, 100)
	for i := range table {
		table[i] = pairs.Pair{
			ImageA: fmt.Sprintf("person_%d/0.png", i),
			ImageB: fmt.Sprintf("person_%d/0.png", 100+i%50),
			Label:  i % 2,
		}
	}
	return root, table
}

func inRange(m evaluate.Metrics) bool {
	for _, v := range []float64{m.Accuracy, m.Precision, m.Recall, m.F1} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func TestEndToEnd(t *testing.T) {
	root, table := scenario(t)
	split, err := pairs.Split(table, 60, 20, pairs.SplitOptions{Seed: 42})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if overlap := pairs.Overlap(split.Train, split.Test); len(overlap) != 0 {
		t.Fatalf("leaked identities: %v", overlap)
	}

	e := newExtractor(t, root)
	b := features.NewBuilder(e)
	ds, err := b.Build(context.Background(), split.Train, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tr := train.NewFixed(42)
	tr.Epochs = 10
	model, _, err := tr.Train(context.Background(), ds)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	m, err := evaluate.NewEvaluator(e).Evaluate(context.Background(), model, split.Test, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !inRange(m) {
		t.Errorf("metrics out of range: %+v", m)
	}
	if model.Mode() != classifier.ModeInference {
		t.Errorf("model left in %v mode", model.Mode())
	}
}

func TestEvaluator_SkipsFailures(t *testing.T) {
	root, table := scenario(t)
	writeFace(t, root, "dark/0.png", color.RGBA{A: 255})
	e := newExtractor(t, root)
	model := classifier.NewSeeded(1, features.EmbeddingDim)

	var logs bytes.Buffer
	ev := evaluate.NewEvaluator(e)
	ev.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	test := []pairs.Pair{
		table[0],
		{ImageA: "dark/0.png", ImageB: "person_1/0.png", Label: 0},
		table[1],
		{ImageA: "nobody.png", ImageB: "person_1/0.png", Label: 1},
	}
	res, err := ev.Run(context.Background(), model, test, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Evaluated != 2 || res.Confusion.Total() != 2 {
		t.Errorf("evaluated = %d, want 2", res.Evaluated)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("skipped = %d, want 2", len(res.Skipped))
	}
	if n := strings.Count(logs.String(), "skipping evaluation pair"); n != 2 {
		t.Errorf("diagnostic records = %d, want 2", n)
	}
	if !inRange(res.Metrics) {
		t.Errorf("metrics out of range: %+v", res.Metrics)
	}
}

func TestEvaluator_AllSkipped(t *testing.T) {
	root := t.TempDir()
	e := newExtractor(t, root)
	ev := evaluate.NewEvaluator(e)
	ev.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	_, err := ev.Evaluate(context.Background(), classifier.NewSeeded(1, features.EmbeddingDim),
		[]pairs.Pair{{ImageA: "a.png", ImageB: "b.png"}}, false)
	if !errors.Is(err, evaluate.ErrEmptyEvaluationSet) {
		t.Errorf("expected ErrEmptyEvaluationSet, got %v", err)
	}
}

func TestEvaluator_AbortPolicy(t *testing.T) {
	root := t.TempDir()
	ev := evaluate.NewEvaluator(newExtractor(t, root))
	ev.Policy = features.FailureAbort

	_, err := ev.Evaluate(context.Background(), classifier.NewSeeded(1, features.EmbeddingDim),
		[]pairs.Pair{{ImageA: "a.png", ImageB: "b.png"}}, false)
	if !errors.Is(err, features.ErrImageLoad) {
		t.Errorf("expected ErrImageLoad, got %v", err)
	}
}
