package detector

import (
	"math"
	"testing"

	"spillwatch-worker/internal/models"
)

func box(confidence float64, bbox [4]float64) models.Detection {
	return models.NewDetection(0, "Oil Spill", confidence, bbox)
}

func TestIOU(t *testing.T) {
	cases := []struct {
		name string
		a, b [4]float64
		want float64
	}{
		{"identical", [4]float64{0, 0, 10, 10}, [4]float64{0, 0, 10, 10}, 1.0},
		{"disjoint", [4]float64{0, 0, 10, 10}, [4]float64{20, 20, 30, 30}, 0.0},
		{"half overlap", [4]float64{0, 0, 10, 10}, [4]float64{5, 0, 15, 10}, 50.0 / 150.0},
		{"touching edge", [4]float64{0, 0, 10, 10}, [4]float64{10, 0, 20, 10}, 0.0},
	}

	for _, tc := range cases {
		if got := iou(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: iou=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNonMaxSuppressKeepsHighestConfidence(t *testing.T) {
	detections := []models.Detection{
		box(0.6, [4]float64{0, 0, 100, 100}),
		box(0.9, [4]float64{5, 5, 105, 105}), // heavy overlap with the first
		box(0.8, [4]float64{300, 300, 400, 400}),
	}

	kept := nonMaxSuppress(detections, 0.45)

	if len(kept) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(kept))
	}
	if kept[0].Confidence != 0.9 {
		t.Fatalf("expected strongest box first, got %v", kept[0].Confidence)
	}
	if kept[1].Confidence != 0.8 {
		t.Fatalf("expected distant box kept, got %v", kept[1].Confidence)
	}
}

func TestNonMaxSuppressDisjointBoxesSurvive(t *testing.T) {
	detections := []models.Detection{
		box(0.5, [4]float64{0, 0, 10, 10}),
		box(0.7, [4]float64{50, 50, 60, 60}),
		box(0.6, [4]float64{100, 100, 110, 110}),
	}

	kept := nonMaxSuppress(detections, 0.45)
	if len(kept) != 3 {
		t.Fatalf("disjoint boxes must all survive, got %d", len(kept))
	}
}

func TestNonMaxSuppressEmpty(t *testing.T) {
	if kept := nonMaxSuppress(nil, 0.45); len(kept) != 0 {
		t.Fatalf("expected no survivors, got %d", len(kept))
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(-5, 0, 100); got != 0 {
		t.Fatalf("clamp below: got %v", got)
	}
	if got := clamp(150, 0, 100); got != 100 {
		t.Fatalf("clamp above: got %v", got)
	}
	if got := clamp(42, 0, 100); got != 42 {
		t.Fatalf("clamp inside: got %v", got)
	}
}
