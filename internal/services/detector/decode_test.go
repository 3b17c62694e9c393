package detector

import (
	"reflect"
	"testing"
)

// syntheticHead builds an attribute-major [4+1, n] output with one class and
// disjoint boxes whose scores rise with the candidate index.
func syntheticHead(scores []float32) []float32 {
	n := len(scores)
	head := make([]float32, 5*n)
	for j, score := range scores {
		head[0*n+j] = float32(80 + 150*j) // cx, spaced so boxes never overlap
		head[1*n+j] = 100                 // cy
		head[2*n+j] = 50                  // w
		head[3*n+j] = 50                  // h
		head[4*n+j] = score
	}
	return head
}

func TestDecodeOutputThresholdMonotonic(t *testing.T) {
	head := syntheticHead([]float32{0.2, 0.5, 0.7, 0.9})
	names := []string{"Oil Spill"}

	cases := []struct {
		threshold float32
		want      int
	}{
		{0.1, 4},
		{0.3, 3},
		{0.6, 2},
		{0.8, 1},
		{0.95, 0},
	}

	prev := len(head)
	for _, tc := range cases {
		got := nonMaxSuppress(decodeOutput(head, 4, names, 1, 1, 640, 640, tc.threshold), iouThreshold)
		if len(got) != tc.want {
			t.Fatalf("threshold %.2f: expected %d detections, got %d", tc.threshold, tc.want, len(got))
		}
		if len(got) > prev {
			t.Fatalf("raising the threshold must never add detections: %d -> %d at %.2f",
				prev, len(got), tc.threshold)
		}
		prev = len(got)
	}
}

func TestDecodeOutputDeterministic(t *testing.T) {
	head := syntheticHead([]float32{0.3, 0.85, 0.6})
	names := []string{"Oil Spill"}

	first := nonMaxSuppress(decodeOutput(head, 3, names, 1.5, 1.5, 960, 960, 0.25), iouThreshold)
	second := nonMaxSuppress(decodeOutput(head, 3, names, 1.5, 1.5, 960, 960, 0.25), iouThreshold)

	if len(first) != 3 {
		t.Fatalf("expected 3 detections, got %d", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs must decode identically:\n%+v\n%+v", first, second)
	}
}

func TestDecodeOutputScalesAndClamps(t *testing.T) {
	// One candidate near the origin: the scaled left edge would go negative
	// without clamping.
	n := 1
	head := make([]float32, 5*n)
	head[0] = 10  // cx
	head[1] = 10  // cy
	head[2] = 40  // w
	head[3] = 40  // h
	head[4] = 0.9 // score

	got := decodeOutput(head, n, []string{"Oil Spill"}, 2, 2, 1280, 1280, 0.25)
	if len(got) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(got))
	}
	box := got[0].BBox
	if box[0] != 0 || box[1] != 0 {
		t.Fatalf("corners must clamp to the frame, got %v", box)
	}
	if box[2] != 60 || box[3] != 60 {
		t.Fatalf("expected scaled right corner (60, 60), got %v", box)
	}
	if got[0].ClassName != "Oil Spill" {
		t.Fatalf("unexpected class name %q", got[0].ClassName)
	}
}
