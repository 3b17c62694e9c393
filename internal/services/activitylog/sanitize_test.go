package activitylog

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"spillwatch-worker/internal/models"
)

func TestJSONSafeDumpsPlainValues(t *testing.T) {
	detections := []models.Detection{
		models.NewDetection(0, "Oil Spill", 0.9, [4]float64{0, 0, 10, 10}),
	}

	out := JSONSafeDumps(detections)

	var decoded []models.Detection
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(decoded) != 1 || decoded[0].Confidence != 0.9 {
		t.Fatalf("round trip lost data: %+v", decoded)
	}
}

func TestJSONSafeDumpsNil(t *testing.T) {
	if got := JSONSafeDumps(nil); got != "null" {
		t.Fatalf("expected null, got %q", got)
	}
}

func TestJSONSafeDumpsUnencodable(t *testing.T) {
	// Channels and functions cannot be marshaled directly; the sanitizer
	// must still produce valid JSON.
	payload := map[string]interface{}{
		"count":   3,
		"handler": func() {},
		"stream":  make(chan int),
	}

	out := JSONSafeDumps(payload)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("sanitized output is not valid JSON: %v\n%s", err, out)
	}
	if decoded["count"] != float64(3) {
		t.Fatalf("plain values must survive sanitization, got %v", decoded["count"])
	}
	if _, ok := decoded["handler"].(string); !ok {
		t.Fatalf("unencodable value should become a string, got %T", decoded["handler"])
	}
}

func TestJSONSafeDumpsNonFiniteFloat(t *testing.T) {
	// Non-finite floats are rejected by the encoder; only the offending
	// value is stringified, sibling fields survive untouched.
	payload := map[string]interface{}{
		"ratio":    math.Inf(1),
		"variance": math.NaN(),
		"count":    3,
		"name":     "frame_12",
	}

	out := JSONSafeDumps(payload)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output must be valid JSON: %v\n%s", err, out)
	}
	if decoded["count"] != float64(3) || decoded["name"] != "frame_12" {
		t.Fatalf("sibling fields must survive, got %v", decoded)
	}
	ratio, ok := decoded["ratio"].(string)
	if !ok || !strings.Contains(ratio, "Inf") {
		t.Fatalf("expected stringified infinity, got %v", decoded["ratio"])
	}
	if variance, ok := decoded["variance"].(string); !ok || variance != "NaN" {
		t.Fatalf("expected stringified NaN, got %v", decoded["variance"])
	}
}

func TestJSONSafeDumpsNonFiniteInSlice(t *testing.T) {
	out := JSONSafeDumps([]interface{}{1.5, math.Inf(-1), 2.5})

	var decoded []interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output must be valid JSON: %v\n%s", err, out)
	}
	if len(decoded) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(decoded))
	}
	if decoded[0] != 1.5 || decoded[2] != 2.5 {
		t.Fatalf("finite neighbors must survive, got %v", decoded)
	}
	if _, ok := decoded[1].(string); !ok {
		t.Fatalf("expected stringified infinity, got %T", decoded[1])
	}
}
