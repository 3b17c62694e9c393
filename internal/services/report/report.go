// Package report renders detection results into exportable payloads. Frame
// buffers retained by the video pipeline are never serialized into any
// report format.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"spillwatch-worker/internal/models"
)

// Metadata carries free-form image/operation details printed at the top of
// a report.
type Metadata map[string]string

// GenerateText renders a plain-text detection report.
func GenerateText(detections []models.Detection, st models.FrameStatistics, meta Metadata) []byte {
	var b strings.Builder
	banner := strings.Repeat("=", 60)
	divider := strings.Repeat("-", 60)

	b.WriteString(banner + "\n")
	b.WriteString("OIL SPILL DETECTION REPORT\n")
	b.WriteString(banner + "\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	if len(meta) > 0 {
		b.WriteString("IMAGE INFORMATION:\n")
		b.WriteString(divider + "\n")
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("  %s: %s\n", k, meta[k]))
		}
		b.WriteString("\n")
	}

	b.WriteString("DETECTION STATISTICS:\n")
	b.WriteString(divider + "\n")
	b.WriteString(fmt.Sprintf("  Total Detections: %d\n", st.TotalDetections))
	b.WriteString(fmt.Sprintf("  Average Confidence: %.4f\n", st.AvgConfidence))
	b.WriteString(fmt.Sprintf("  Max Confidence: %.4f\n", st.MaxConfidence))
	b.WriteString(fmt.Sprintf("  Min Confidence: %.4f\n", st.MinConfidence))
	b.WriteString(fmt.Sprintf("  Coverage Percentage: %.2f%%\n", st.CoveragePercentage))
	b.WriteString(fmt.Sprintf("  Total Spill Area: %.2f pixels\n", st.TotalSpillArea))
	b.WriteString("\n")

	b.WriteString("DETECTION DETAILS:\n")
	b.WriteString(divider + "\n")
	if len(detections) == 0 {
		b.WriteString("  No detections found.\n")
	} else {
		for i, det := range detections {
			b.WriteString(fmt.Sprintf("  Detection %d:\n", i+1))
			b.WriteString(fmt.Sprintf("    Class: %s\n", det.ClassName))
			b.WriteString(fmt.Sprintf("    Confidence: %.4f\n", det.Confidence))
			b.WriteString(fmt.Sprintf("    Bounding Box: [%.2f, %.2f, %.2f, %.2f]\n",
				det.BBox[0], det.BBox[1], det.BBox[2], det.BBox[3]))
			b.WriteString(fmt.Sprintf("    Area: %.2f pixels\n\n", det.Area))
		}
	}

	b.WriteString(banner + "\n")
	return []byte(b.String())
}

// GenerateCSV renders one row per detection. An empty detection list yields
// an empty payload.
func GenerateCSV(detections []models.Detection) ([]byte, error) {
	if len(detections) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Class", "Confidence", "X1", "Y1", "X2", "Y2", "Area"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, det := range detections {
		row := []string{
			det.ClassName,
			fmt.Sprintf("%.4f", det.Confidence),
			fmt.Sprintf("%.2f", det.BBox[0]),
			fmt.Sprintf("%.2f", det.BBox[1]),
			fmt.Sprintf("%.2f", det.BBox[2]),
			fmt.Sprintf("%.2f", det.BBox[3]),
			fmt.Sprintf("%.2f", det.Area),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type jsonReport struct {
	Timestamp  string             `json:"timestamp"`
	Statistics interface{}        `json:"statistics"`
	Detections []models.Detection `json:"detections"`
}

// GenerateJSON renders the full result as an indented JSON document. The
// statistics value may be FrameStatistics or VideoStatistics; retained frame
// buffers are excluded from serialization by the model's field tags.
func GenerateJSON(detections []models.Detection, statistics interface{}) ([]byte, error) {
	if detections == nil {
		detections = []models.Detection{}
	}

	r := jsonReport{
		Timestamp:  time.Now().Format(time.RFC3339),
		Statistics: statistics,
		Detections: detections,
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json report: %w", err)
	}
	return out, nil
}
