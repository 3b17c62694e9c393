// Package activitylog is the durable record of every processing operation:
// input/output artifacts copied into a fixed directory tree plus one row per
// operation in a tabular CSV log.
//
// The contract is best effort and non-blocking: methods return an error the
// caller may inspect, but a detection flow must never be aborted because its
// log write failed.
package activitylog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/logging"
	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/observability"
)

// columns is the superset schema across all action kinds. Absent fields stay
// empty for a given row. Order is fixed; existing logs depend on it.
var columns = []string{
	"Date",
	"Time",
	"Day",
	"Action_Type",
	"Input_File",
	"Output_File",
	"Original_Filename",
	"Total_Detections",
	"Avg_Confidence",
	"Coverage_Percentage",
	"Total_Frames",
	"Frames_with_Detections",
	"Avg_Detections_per_Frame",
	"Frames_Processed",
	"Detection_Details",
	"Statistics",
	"Comparison_Results",
	"Associated_Action",
	"Timestamp",
}

// Entry is one completed operation, field-per-column.
type Entry struct {
	Date                  string `json:"date"`
	Time                  string `json:"time"`
	Day                   string `json:"day"`
	ActionType            string `json:"action_type"`
	InputFile             string `json:"input_file"`
	OutputFile            string `json:"output_file"`
	OriginalFilename      string `json:"original_filename"`
	TotalDetections       string `json:"total_detections,omitempty"`
	AvgConfidence         string `json:"avg_confidence,omitempty"`
	CoveragePercentage    string `json:"coverage_percentage,omitempty"`
	TotalFrames           string `json:"total_frames,omitempty"`
	FramesWithDetections  string `json:"frames_with_detections,omitempty"`
	AvgDetectionsPerFrame string `json:"avg_detections_per_frame,omitempty"`
	FramesProcessed       string `json:"frames_processed,omitempty"`
	DetectionDetails      string `json:"detection_details,omitempty"`
	Statistics            string `json:"statistics,omitempty"`
	ComparisonResults     string `json:"comparison_results,omitempty"`
	AssociatedAction      string `json:"associated_action,omitempty"`
	Timestamp             string `json:"timestamp"`
}

func (e *Entry) record() []string {
	return []string{
		e.Date, e.Time, e.Day, e.ActionType, e.InputFile, e.OutputFile,
		e.OriginalFilename, e.TotalDetections, e.AvgConfidence,
		e.CoveragePercentage, e.TotalFrames, e.FramesWithDetections,
		e.AvgDetectionsPerFrame, e.FramesProcessed, e.DetectionDetails,
		e.Statistics, e.ComparisonResults, e.AssociatedAction, e.Timestamp,
	}
}

// Artifact is either raw bytes or a path to an existing file. When Path is
// set the file is copied without re-encoding.
type Artifact struct {
	Data []byte
	Path string
}

// Service owns the record directory tree and the tabular log file
// exclusively. The mutex serializes the read-modify-write log update within
// this process; concurrent writers from other processes remain an accepted
// limitation of the format.
type Service struct {
	baseDir   string
	inputDir  string
	outputDir string
	logFile   string

	mutex  sync.Mutex
	logger zerolog.Logger
}

func NewService(cfg *config.Config) (*Service, error) {
	s := &Service{
		baseDir:   cfg.RecordDir,
		inputDir:  filepath.Join(cfg.RecordDir, "inputs"),
		outputDir: filepath.Join(cfg.RecordDir, "outputs"),
		logFile:   filepath.Join(cfg.RecordDir, "activity_log.csv"),
		logger:    logging.NewServiceLogger(cfg, "activitylog"),
	}

	for _, dir := range []string{
		filepath.Join(s.inputDir, "images"),
		filepath.Join(s.inputDir, "videos"),
		filepath.Join(s.outputDir, "images"),
		filepath.Join(s.outputDir, "videos"),
		filepath.Join(s.outputDir, "reports"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create record directory %s: %w", dir, err)
		}
	}

	return s, nil
}

// BaseDir returns the root of the record tree.
func (s *Service) BaseDir() string { return s.baseDir }

// LogFile returns the tabular log path.
func (s *Service) LogFile() string { return s.logFile }

type timestampInfo struct {
	date     string
	clock    string
	day      string
	datetime string
}

func nowInfo() timestampInfo {
	now := time.Now()
	return timestampInfo{
		date:     now.Format("2006-01-02"),
		clock:    now.Format("15:04:05"),
		day:      now.Format("Monday"),
		datetime: now.Format("2006-01-02 15:04:05"),
	}
}

// saveArtifact stores the artifact under the two-tier layout with a sortable
// timestamp prefix to avoid collisions.
func (s *Service) saveArtifact(a Artifact, originalFilename, kind string, input bool) (string, error) {
	prefix := time.Now().Format("20060102_150405")
	ext := filepath.Ext(originalFilename)
	stem := strings.TrimSuffix(filepath.Base(originalFilename), ext)
	newName := fmt.Sprintf("%s_%s%s", prefix, stem, ext)

	dir := s.outputDir
	if input {
		dir = s.inputDir
	}
	savePath := filepath.Join(dir, kind+"s", newName)

	if a.Path != "" {
		if err := copyFile(a.Path, savePath); err != nil {
			return "", fmt.Errorf("copy artifact: %w", err)
		}
		return savePath, nil
	}

	if err := os.WriteFile(savePath, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return savePath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// appendEntry loads the full table, appends one row and rewrites the table.
// Existing rows are never modified.
func (s *Service) appendEntry(e *Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rows := s.loadRows()
	rows = append(rows, e.record())

	f, err := os.Create(s.logFile)
	if err != nil {
		observability.ActivityLogWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		observability.ActivityLogWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("write activity log header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		observability.ActivityLogWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("write activity log rows: %w", err)
	}

	observability.ActivityLogWrites.WithLabelValues("ok").Inc()
	return nil
}

// loadRows reads the existing table body. A missing or corrupt file yields
// an empty table rather than an error; the log must keep accepting rows.
func (s *Service) loadRows() [][]string {
	f, err := os.Open(s.logFile)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Activity log unreadable, starting a fresh table")
		return nil
	}
	if len(records) <= 1 {
		return nil
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(columns))
		copy(row, rec)
		rows = append(rows, row)
	}
	return rows
}

// Entries returns every logged row, oldest first.
func (s *Service) Entries() []Entry {
	s.mutex.Lock()
	rows := s.loadRows()
	s.mutex.Unlock()

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			Date: r[0], Time: r[1], Day: r[2], ActionType: r[3],
			InputFile: r[4], OutputFile: r[5], OriginalFilename: r[6],
			TotalDetections: r[7], AvgConfidence: r[8], CoveragePercentage: r[9],
			TotalFrames: r[10], FramesWithDetections: r[11],
			AvgDetectionsPerFrame: r[12], FramesProcessed: r[13],
			DetectionDetails: r[14], Statistics: r[15], ComparisonResults: r[16],
			AssociatedAction: r[17], Timestamp: r[18],
		})
	}
	return entries
}

// LogImageDetection records one still-image detection run plus its artifacts.
func (s *Service) LogImageDetection(input Artifact, annotated []byte,
	detections []models.Detection, st *models.FrameStatistics, filename string) (*Entry, error) {

	info := nowInfo()
	if filename == "" {
		filename = "image.jpg"
	}

	inputPath, err := s.saveArtifact(input, filename, "image", true)
	if err != nil {
		return nil, err
	}

	outputPath := ""
	if annotated != nil {
		outputPath, err = s.saveArtifact(Artifact{Data: annotated}, "annotated_"+filename, "image", false)
		if err != nil {
			return nil, err
		}
	}

	entry := &Entry{
		Date: info.date, Time: info.clock, Day: info.day,
		ActionType:       "Image Detection",
		InputFile:        inputPath,
		OutputFile:       outputPath,
		OriginalFilename: filename,
		DetectionDetails: JSONSafeDumps(detections),
		Statistics:       JSONSafeDumps(st),
		Timestamp:        info.datetime,
	}
	entry.TotalDetections = "0"
	entry.AvgConfidence = "0.0000"
	entry.CoveragePercentage = "0.00%"
	if st != nil {
		entry.TotalDetections = fmt.Sprintf("%d", st.TotalDetections)
		entry.AvgConfidence = fmt.Sprintf("%.4f", st.AvgConfidence)
		entry.CoveragePercentage = fmt.Sprintf("%.2f%%", st.CoveragePercentage)
	}

	if err := s.appendEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LogVideoDetection records one video detection run plus its artifacts.
func (s *Service) LogVideoDetection(input Artifact, outputVideoPath string,
	st *models.VideoStatistics, filename string) (*Entry, error) {

	info := nowInfo()
	if filename == "" {
		filename = "video.mp4"
	}

	inputPath, err := s.saveArtifact(input, filename, "video", true)
	if err != nil {
		return nil, err
	}

	outputPath := ""
	if outputVideoPath != "" {
		if _, statErr := os.Stat(outputVideoPath); statErr == nil {
			outputPath, err = s.saveArtifact(Artifact{Path: outputVideoPath}, "annotated_"+filename, "video", false)
			if err != nil {
				return nil, err
			}
		}
	}

	entry := &Entry{
		Date: info.date, Time: info.clock, Day: info.day,
		ActionType:       "Video Detection",
		InputFile:        inputPath,
		OutputFile:       outputPath,
		OriginalFilename: filename,
		Statistics:       JSONSafeDumps(st),
		Timestamp:        info.datetime,
	}
	entry.TotalFrames = "0"
	entry.FramesWithDetections = "0"
	entry.TotalDetections = "0"
	entry.AvgDetectionsPerFrame = "0.00"
	if st != nil {
		entry.TotalFrames = fmt.Sprintf("%d", st.TotalFrames)
		entry.FramesWithDetections = fmt.Sprintf("%d", st.FramesWithDetections)
		entry.TotalDetections = fmt.Sprintf("%d", st.TotalDetections)
		entry.AvgDetectionsPerFrame = fmt.Sprintf("%.2f", st.AvgDetectionsPerFrame)
	}

	if err := s.appendEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LogCameraDetection records the final aggregate of a live camera session.
// Camera frames produce no stored artifacts.
func (s *Service) LogCameraDetection(detections []models.Detection,
	st *models.CameraStatistics, frameCount int) (*Entry, error) {

	info := nowInfo()

	entry := &Entry{
		Date: info.date, Time: info.clock, Day: info.day,
		ActionType:       "Real-time Camera Detection",
		InputFile:        "Camera Feed",
		OutputFile:       "N/A",
		OriginalFilename: "camera_feed",
		FramesProcessed:  fmt.Sprintf("%d", frameCount),
		DetectionDetails: JSONSafeDumps(detections),
		Statistics:       JSONSafeDumps(st),
		Timestamp:        info.datetime,
	}
	entry.TotalDetections = "0"
	entry.AvgConfidence = "0.0000"
	if st != nil {
		entry.TotalDetections = fmt.Sprintf("%d", st.TotalDetections)
		entry.AvgConfidence = fmt.Sprintf("%.4f", st.AvgConfidence)
	}

	if err := s.appendEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LogComparison records a comparison-mode run over a set of input files.
func (s *Service) LogComparison(comparisonType string, files []string, results interface{}) (*Entry, error) {
	info := nowInfo()

	inputFiles := "N/A"
	originalNames := "N/A"
	if len(files) > 0 {
		inputFiles = strings.Join(files, "; ")
		bases := make([]string, len(files))
		for i, f := range files {
			bases[i] = filepath.Base(f)
		}
		originalNames = strings.Join(bases, "; ")
	}

	entry := &Entry{
		Date: info.date, Time: info.clock, Day: info.day,
		ActionType:        "Comparison Mode - " + comparisonType,
		InputFile:         inputFiles,
		OutputFile:        "N/A",
		OriginalFilename:  originalNames,
		ComparisonResults: JSONSafeDumps(results),
		Timestamp:         info.datetime,
	}

	if err := s.appendEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LogReportGeneration stores the report artifact and records the operation.
func (s *Service) LogReportGeneration(reportType string, reportData []byte,
	originalFilename, associatedAction string) (*Entry, error) {

	info := nowInfo()

	reportName := fmt.Sprintf("report_%s_%s.%s",
		info.date, strings.ReplaceAll(info.clock, ":", ""), strings.ToLower(reportType))
	reportPath, err := s.saveArtifact(Artifact{Data: reportData}, reportName, "report", false)
	if err != nil {
		return nil, err
	}

	if originalFilename == "" {
		originalFilename = "N/A"
	}
	if associatedAction == "" {
		associatedAction = "N/A"
	}

	entry := &Entry{
		Date: info.date, Time: info.clock, Day: info.day,
		ActionType:       "Report Generation - " + reportType,
		InputFile:        originalFilename,
		OutputFile:       reportPath,
		OriginalFilename: originalFilename,
		AssociatedAction: associatedAction,
		Timestamp:        info.datetime,
	}

	if err := s.appendEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}
