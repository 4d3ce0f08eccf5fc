// package formatter renders queue reports and ledger rows as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
	"github.com/desertthunder/ytq/internal/tasks"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "text", "csv", "markdown" or "md". Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

var reportHeaders = []string{"Job", "Title", "Video Path", "State", "Video ID", "Privacy", "Publish At", "Duration", "Error"}

// ReportToCSV converts a run report to CSV with one row per attempted job
func ReportToCSV(report *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, res := range report.Results {
		record := []string{
			res.JobID,
			res.Title,
			res.VideoPath,
			res.State.String(),
			res.VideoID,
			string(res.Privacy),
			formatTime(res.PublishAt),
			res.Duration.Round(time.Millisecond).String(),
			shared.Reason(res.Err),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown converts a run report to Markdown with a summary and a results table
func ReportToMarkdown(report *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Upload Report: %s\n\n", report.Channel))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", formatTime(&report.Started)))
	buf.WriteString(fmt.Sprintf("**Finished**: %s\n", formatTime(&report.Finished)))
	buf.WriteString(fmt.Sprintf("**Uploaded**: %d\n", report.Succeeded()))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n", report.Failed()))
	if report.Stopped {
		buf.WriteString(fmt.Sprintf("**Cancelled**: %d (stopped)\n", report.Cancelled()))
	}
	buf.WriteString("\n")

	if len(report.Results) == 0 {
		buf.WriteString("_No jobs were attempted._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("## Jobs\n\n")
	buf.WriteString("| # | Title | State | Video | Notes |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for i, res := range report.Results {
		video := res.VideoID
		if video != "" {
			video = fmt.Sprintf("[%s](https://youtu.be/%s)", video, video)
		}

		notes := shared.Reason(res.Err)
		if notes == "" && res.PublishAt != nil {
			notes = "scheduled " + formatTime(res.PublishAt)
		}

		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, escapeCell(title(res)), res.State, video, escapeCell(notes)))
	}

	return buf.Bytes(), nil
}

// ReportToText converts a run report to plain text
func ReportToText(report *tasks.Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Channel: %s\n", report.Channel))
	buf.WriteString(fmt.Sprintf("Uploaded: %d  Failed: %d", report.Succeeded(), report.Failed()))
	if report.Stopped {
		buf.WriteString(fmt.Sprintf("  Cancelled: %d", report.Cancelled()))
	}
	buf.WriteString("\n\n")

	for i, res := range report.Results {
		line := fmt.Sprintf("%d. %s [%s]", i+1, title(res), res.State)
		switch {
		case res.Err != nil:
			line += " " + shared.Reason(res.Err)
		case res.VideoID != "":
			line += " " + res.VideoID
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// FormatReport renders report in the given format
func FormatReport(report *tasks.Report, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ReportToCSV(report)
	case FormatMarkdown:
		return ReportToMarkdown(report)
	case FormatText, "":
		return ReportToText(report)
	default:
		return nil, fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteReport renders report and writes it to path.
//
// An empty path defaults to report_{channel}_{timestamp} with the format's extension in the working directory.
func WriteReport(report *tasks.Report, format Format, path string) (string, error) {
	if path == "" {
		name := strings.ReplaceAll(report.Channel.String(), "/", "_")
		path = fmt.Sprintf("report_%s_%s%s", name, report.Started.UTC().Format("20060102T150405"), format.Extension())
	}

	data, err := FormatReport(report, format)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

var recordHeaders = []string{"Sequence", "Channel", "Job", "Title", "Video Path", "State", "Video ID", "Privacy", "Publish At", "Recorded At", "Error"}

// RecordsToCSV converts ledger rows to CSV
func RecordsToCSV(records []*models.UploadRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(recordHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		createdAt := rec.CreatedAt()
		row := []string{
			fmt.Sprint(rec.Sequence()),
			rec.Channel,
			rec.JobID,
			rec.Title,
			rec.VideoPath,
			rec.State.String(),
			rec.VideoID,
			string(rec.Privacy),
			formatTime(rec.PublishAt),
			formatTime(&createdAt),
			rec.Error,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RecordsToText converts ledger rows to one line each
func RecordsToText(records []*models.UploadRecord) []byte {
	var buf bytes.Buffer

	if len(records) == 0 {
		buf.WriteString("No uploads recorded.\n")
		return buf.Bytes()
	}

	for _, rec := range records {
		name := rec.Title
		if name == "" {
			name = filepath.Base(rec.VideoPath)
		}

		line := fmt.Sprintf("#%d %s %s %s [%s]", rec.Sequence(), rec.CreatedAt().Local().Format("2006-01-02 15:04"),
			rec.Channel, name, rec.State)
		switch {
		case rec.Error != "":
			line += " " + rec.Error
		case rec.VideoID != "":
			line += " " + rec.VideoID
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes()
}

func title(res tasks.JobResult) string {
	if res.Title != "" {
		return res.Title
	}
	return filepath.Base(res.VideoPath)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
