// package formatter renders audit reports and run summaries as CSV, JSON, Markdown, or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
)

// Format selects an output encoding for reports.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatText     Format = "text"
)

// ParseFormat maps a flag value to a Format, accepting common aliases.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want csv, json, md, or text)", shared.ErrInvalidFlag, name)
	}
}

// RenderUnfound renders the unfound-track audit in the requested format.
func RenderUnfound(tracks []models.UnfoundTrack, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return UnfoundToCSV(tracks)
	case FormatJSON:
		return UnfoundToJSON(tracks)
	case FormatMarkdown:
		return UnfoundToMarkdown(tracks)
	default:
		return UnfoundToText(tracks)
	}
}

// UnfoundToCSV converts the audit to CSV with columns: Artist, Name, SearchedAt
func UnfoundToCSV(tracks []models.UnfoundTrack) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Artist", "Name", "SearchedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.Artist,
			track.Name,
			track.SearchedAt.UTC().Format(time.RFC3339),
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

// UnfoundToJSON converts the audit to indented JSON.
func UnfoundToJSON(tracks []models.UnfoundTrack) ([]byte, error) {
	return shared.MarshalJSON(tracks, true)
}

// UnfoundToMarkdown converts the audit to a Markdown table.
func UnfoundToMarkdown(tracks []models.UnfoundTrack) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Unfound Tracks\n\n")
	buf.WriteString(fmt.Sprintf("**Count**: %d\n\n", len(tracks)))

	if len(tracks) == 0 {
		buf.WriteString("Every searched identity resolved.\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Artist | Name | Searched |\n")
	buf.WriteString("|---|--------|------|----------|\n")
	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			i+1, track.Artist, track.Name, track.SearchedAt.UTC().Format("2006-01-02")))
	}

	return buf.Bytes(), nil
}

// UnfoundToText converts the audit to plain text.
func UnfoundToText(tracks []models.UnfoundTrack) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Unfound tracks: %d\n", len(tracks)))
	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (searched %s)\n",
			i+1, track.Artist, track.Name, track.SearchedAt.UTC().Format("2006-01-02")))
	}

	return buf.Bytes(), nil
}

// Summary is a titled list of labeled counters produced by a run.
type Summary struct {
	Title string
	Rows  []SummaryRow
}

// SummaryRow is one labeled value in a Summary.
type SummaryRow struct {
	Label string
	Value string
}

// NewSummary creates an empty Summary with the given title.
func NewSummary(title string) Summary {
	return Summary{Title: title}
}

// Add appends a labeled value. Values are stringified with fmt.Sprint.
func (s *Summary) Add(label string, value any) {
	s.Rows = append(s.Rows, SummaryRow{Label: label, Value: fmt.Sprint(value)})
}

// SummaryToText renders the summary as aligned plain text.
func SummaryToText(summary Summary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", summary.Title))

	width := 0
	for _, row := range summary.Rows {
		if len(row.Label) > width {
			width = len(row.Label)
		}
	}
	for _, row := range summary.Rows {
		buf.WriteString(fmt.Sprintf("  %-*s %s\n", width+1, row.Label+":", row.Value))
	}

	return buf.Bytes(), nil
}

// SummaryToCSV renders the summary as CSV with columns: Field, Value
func SummaryToCSV(summary Summary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Field", "Value"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range summary.Rows {
		if err := writer.Write([]string{row.Label, row.Value}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SummaryToMarkdown renders the summary as a Markdown table.
func SummaryToMarkdown(summary Summary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", summary.Title))
	buf.WriteString("| Field | Value |\n")
	buf.WriteString("|-------|-------|\n")
	for _, row := range summary.Rows {
		buf.WriteString(fmt.Sprintf("| %s | %s |\n", row.Label, row.Value))
	}

	return buf.Bytes(), nil
}
