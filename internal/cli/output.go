package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pfrederiksen/cuya-elections/internal/calendar"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatJSONL OutputFormat = "jsonl"
	FormatJSON  OutputFormat = "json"
	FormatText  OutputFormat = "text"
	FormatICS   OutputFormat = "ics"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case FormatJSONL, FormatJSON, FormatText, FormatICS:
		return format, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be 'jsonl', 'json', 'text' or 'ics')", s)
	}
}

// OutputResult contains the meetings of one run for the batch formats
type OutputResult struct {
	RunID        string             `json:"run_id"`
	Agency       string             `json:"agency"`
	ScrapedAt    time.Time          `json:"scraped_at"`
	MeetingCount int                `json:"meeting_count"`
	Skipped      int                `json:"skipped"`
	Dropped      int                `json:"dropped"`
	Meetings     []*meeting.Meeting `json:"meetings"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	case FormatICS:
		return calendar.Write(w, result.Meetings, result.ScrapedAt)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	if result.Meetings == nil {
		result.Meetings = []*meeting.Meeting{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as a table
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if result.MeetingCount == 0 {
		fmt.Fprintln(w, "No meetings found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if result.Agency != "" {
		t.SetTitle("%s", result.Agency)
	}

	header := table.Row{"Start", "Title", "Status", "Documents"}
	if verbose {
		header = append(header, "ID", "Source")
	}
	t.AppendHeader(header)

	for _, m := range result.Meetings {
		start := m.Start.Format("2006-01-02 15:04")
		if m.End != nil {
			start += "-" + m.End.Format("15:04")
		}
		row := table.Row{start, m.Title, string(m.Status), documentTitles(m.Links)}
		if verbose {
			row = append(row, m.ID, m.Source)
		}
		t.AppendRow(row)
	}

	footer := table.Row{"Total", result.MeetingCount, "", fmt.Sprintf("skipped %d, dropped %d", result.Skipped, result.Dropped)}
	if verbose {
		footer = append(footer, "", "")
	}
	t.AppendFooter(footer)

	t.Render()
	return nil
}

func documentTitles(links []meeting.Link) string {
	if len(links) == 0 {
		return "-"
	}
	titles := make([]string, 0, len(links))
	for _, link := range links {
		titles = append(titles, link.Title)
	}
	return strings.Join(titles, ", ")
}
