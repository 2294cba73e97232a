package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/agentstation/boardstream/internal/registry"
	"github.com/agentstation/boardstream/pkg/events"
)

// StatsToTableData renders registry stats as one row per connection.
func StatsToTableData(stats registry.Stats) Data {
	rows := make([][]string, 0, len(stats.Connections))
	for _, c := range stats.Connections {
		rows = append(rows, []string{
			c.ID,
			c.Subject,
			c.ConnectedAt.Format(time.RFC3339),
			(time.Duration(c.DurationMs) * time.Millisecond).String(),
		})
	}
	return Data{
		Headers:         []string{"Connection", "Subject", "Connected At", "Duration"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight},
	}
}

// FormatStats writes stats in the requested format.
func FormatStats(w io.Writer, format Format, stats registry.Stats) error {
	switch format {
	case FormatTable, FormatWide, FormatText, "":
		if err := NewFormatter(FormatTable).Format(w, StatsToTableData(stats)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%s connection(s)\n", strconv.Itoa(stats.TotalConnections))
		return err
	default:
		return NewFormatter(format).Format(w, stats)
	}
}

// EventWriter prints streamed events one at a time.
type EventWriter struct {
	w      io.Writer
	format Format
}

// NewEventWriter returns a writer for the given format. Table output is
// not meaningful for a stream, so it falls back to text.
func NewEventWriter(w io.Writer, format Format) *EventWriter {
	if format == FormatTable || format == FormatWide || format == "" {
		format = FormatText
	}
	return &EventWriter{w: w, format: format}
}

// Write prints a single event.
func (e *EventWriter) Write(ev events.Event) error {
	switch e.format {
	case FormatJSON:
		return (&JSONFormatter{}).Format(e.w, ev)
	case FormatYAML:
		if _, err := io.WriteString(e.w, "---\n"); err != nil {
			return err
		}
		return (&YAMLFormatter{}).Format(e.w, yamlEvent(ev))
	default:
		_, err := fmt.Fprintf(e.w, "%s  %-22s %s\n",
			ev.Timestamp.Format(time.RFC3339), ev.Type, ev.Data)
		return err
	}
}

// yamlEvent decodes the payload so it renders as YAML rather than bytes.
func yamlEvent(ev events.Event) map[string]any {
	doc := map[string]any{
		"type":      string(ev.Type),
		"timestamp": ev.Timestamp.Format(time.RFC3339Nano),
	}
	if ev.ID != "" {
		doc["id"] = ev.ID
	}
	var data any
	if err := json.Unmarshal(ev.Data, &data); err == nil {
		doc["data"] = data
	} else {
		doc["data"] = string(ev.Data)
	}
	return doc
}
