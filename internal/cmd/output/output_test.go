package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/boardstream/internal/registry"
	"github.com/agentstation/boardstream/pkg/events"
)

func sampleStats() registry.Stats {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return registry.Stats{
		TotalConnections: 2,
		Connections: []registry.ConnectionStats{
			{ID: "c-1", Subject: "ana", ConnectedAt: at, DurationMs: 1500},
			{ID: "c-2", Subject: "bot-1", ConnectedAt: at, DurationMs: 60000},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"table", "JSON", "yaml", "wide", "text", ""} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestStatsToTableData(t *testing.T) {
	data := StatsToTableData(sampleStats())

	assert.Equal(t, []string{"Connection", "Subject", "Connected At", "Duration"}, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"c-1", "ana", "2026-03-01T12:00:00Z", "1.5s"}, data.Rows[0])
	assert.Equal(t, "1m0s", data.Rows[1][3])
}

func TestFormatStats(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatStats(&buf, FormatTable, sampleStats()))
		assert.Contains(t, buf.String(), "bot-1")
		assert.Contains(t, buf.String(), "2 connection(s)")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatStats(&buf, FormatJSON, sampleStats()))

		var got registry.Stats
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, 2, got.TotalConnections)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatStats(&buf, FormatYAML, sampleStats()))
		assert.Contains(t, buf.String(), "subject: ana")
	})
}

func TestTableFormatterReflection(t *testing.T) {
	type row struct {
		Name    string `json:"name"`
		Created string `json:"created_at"`
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, []row{{Name: "a", Created: "now"}}))
	out := strings.ToLower(buf.String())
	assert.Contains(t, out, "created at")
	assert.Contains(t, out, "now")
}

func TestEventWriter(t *testing.T) {
	ev, err := events.NewAt(events.TaskCreated, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), events.Task{ID: "t-1"})
	require.NoError(t, err)

	t.Run("text for tables", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewEventWriter(&buf, FormatTable).Write(ev))
		line := buf.String()
		assert.True(t, strings.HasPrefix(line, "2026-03-01T12:00:00Z"))
		assert.Contains(t, line, "task.created")
		assert.Contains(t, line, `"id":"t-1"`)
		assert.Equal(t, 1, strings.Count(line, "\n"))
	})

	t.Run("json lines", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewEventWriter(&buf, FormatJSON)
		require.NoError(t, w.Write(ev))
		require.NoError(t, w.Write(ev))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		var got events.Event
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
		assert.Equal(t, events.TaskCreated, got.Type)
	})

	t.Run("yaml documents", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewEventWriter(&buf, FormatYAML).Write(ev))
		assert.True(t, strings.HasPrefix(buf.String(), "---\n"))
		assert.Contains(t, buf.String(), "type: task.created")
	})
}
