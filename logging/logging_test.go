package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/icodeforyou/spotpilot-go/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	rows []database.LogEntryRow
	err  error
}

func (s *memSink) SaveLogEntry(_ context.Context, r database.LogEntryRow) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, r)
	return nil
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFromString(tt.in))
		})
	}
}

func TestSQLiteHandlerKeepsLoggerAttrs(t *testing.T) {
	tests := []struct {
		format LogAttrFormat
		want   string
	}{
		{LogAttrFormatText, "module=evcharge; slots=4; note=a\\=b"},
		{LogAttrFormatJSON, `[{"module":"evcharge"},{"slots":"4"},{"note":"a=b"}]`},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			sink := &memSink{}
			logger := slog.New(NewSQLiteHandler(sink, slog.LevelInfo, tt.format)).With("module", "evcharge")

			logger.Debug("hidden")
			logger.Info("scheduled", slog.Int("slots", 4), slog.String("note", "a=b"))

			require.Len(t, sink.rows, 1)
			assert.Equal(t, "scheduled", sink.rows[0].Message)
			assert.Equal(t, int(slog.LevelInfo), sink.rows[0].Level)
			assert.Equal(t, tt.want, sink.rows[0].Attrs)
		})
	}
}

func TestMultiHandler(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	failing := NewSQLiteHandler(&memSink{err: errors.New("disk full")}, slog.LevelWarn, LogAttrFormatJSON)
	sink := &memSink{}
	stored := NewSQLiteHandler(sink, slog.LevelWarn, LogAttrFormatJSON)

	h := NewMultiHandler(text, failing, stored)
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(h).With("module", "solar")
	logger.Debug("tick")
	assert.Contains(t, buf.String(), "module=solar")
	assert.Empty(t, sink.rows)

	err := h.WithAttrs([]slog.Attr{slog.String("module", "solar")}).Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0))
	require.Error(t, err)
	require.Len(t, sink.rows, 1, "a failing handler does not stop the others")
	assert.Equal(t, `[{"module":"solar"}]`, sink.rows[0].Attrs)

	quiet := NewMultiHandler(failing, stored)
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelInfo))
}
