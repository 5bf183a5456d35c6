package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/spotpilot-go/logging"
)

type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs,omitempty"`
}

func NewLogHandler(logger *slog.Logger, b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intOrDefault(r.URL, "page", 1)
		pageSize := min(intOrDefault(r.URL, "pageSize", 25), 500)
		level := slog.LevelDebug
		if str := r.URL.Query().Get("level"); str != "" {
			level = logging.LevelFromString(str)
		}

		rows, err := b.GetLogEntries(r.Context(), level, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}

		entries := make([]logEntry, len(rows))
		for i, row := range rows {
			entries[i] = logEntry{
				Timestamp: row.Timestamp,
				Level:     slog.Level(row.Level).String(),
				Message:   row.Message,
				Attrs:     row.Attrs,
			}
		}
		writeJSON(logger, w, http.StatusOK, map[string]any{
			"page":     page,
			"pageSize": pageSize,
			"entries":  entries,
		})
	}
}
