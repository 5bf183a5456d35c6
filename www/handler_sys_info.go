package www

import (
	"log/slog"
	"net/http"
	"time"
)

type SysInfo struct {
	Version   string
	StartedAt time.Time
	// Healthy reports the MQTT connection state, nil when running without a bridge.
	Healthy func() bool
}

func NewSysInfoHandler(logger *slog.Logger, sysInfo SysInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := sysInfo.Healthy == nil || sysInfo.Healthy()
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(logger, w, status, map[string]any{
			"version":    sysInfo.Version,
			"started_at": sysInfo.StartedAt,
			"uptime":     time.Since(sysInfo.StartedAt).Round(time.Second).String(),
			"healthy":    healthy,
		})
	}
}
