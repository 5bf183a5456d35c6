package www

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"
)

// NewServiceHandler runs a named service synchronously. Services carry their
// own timeouts and log their own errors.
func NewServiceHandler(logger *slog.Logger, services map[string]func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		fn, ok := services[name]
		if !ok {
			names := make([]string, 0, len(services))
			for n := range services {
				names = append(names, n)
			}
			slices.Sort(names)
			writeError(logger, w, http.StatusNotFound, fmt.Errorf("unknown service %q, available: %v", name, names))
			return
		}

		logger.Info("service triggered by hand", slog.String("service", name))
		start := time.Now()
		fn()
		writeJSON(logger, w, http.StatusOK, map[string]any{
			"service":  name,
			"duration": time.Since(start).String(),
		})
	}
}
