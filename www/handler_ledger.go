package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/spotpilot-go/costs"
	"github.com/icodeforyou/spotpilot-go/database"
	"github.com/icodeforyou/spotpilot-go/hours"
)

type ledgerHour struct {
	database.LedgerRow
	Label string `json:"label"`
}

// NewLedgerHandler returns the accounted cost hours of the last days, today
// included, with their totals.
func NewLedgerHandler(logger *slog.Logger, b Backend, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := min(intOrDefault(r.URL, "days", 1), 366)
		to := now()
		from := hours.StartOfDay(to).AddDate(0, 0, 1-days)

		rows, err := b.LedgerHours(r.Context(), from, to)
		if err != nil {
			logger.Error("handling ledger request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}
		views := make([]ledgerHour, len(rows))
		var total costs.HourCosts
		for i, row := range rows {
			views[i] = ledgerHour{LedgerRow: row, Label: hours.FromTime(row.Hour).String()}
			total.SolarSavings += row.SolarSavings
			total.EVWithoutSolar += row.EVWithoutSolar
			total.EVWithSolar += row.EVWithSolar
			total.HeatPumpWithoutSolar += row.HeatPumpWithoutSolar
			total.HeatPumpWithSolar += row.HeatPumpWithSolar
		}
		writeJSON(logger, w, http.StatusOK, map[string]any{
			"from":  from,
			"to":    to,
			"hours": views,
			"total": total,
		})
	}
}
