package elprisetjustnu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicks(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, hours.Location())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/prices/2025/03-10_SE3.json":
			_, _ = w.Write([]byte(`[
				{"SEK_per_kWh": 0.41, "EUR_per_kWh": 0.036, "EXR": 11.3, "time_start": "2025-03-10T00:00:00+01:00", "time_end": "2025-03-10T01:00:00+01:00"},
				{"SEK_per_kWh": -0.02, "EUR_per_kWh": 0, "EXR": 11.3, "time_start": "2025-03-10T01:00:00+01:00", "time_end": "2025-03-10T02:00:00+01:00"}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	client := New("SE3").WithBaseURL(srv.URL)

	ticks, err := client.Ticks(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.True(t, ticks[0].Start.Equal(day))
	assert.True(t, ticks[1].End.Equal(day.Add(2*time.Hour)))
	assert.True(t, decimal.RequireFromString("-0.02").Equal(*ticks[1].Value))

	tomorrow, err := client.Ticks(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, tomorrow)
}
