package nordpool

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

const body = `{
  "deliveryDateCET": "2025-03-10",
  "currency": "SEK",
  "multiAreaEntries": [
    {"deliveryStart": "2025-03-09T23:00:00Z", "deliveryEnd": "2025-03-10T00:00:00Z", "entryPerArea": {"SE3": 512.3, "SE4": 600}},
    {"deliveryStart": "2025-03-09T23:00:00Z", "deliveryEnd": "2025-03-10T00:00:00Z", "entryPerArea": {"SE3": 1}},
    {"deliveryStart": "2025-03-10T00:00:00Z", "deliveryEnd": "2025-03-10T01:00:00Z", "entryPerArea": {"SE4": 700}},
    {"deliveryStart": "2025-03-10T01:00:00Z", "deliveryEnd": "2025-03-10T01:15:00Z", "entryPerArea": {"SE3": -12.5}}
  ]
}`

func TestTicks(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, hours.Location())
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	ticks, err := New("SE3").WithBaseURL(srv.URL).Ticks(context.Background(), day)
	require.NoError(t, err)
	assert.Contains(t, query, "date=2025-03-10")
	assert.Contains(t, query, "deliveryArea=SE3")

	require.Len(t, ticks, 2)
	assert.True(t, ticks[0].Start.Equal(day))
	assert.True(t, decimal.RequireFromString("0.5123").Equal(*ticks[0].Value))
	assert.Equal(t, 15*time.Minute, ticks[1].End.Sub(*ticks[1].Start))
	assert.True(t, decimal.RequireFromString("-0.0125").Equal(*ticks[1].Value))
}

func TestTicksNotPublished(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		ticks, err := New("SE3").WithBaseURL(srv.URL).Ticks(context.Background(), time.Now())
		srv.Close()
		require.NoError(t, err)
		assert.Empty(t, ticks)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := New("SE3").WithBaseURL(srv.URL).Ticks(context.Background(), time.Now())
	assert.Error(t, err)
}
