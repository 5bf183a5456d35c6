package tibber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = `{"data": {"viewer": {"home": {"currentSubscription": {"priceInfo": {
  "today": [
    {"startsAt": "2025-03-10T00:00:00.000+01:00", "energy": 0.4123},
    {"startsAt": "2025-03-10T00:15:00.000+01:00", "energy": 0.5},
    {"startsAt": "2025-03-10T00:30:00.000+01:00", "energy": -0.01}
  ],
  "tomorrow": [
    {"startsAt": "2025-03-11T00:00:00.000+01:00", "energy": 1.2}
  ]
}}}}}}`

func TestTicks(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, hours.Location())
	var auth string
	var req queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	src := New("secret", "home-1").WithURL(srv.URL)
	ticks, err := src.Ticks(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	assert.Contains(t, req.Query, `home(id:"home-1")`)

	require.Len(t, ticks, 3)
	assert.True(t, ticks[0].Start.Equal(day))
	assert.True(t, decimal.RequireFromString("0.4123").Equal(*ticks[0].Value))
	assert.Equal(t, 15*time.Minute, ticks[2].End.Sub(*ticks[2].Start))

	tomorrow, err := src.Ticks(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, tomorrow, 1)
	assert.Equal(t, time.Hour, tomorrow[0].End.Sub(*tomorrow[0].Start))

	none, err := src.Ticks(context.Background(), day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTicksErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "invalid token"}]}`))
	}))
	defer srv.Close()
	_, err := New("bad", "home-1").WithURL(srv.URL).Ticks(context.Background(), time.Now())
	assert.ErrorContains(t, err, "invalid token")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer down.Close()
	_, err = New("bad", "home-1").WithURL(down.URL).Ticks(context.Background(), time.Now())
	assert.Error(t, err)
}
