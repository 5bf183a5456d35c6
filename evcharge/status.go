package evcharge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/icodeforyou/spotpilot-go/entity"
)

type StatusCode int

const (
	StatusError         StatusCode = -1
	StatusIdle          StatusCode = 0
	StatusScheduled     StatusCode = 1
	StatusChargingGrid  StatusCode = 2
	StatusChargingSolar StatusCode = 3
	StatusPaused        StatusCode = 4
	StatusComplete      StatusCode = 5
)

// StartedBy records who owns the running charging session.
type StartedBy string

const (
	StartedByNone  StartedBy = "none"
	StartedBySmart StartedBy = "smart_charging"
	StartedBySolar StartedBy = "solar_opportunistic"
)

// Attributes of the status entity.
const (
	AttrMessage         = "message"
	AttrLastUpdated     = "last_updated"
	AttrStartedBy       = "charging_started_by"
	AttrStartedAt       = "charging_started_at"
	AttrStoppedAt       = "charging_stopped_at"
	AttrChargingAmps    = "charging_amps"
	AttrSolarLastChange = "solar_last_change"
	AttrSolarLastCall   = "solar_opportunity_last_call"
)

// SetStatus writes the status code with an optional message.
func SetStatus(ctx context.Context, s entity.Store, code StatusCode, message string, now time.Time) error {
	attrs := entity.Attributes{AttrLastUpdated: entity.FormatTime(now)}
	if message != "" {
		attrs[AttrMessage] = message
	}
	if err := entity.SetAttributes(ctx, s, entity.EvChargingStatus, attrs); err != nil {
		return fmt.Errorf("writing charging status: %w", err)
	}
	if err := s.SetState(ctx, entity.EvChargingStatus, strconv.Itoa(int(code))); err != nil {
		return fmt.Errorf("writing charging status: %w", err)
	}
	return nil
}

// CurrentStartedBy reads the owner of the running session, none if unknown.
func CurrentStartedBy(ctx context.Context, s entity.Store) StartedBy {
	attrs, err := s.Attributes(ctx, entity.EvChargingStatus)
	if err != nil {
		return StartedByNone
	}
	switch v := StartedBy(entity.AttrString(attrs, AttrStartedBy).ValueOrDefault("")); v {
	case StartedBySmart, StartedBySolar:
		return v
	}
	return StartedByNone
}
