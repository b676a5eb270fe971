//go:build unit || integration

package builder

import (
	"time"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
)

// EventLog assembles a hospital's history for statistics and forecasts.
type EventLog struct {
	HospitalID string
	Events     []event.Event
}

func NewEventLog(hospitalID string) *EventLog {
	return &EventLog{HospitalID: hospitalID}
}

func (l *EventLog) Donation(bt unit.BloodType, donorID string, at time.Time) *EventLog {
	l.Events = append(l.Events, event.NewInventoryUpdate(l.HospitalID, bt, 1, event.ReasonDonation, donorID, nil, at))
	return l
}

func (l *EventLog) Expired(bt unit.BloodType, n int, at time.Time) *EventLog {
	l.Events = append(l.Events, event.NewInventoryUpdate(l.HospitalID, bt, -n, event.ReasonExpiration, "", nil, at))
	return l
}

// Request appends a raised request and returns it so a fulfillment can
// refer to it.
func (l *EventLog) Request(bt unit.BloodType, qty int, urgency event.Urgency, at time.Time) event.Event {
	req, err := event.NewRequest(l.HospitalID, bt, qty, urgency, at)
	if err != nil {
		panic(err)
	}
	l.Events = append(l.Events, req)
	return req
}

func (l *EventLog) Fulfill(req event.Event, at time.Time) *EventLog {
	ids := make([]string, req.Quantity)
	for i := range ids {
		ids[i] = req.RequestID + "-unit"
	}
	l.Events = append(l.Events, event.NewFulfillment(req, ids, at))
	return l
}
