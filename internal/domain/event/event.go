// Package event models the append-only operational history. Forecasts and
// statistics are derived from this log and nothing else.
package event

import (
	"sort"
	"time"

	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/pkg/ids"
)

type Kind string

const (
	KindInventoryUpdate  Kind = "inventory_update"
	KindRequestRaised    Kind = "blood_request"
	KindEmergencyRequest Kind = "emergency_request"
	KindRequestFulfilled Kind = "request_fulfilled"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindInventoryUpdate, KindRequestRaised, KindEmergencyRequest, KindRequestFulfilled:
		return true
	default:
		return false
	}
}

func (k Kind) IsRequest() bool {
	return k == KindRequestRaised || k == KindEmergencyRequest
}

// RequestKinds are the kinds that represent demand.
var RequestKinds = []Kind{KindRequestRaised, KindEmergencyRequest}

type Reason string

const (
	ReasonDonation   Reason = "donation"
	ReasonUsage      Reason = "usage"
	ReasonExpiration Reason = "expiration"
	ReasonDisposal   Reason = "disposal"
	ReasonAdjustment Reason = "adjustment"
)

type Urgency string

const (
	UrgencyRoutine  Urgency = "routine"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyRoutine, UrgencyUrgent, UrgencyHigh, UrgencyCritical:
		return true
	default:
		return false
	}
}

func (u Urgency) IsHigh() bool {
	return u == UrgencyHigh || u == UrgencyCritical
}

// Event is immutable once appended.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	HospitalID string         `json:"hospitalId"`
	BloodType  unit.BloodType `json:"bloodType,omitempty"`
	// Quantity is a signed delta for inventory updates and a unit count otherwise.
	Quantity   int       `json:"quantity"`
	Reason     Reason    `json:"reason,omitempty"`
	DonorID    string    `json:"donorId,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	Urgency    Urgency   `json:"urgency,omitempty"`
	UnitIDs    []string  `json:"unitIds,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e Event) IsHighUrgency() bool {
	return e.Kind == KindEmergencyRequest || (e.Kind == KindRequestRaised && e.Urgency.IsHigh())
}

// Clone copies the event including its unit id list.
func (e Event) Clone() Event {
	c := e
	if e.UnitIDs != nil {
		c.UnitIDs = append([]string(nil), e.UnitIDs...)
	}
	return c
}

func NewInventoryUpdate(hospitalID string, bloodType unit.BloodType, delta int, reason Reason, donorID string, unitIDs []string, at time.Time) Event {
	return Event{
		ID:         ids.At(at),
		Kind:       KindInventoryUpdate,
		HospitalID: hospitalID,
		BloodType:  bloodType,
		Quantity:   delta,
		Reason:     reason,
		DonorID:    donorID,
		UnitIDs:    unitIDs,
		OccurredAt: at.UTC(),
	}
}

// NewRequest records demand. High and critical urgency are logged as
// emergency requests.
func NewRequest(hospitalID string, bloodType unit.BloodType, quantity int, urgency Urgency, at time.Time) (Event, error) {
	if hospitalID == "" {
		return Event{}, errs.Markf(errs.ErrValidation, "hospital id is required")
	}
	if !bloodType.IsValid() {
		return Event{}, errs.Markf(errs.ErrValidation, "unknown blood type %q", bloodType)
	}
	if quantity <= 0 {
		return Event{}, errs.Markf(errs.ErrValidation, "quantity must be positive, got %d", quantity)
	}
	if urgency == "" {
		urgency = UrgencyRoutine
	}
	if !urgency.IsValid() {
		return Event{}, errs.Markf(errs.ErrValidation, "unknown urgency %q", urgency)
	}
	kind := KindRequestRaised
	if urgency.IsHigh() {
		kind = KindEmergencyRequest
	}
	id := ids.At(at)
	return Event{
		ID:         id,
		Kind:       kind,
		HospitalID: hospitalID,
		BloodType:  bloodType,
		Quantity:   quantity,
		RequestID:  id,
		Urgency:    urgency,
		OccurredAt: at.UTC(),
	}, nil
}

func NewFulfillment(request Event, unitIDs []string, at time.Time) Event {
	return Event{
		ID:         ids.At(at),
		Kind:       KindRequestFulfilled,
		HospitalID: request.HospitalID,
		BloodType:  request.BloodType,
		Quantity:   len(unitIDs),
		RequestID:  request.RequestID,
		Urgency:    request.Urgency,
		UnitIDs:    unitIDs,
		OccurredAt: at.UTC(),
	}
}

// Query filters the log. From is inclusive, To exclusive; zero bounds are open.
type Query struct {
	HospitalID string
	Kinds      []Kind
	BloodType  unit.BloodType
	RequestID  string
	From       time.Time
	To         time.Time
}

func (q Query) Matches(e Event) bool {
	if q.HospitalID != "" && e.HospitalID != q.HospitalID {
		return false
	}
	if q.BloodType != "" && e.BloodType != q.BloodType {
		return false
	}
	if q.RequestID != "" && e.RequestID != q.RequestID {
		return false
	}
	if !q.From.IsZero() && e.OccurredAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !e.OccurredAt.Before(q.To) {
		return false
	}
	if len(q.Kinds) == 0 {
		return true
	}
	for _, k := range q.Kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Filter applies q and returns matches in occurrence order.
func Filter(events []Event, q Query) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	SortChronological(out)
	return out
}

func SortChronological(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].ID < events[j].ID
	})
}
