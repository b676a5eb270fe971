package usecase

import (
	"context"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/errs"
)

// RequestStatus pairs a raised request with its fulfillment, if any.
type RequestStatus struct {
	Request     event.Event
	Fulfillment *event.Event
}

func (s RequestStatus) Fulfilled() bool {
	return s.Fulfillment != nil
}

// Requests raises blood requests and fulfils them from stored units.
type Requests struct {
	*Deps
}

func NewRequests(deps *Deps) *Requests {
	return &Requests{Deps: deps}
}

// Raise logs a request. High and critical urgency are logged as emergency
// requests.
func (r *Requests) Raise(ctx context.Context, hospitalID string, bt unit.BloodType, quantity int, urgency event.Urgency) (event.Event, error) {
	req, err := event.NewRequest(hospitalID, bt, quantity, urgency, r.Clock.Now())
	if err != nil {
		return event.Event{}, err
	}
	if err := r.mutate(ctx, hospitalID, nil, func(context.Context, Repositories) (change, error) {
		return change{events: []event.Event{req}}, nil
	}); err != nil {
		return event.Event{}, errs.Wrapf(err, "raise request for %s", hospitalID)
	}
	r.Logger.Info("blood request raised",
		"request_id", req.RequestID,
		"hospital_id", hospitalID,
		"blood_type", bt,
		"quantity", quantity,
		"urgency", req.Urgency,
	)
	return req, nil
}

func (r *Requests) Status(ctx context.Context, requestID string) (RequestStatus, error) {
	return guarded(ctx, r.Guard, func(ctx context.Context) (RequestStatus, error) {
		return requestStatus(ctx, r.Store, requestID)
	})
}

func requestStatus(ctx context.Context, repo EventRepository, requestID string) (RequestStatus, error) {
	events, err := repo.ListEvents(ctx, event.Query{RequestID: requestID})
	if err != nil {
		return RequestStatus{}, err
	}
	var (
		status RequestStatus
		found  bool
	)
	for _, e := range events {
		switch {
		case e.Kind.IsRequest():
			status.Request = e
			found = true
		case e.Kind == event.KindRequestFulfilled && status.Fulfillment == nil:
			f := e
			status.Fulfillment = &f
		}
	}
	if !found {
		return RequestStatus{}, errs.Markf(errs.ErrNotFound, "request %s not found", requestID)
	}
	return status, nil
}

// Pending lists the unfulfilled requests of a hospital, oldest first.
func (r *Requests) Pending(ctx context.Context, hospitalID string) ([]event.Event, error) {
	events, err := guarded(ctx, r.Guard, func(ctx context.Context) ([]event.Event, error) {
		return r.Store.ListEvents(ctx, event.Query{
			HospitalID: hospitalID,
			Kinds:      append([]event.Kind{event.KindRequestFulfilled}, event.RequestKinds...),
		})
	})
	if err != nil {
		return nil, err
	}
	done := map[string]bool{}
	for _, e := range events {
		if e.Kind == event.KindRequestFulfilled {
			done[e.RequestID] = true
		}
	}
	var out []event.Event
	for _, e := range events {
		if e.Kind.IsRequest() && !done[e.RequestID] {
			out = append(out, e)
		}
	}
	return out, nil
}

// Fulfill dispenses the oldest dispensable units of the requested type.
// Urgency never changes which units are picked.
func (r *Requests) Fulfill(ctx context.Context, requestID string) (event.Event, error) {
	status, err := r.Status(ctx, requestID)
	if err != nil {
		return event.Event{}, err
	}
	req := status.Request

	var fulfillment event.Event
	err = r.mutate(ctx, req.HospitalID, nil, func(ctx context.Context, tx Repositories) (change, error) {
		// re-read under the hospital lock so two callers cannot both fulfil
		current, err := requestStatus(ctx, tx, requestID)
		if err != nil {
			return change{}, err
		}
		if current.Fulfilled() {
			return change{}, errs.Markf(errs.ErrConflict, "request %s is already fulfilled", requestID)
		}

		stock, err := tx.ListUnits(ctx, unit.Filter{
			HospitalID: req.HospitalID,
			BloodType:  req.BloodType,
			Statuses:   []unit.Status{unit.StatusAvailable},
			PlacedOnly: true,
		})
		if err != nil {
			return change{}, err
		}
		now := r.Clock.Now()
		picked := unit.SelectFIFO(stock, req.BloodType, req.Quantity, now)
		if len(picked) < req.Quantity {
			return change{}, errs.Markf(errs.ErrConflict, "request %s needs %d units of %s, only %d available",
				requestID, req.Quantity, req.BloodType, len(picked))
		}

		unitIDs := make([]string, 0, len(picked))
		for _, u := range picked {
			if err := u.TransitionTo(unit.StatusReserved); err != nil {
				return change{}, err
			}
			if err := u.TransitionTo(unit.StatusUsed); err != nil {
				return change{}, err
			}
			if err := tx.DeleteUnit(ctx, u.ID()); err != nil {
				return change{}, errs.Wrapf(err, "dispense unit %s", u.ID())
			}
			unitIDs = append(unitIDs, u.ID())
		}

		fulfillment = event.NewFulfillment(req, unitIDs, now)
		return change{
			events: []event.Event{
				fulfillment,
				event.NewInventoryUpdate(req.HospitalID, req.BloodType, -len(picked), event.ReasonUsage, "", unitIDs, now),
			},
			payload: map[string]any{
				"action":    "fulfill",
				"requestId": requestID,
				"bloodType": req.BloodType,
				"unitIds":   unitIDs,
			},
		}, nil
	})
	if err != nil {
		return event.Event{}, err
	}
	r.Logger.Info("blood request fulfilled",
		"request_id", requestID,
		"hospital_id", req.HospitalID,
		"units", len(fulfillment.UnitIDs),
	)
	return fulfillment, nil
}
