//go:build e2e

package operations

import (
	"context"
	"testing"
	"time"

	"bloodbank-ops/internal/domain/alert"
	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/pkg/errs"
	"bloodbank-ops/internal/usecase"
	"bloodbank-ops/tests/e2e"

	"github.com/stretchr/testify/suite"
)

type OperationsTestSuite struct {
	e2e.SharedSuite
	ctx context.Context
}

func TestOperationsSuite(t *testing.T) {
	suite.Run(t, new(OperationsTestSuite))
}

func (s *OperationsTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ResetDB()
}

func (s *OperationsTestSuite) addFridge(id string, capacity int) {
	_, err := s.App.Registry.AddLocation(s.ctx, storage.Spec{
		ID:                id,
		Name:              "Fridge " + id,
		Kind:              storage.KindRefrigerator,
		TargetTemperature: 4,
		Capacity:          capacity,
	})
	s.Require().NoError(err)
}

func (s *OperationsTestSuite) intake(hospitalID string, bt unit.BloodType, locationID string, donatedAgo time.Duration) *unit.Unit {
	u, err := s.App.Ledger.Intake(s.ctx, usecase.IntakeRequest{
		BloodType:  bt,
		Component:  unit.RedCells,
		DonorID:    "donor-0042",
		HospitalID: hospitalID,
		LocationID: locationID,
		DonatedAt:  time.Now().Add(-donatedAgo),
	})
	s.Require().NoError(err)
	return u
}

func (s *OperationsTestSuite) TestRequestLifecycle() {
	const hospital = "hospital-lifecycle"
	alerts := s.App.Stream.Subscribe(s.ctx)

	s.addFridge("fridge-a", 10)
	oldest := s.intake(hospital, unit.ONegative, "fridge-a", 72*time.Hour)
	s.intake(hospital, unit.ONegative, "fridge-a", 24*time.Hour)

	s.Run("在庫が永続化される", func() {
		s.Equal(2, s.CountRows("blood_units"))
		s.Equal(2, s.CountRows("historical_events"))

		levels, err := s.App.Inventory.Levels(s.ctx, hospital)
		s.Require().NoError(err)
		s.Equal(2, levels.For(unit.ONegative).Available)
	})

	s.Run("緊急リクエストは古い順に払い出される", func() {
		req, err := s.App.Requests.Raise(s.ctx, hospital, unit.ONegative, 1, event.UrgencyCritical)
		s.Require().NoError(err)
		s.Equal(event.KindEmergencyRequest, req.Kind)

		f, err := s.App.Requests.Fulfill(s.ctx, req.RequestID)
		s.Require().NoError(err)
		s.Equal([]string{oldest.ID()}, f.UnitIDs)

		status, err := s.App.Requests.Status(s.ctx, req.RequestID)
		s.Require().NoError(err)
		s.True(status.Fulfilled())

		levels, err := s.App.Inventory.Levels(s.ctx, hospital)
		s.Require().NoError(err)
		s.Equal(1, levels.For(unit.ONegative).Available, "the cache sees the fulfillment")
	})

	s.Run("在庫不足はConflict", func() {
		req, err := s.App.Requests.Raise(s.ctx, hospital, unit.ONegative, 5, event.UrgencyRoutine)
		s.Require().NoError(err)
		_, err = s.App.Requests.Fulfill(s.ctx, req.RequestID)
		s.True(errs.Is(err, errs.ErrConflict))
	})

	s.Run("統計に反映される", func() {
		stats, err := s.App.Statistics.CalculateStats(s.ctx, hospital, report.CurrentMonthDays)
		s.Require().NoError(err)
		s.Equal(2, stats.TotalDonations)
		s.Equal(2, stats.TotalRequests)
		s.Equal(1, stats.SuccessfulRequests)
		s.Equal(1.0, stats.EmergencyResponseRate)
	})

	s.Run("アラートが配信される", func() {
		seen := map[alert.Kind]bool{}
		deadline := time.After(5 * time.Second)
		for !seen[alert.KindInventoryChanged] {
			select {
			case a := <-alerts:
				seen[a.Kind] = true
			case <-deadline:
				s.FailNow("alerts not delivered", "seen %v", seen)
			}
		}
	})
}

func (s *OperationsTestSuite) TestCapacityIsEnforced() {
	const hospital = "hospital-capacity"
	s.addFridge("fridge-small", 1)
	s.intake(hospital, unit.APositive, "fridge-small", time.Hour)

	_, err := s.App.Ledger.Intake(s.ctx, usecase.IntakeRequest{
		BloodType:  unit.APositive,
		Component:  unit.RedCells,
		DonorID:    "donor-0043",
		HospitalID: hospital,
		LocationID: "fridge-small",
		DonatedAt:  time.Now().Add(-time.Hour),
	})
	s.True(errs.Is(err, errs.ErrCapacityExceeded))
	s.Equal(1, s.CountRows("blood_units"))

	violations, err := s.App.Registry.ValidateStorageConditions(s.ctx)
	s.Require().NoError(err)
	s.Empty(violations)
}

func (s *OperationsTestSuite) TestReportScheduling() {
	const hospital = "hospital-reports"
	s.addFridge("fridge-r", 10)
	s.intake(hospital, unit.BPositive, "fridge-r", time.Hour)

	job, err := s.App.Scheduler.Schedule(s.ctx, hospital, report.Weekly)
	s.Require().NoError(err)
	s.Equal(report.Weekly, job.Cadence)
	s.Equal(1, s.CountRows("report_jobs"))

	next, ok := s.App.Scheduler.NextRun(hospital)
	s.Require().True(ok)
	s.True(next.After(time.Now()))

	s.Require().NoError(s.App.Scheduler.RunJob(s.ctx, hospital))
	stored, err := s.App.Scheduler.Job(s.ctx, hospital)
	s.Require().NoError(err)
	s.Require().NotNil(stored.LastReport)
	s.Equal(1, stored.LastReport.CurrentMonth.TotalDonations)

	r, err := s.App.Scheduler.GenerateImmediateReport(s.ctx, hospital)
	s.Require().NoError(err)
	s.Equal(hospital, r.HospitalID)

	s.Require().NoError(s.App.Scheduler.Unschedule(s.ctx, hospital))
	s.Zero(s.CountRows("report_jobs"))
}

func (s *OperationsTestSuite) TestTemperatureMonitoring() {
	s.addFridge("fridge-t", 10)

	res, err := s.App.Monitor.SampleOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Sampled)
	s.Empty(res.Violations, "the simulated sensor stays near the target")

	stats, err := s.App.Monitor.TemperatureStats("fridge-t")
	s.Require().NoError(err)
	s.InDelta(4.0, stats.Current, 0.5)

	loc, err := s.App.Registry.Location(s.ctx, "fridge-t")
	s.Require().NoError(err)
	s.InDelta(4.0, loc.CurrentTemperature(), 0.5)
}
