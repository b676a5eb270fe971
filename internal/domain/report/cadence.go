package report

import (
	"strings"
	"time"

	"bloodbank-ops/internal/pkg/errs"

	"github.com/robfig/cron/v3"
)

type Cadence string

const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
)

func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", errs.Markf(errs.ErrValidation, "unknown report cadence %q", s)
	}
	return c, nil
}

func (c Cadence) IsValid() bool {
	switch c {
	case Daily, Weekly, Monthly:
		return true
	default:
		return false
	}
}

// Spec is the cron descriptor: midnight, Sunday midnight, or midnight on the 1st.
func (c Cadence) Spec() string {
	switch c {
	case Daily:
		return "@daily"
	case Weekly:
		return "@weekly"
	case Monthly:
		return "@monthly"
	default:
		return ""
	}
}

func (c Cadence) Schedule() (cron.Schedule, error) {
	if !c.IsValid() {
		return nil, errs.Markf(errs.ErrValidation, "unknown report cadence %q", c)
	}
	s, err := cron.ParseStandard(c.Spec())
	if err != nil {
		return nil, errs.Wrapf(err, "parse cadence %s", c)
	}
	return s, nil
}

// Next is the first firing strictly after t, in t's location.
func (c Cadence) Next(t time.Time) (time.Time, error) {
	s, err := c.Schedule()
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(t), nil
}

// Job is the one active schedule for a hospital. Only the most recent report
// is retained.
type Job struct {
	HospitalID      string             `json:"hospitalId"`
	Cadence         Cadence            `json:"cadence"`
	LastGeneratedAt time.Time          `json:"lastGeneratedAt"`
	LastReport      *PerformanceReport `json:"lastReport,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func NewJob(hospitalID string, cadence Cadence, now time.Time) (Job, error) {
	if strings.TrimSpace(hospitalID) == "" {
		return Job{}, errs.Markf(errs.ErrValidation, "hospital id is required")
	}
	if !cadence.IsValid() {
		return Job{}, errs.Markf(errs.ErrValidation, "unknown report cadence %q", cadence)
	}
	return Job{
		HospitalID: hospitalID,
		Cadence:    cadence,
		CreatedAt:  now.UTC(),
	}, nil
}

// Record keeps r as the latest report, dropping the previous one.
func (j *Job) Record(r PerformanceReport) {
	j.LastReport = &r
	j.LastGeneratedAt = r.GeneratedAt
}

func (j Job) Clone() Job {
	c := j
	if j.LastReport != nil {
		r := *j.LastReport
		c.LastReport = &r
	}
	return c
}
