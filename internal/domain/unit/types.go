package unit

import (
	"strings"
	"time"

	"bloodbank-ops/internal/pkg/errs"
)

type BloodType string

const (
	APositive  BloodType = "A+"
	ANegative  BloodType = "A-"
	BPositive  BloodType = "B+"
	BNegative  BloodType = "B-"
	ABPositive BloodType = "AB+"
	ABNegative BloodType = "AB-"
	OPositive  BloodType = "O+"
	ONegative  BloodType = "O-"
)

// AllBloodTypes is the fixed iteration order used by aggregates and forecasts.
var AllBloodTypes = []BloodType{
	APositive, ANegative, BPositive, BNegative,
	ABPositive, ABNegative, OPositive, ONegative,
}

func ParseBloodType(s string) (BloodType, error) {
	bt := BloodType(strings.ToUpper(strings.TrimSpace(s)))
	if !bt.IsValid() {
		return "", errs.Markf(errs.ErrValidation, "unknown blood type %q", s)
	}
	return bt, nil
}

func (b BloodType) IsValid() bool {
	for _, t := range AllBloodTypes {
		if b == t {
			return true
		}
	}
	return false
}

func (b BloodType) String() string {
	return string(b)
}

// Code is the id-safe spelling, e.g. "ABNEG".
func (b BloodType) Code() string {
	s := string(b)
	if strings.HasSuffix(s, "+") {
		return strings.TrimSuffix(s, "+") + "POS"
	}
	return strings.TrimSuffix(s, "-") + "NEG"
}

type Component string

const (
	RedCells  Component = "red_cells"
	Plasma    Component = "plasma"
	Platelets Component = "platelets"
)

func (c Component) IsValid() bool {
	switch c {
	case RedCells, Plasma, Platelets:
		return true
	default:
		return false
	}
}

// ShelfLife is the storage life of a component counted from donation.
func (c Component) ShelfLife() time.Duration {
	switch c {
	case RedCells:
		return 42 * 24 * time.Hour
	case Plasma:
		return 365 * 24 * time.Hour
	case Platelets:
		return 5 * 24 * time.Hour
	default:
		return 0
	}
}

type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusUsed, StatusExpired:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusUsed || s == StatusExpired
}

// transitions lists the allowed forward moves. Nothing ever moves back to available.
var transitions = map[Status][]Status{
	StatusAvailable: {StatusReserved, StatusExpired},
	StatusReserved:  {StatusUsed, StatusExpired},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Filter selects units from a store. Zero-valued fields match everything.
type Filter struct {
	LocationID string
	HospitalID string
	BloodType  BloodType
	Statuses   []Status
	// PlacedOnly drops units that are not in any storage location.
	PlacedOnly bool
}

func (f Filter) Matches(u *Unit) bool {
	if f.LocationID != "" && u.LocationID() != f.LocationID {
		return false
	}
	if f.HospitalID != "" && u.HospitalID() != f.HospitalID {
		return false
	}
	if f.BloodType != "" && u.BloodType() != f.BloodType {
		return false
	}
	if f.PlacedOnly && u.LocationID() == "" {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if u.Status() == s {
			return true
		}
	}
	return false
}
