package alert

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindInventoryChanged   Kind = "inventory_changed"
	KindLowInventory       Kind = "low_inventory"
	KindTemperatureAnomaly Kind = "temperature_anomaly"
	KindStorageViolation   Kind = "storage_violation"
	KindRotationDue        Kind = "rotation_due"
	KindReportGenerated    Kind = "report_generated"
)

// Alert is what the core emits for external delivery.
type Alert struct {
	ID         uuid.UUID      `json:"id"`
	Kind       Kind           `json:"kind"`
	HospitalID string         `json:"hospitalId,omitempty"`
	Payload    map[string]any `json:"payload"`
	Timestamp  time.Time      `json:"timestamp"`
}

func New(kind Kind, hospitalID string, payload map[string]any, at time.Time) Alert {
	if payload == nil {
		payload = map[string]any{}
	}
	return Alert{
		ID:         uuid.New(),
		Kind:       kind,
		HospitalID: hospitalID,
		Payload:    payload,
		Timestamp:  at.UTC(),
	}
}
