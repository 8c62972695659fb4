package entities

import "time"

// Vitals are the vital signs recorded for a single visit. All measurements
// are optional; a nil field means the measurement was not taken.
type Vitals struct {
	VisitID          string    `json:"visit_id" db:"visit_id"`
	SystolicBP       *float64  `json:"systolic_bp" db:"systolic_bp"`
	DiastolicBP      *float64  `json:"diastolic_bp" db:"diastolic_bp"`
	HeartRate        *float64  `json:"heart_rate" db:"heart_rate"`
	RespiratoryRate  *float64  `json:"respiratory_rate" db:"respiratory_rate"`
	OxygenSaturation *float64  `json:"oxygen_saturation" db:"oxygen_saturation"`
	Temperature      *float64  `json:"temperature" db:"temperature"`
	RecordedAt       time.Time `json:"recorded_at" db:"recorded_at"`
}

// Normal clinical ranges used when narrating abnormal vitals.
const (
	SystolicLow   = 90.0
	SystolicHigh  = 140.0
	DiastolicLow  = 60.0
	DiastolicHigh = 90.0
	HeartRateLow  = 60.0
	HeartRateHigh = 100.0
	RespRateLow   = 12.0
	RespRateHigh  = 20.0
	SpO2Low       = 95.0
	TempLowF      = 95.0
	TempHighF     = 100.4
)
