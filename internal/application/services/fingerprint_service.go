package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/utils"
)

// FingerprintService builds the deterministic fingerprint of a patient
// presentation. Two presentations that differ only in free-text formatting
// or by small measurement jitter inside a bucket produce the same
// fingerprint, which is what makes result reuse safe.
type FingerprintService struct{}

// NewFingerprintService creates a new fingerprint service
func NewFingerprintService() *FingerprintService {
	return &FingerprintService{}
}

// Field order in these structs is the sorted key order of the serialized
// payload. Changing it changes every fingerprint ever issued.
type fingerprintVitals struct {
	BPDia       *int `json:"bp_dia"`
	BPSys       *int `json:"bp_sys"`
	HeartRate   *int `json:"heart_rate"`
	RespRate    *int `json:"resp_rate"`
	SpO2        *int `json:"spo2"`
	Temperature *int `json:"temperature"`
}

type fingerprintPayload struct {
	AgeBucket      *int            `json:"age_bucket"`
	ChiefComplaint string          `json:"chief_complaint"`
	History        string          `json:"history"`
	Labs           string          `json:"labs"`
	Medications    string          `json:"medications"`
	Notes          string          `json:"notes"`
	Sex            string          `json:"sex"`
	Symptoms       string          `json:"symptoms"`
	Vitals         json.RawMessage `json:"vitals"`
}

// Generate returns the SHA-256 hex fingerprint of the presentation. Vitals
// and labs may be nil; a missing vitals record serializes as an empty
// object, which is distinct from a record whose measurements are all null.
func (s *FingerprintService) Generate(patient *entities.Patient, visit *entities.Visit, vitals *entities.Vitals, labs *entities.Labs) (string, error) {
	vitalsJSON := json.RawMessage("{}")
	if vitals != nil {
		v := fingerprintVitals{
			BPDia:       utils.BucketValue(vitals.DiastolicBP, 5),
			BPSys:       utils.BucketValue(vitals.SystolicBP, 5),
			HeartRate:   utils.BucketValue(vitals.HeartRate, 5),
			RespRate:    utils.BucketValue(vitals.RespiratoryRate, 5),
			SpO2:        utils.BucketValue(vitals.OxygenSaturation, 1),
			Temperature: utils.BucketValue(vitals.Temperature, 1),
		}
		encoded, err := marshalCompact(v)
		if err != nil {
			return "", apperrors.NewInternalError("failed to serialize vitals payload", err)
		}
		vitalsJSON = encoded
	}

	labsText := ""
	if labs != nil {
		labsText = utils.NormalizeClinicalText(labs.Results)
	}

	age := float64(patient.Age)
	payload := fingerprintPayload{
		AgeBucket:      utils.BucketValue(&age, 5),
		ChiefComplaint: utils.NormalizeClinicalText(visit.ChiefComplaint),
		History:        utils.NormalizeClinicalText(visit.MedicalHistory),
		Labs:           labsText,
		Medications:    utils.NormalizeClinicalText(visit.Medications),
		Notes:          utils.NormalizeClinicalText(visit.ClinicalNotes),
		Sex:            patient.Sex,
		Symptoms:       utils.NormalizeClinicalText(visit.Symptoms),
		Vitals:         vitalsJSON,
	}

	serialized, err := marshalCompact(payload)
	if err != nil {
		return "", apperrors.NewInternalError("failed to serialize fingerprint payload", err)
	}

	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:]), nil
}

// marshalCompact encodes without HTML escaping so free text hashes as
// written, and strips the trailing newline the encoder appends.
func marshalCompact(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
