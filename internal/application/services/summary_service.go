package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/repositories"
)

// SummaryService renders the structured clinical summary for a visit. The
// output order is fixed and the text is deterministic for the same input:
// it is shown to clinicians and embedded for retrieval, so it must not vary
// run to run.
type SummaryService struct {
	visitRepo  repositories.VisitRepository
	resultRepo repositories.DiagnosisResultRepository
}

// NewSummaryService creates a new summary service
func NewSummaryService(visitRepo repositories.VisitRepository, resultRepo repositories.DiagnosisResultRepository) *SummaryService {
	return &SummaryService{
		visitRepo:  visitRepo,
		resultRepo: resultRepo,
	}
}

// priorVisitContext is how many of the most recent earlier visits a
// follow-up summary references.
const priorVisitContext = 2

// Generate renders the summary text for the visit
func (s *SummaryService) Generate(ctx context.Context, patient *entities.Patient, visit *entities.Visit, vitals *entities.Vitals, labs *entities.Labs) (string, error) {
	parts := []string{}

	if visit.IsFollowUp() {
		parts = append(parts, fmt.Sprintf("Visit: Follow-up #%d", visit.VisitNumber))
	} else {
		parts = append(parts, "Visit: Initial presentation")
	}

	parts = append(parts, fmt.Sprintf("Chief Complaint: %s", visit.ChiefComplaint))
	parts = append(parts, fmt.Sprintf("Key Symptoms: %s", visit.Symptoms))

	if visit.IsFollowUp() {
		history, err := s.priorVisitHistory(ctx, visit)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("Previous Visits: %s", history))
	}

	parts = append(parts, fmt.Sprintf("Abnormal Vitals: %s", narrateVitals(vitals)))

	if labs != nil && labs.Results != "" {
		parts = append(parts, fmt.Sprintf("Critical Lab Findings: %s", labs.Results))
	} else {
		parts = append(parts, "Critical Lab Findings: No labs recorded")
	}

	medicalHistory := visit.MedicalHistory
	if medicalHistory == "" {
		medicalHistory = "None reported"
	}
	parts = append(parts, fmt.Sprintf("Relevant Medical History: %s", medicalHistory))

	parts = append(parts, fmt.Sprintf("Demographics: %d year old %s", patient.Age, patient.Sex))

	medications := visit.Medications
	if medications == "" {
		medications = "None reported"
	}
	parts = append(parts, fmt.Sprintf("Current Medications: %s", medications))

	return strings.Join(parts, "\n"), nil
}

// priorVisitHistory summarizes the most recent earlier visits: complaint,
// top prior diagnosis, and prior triage level when a result exists.
func (s *SummaryService) priorVisitHistory(ctx context.Context, visit *entities.Visit) (string, error) {
	visits, err := s.visitRepo.ListByPatient(ctx, visit.PatientID)
	if err != nil {
		return "", err
	}

	prior := make([]*entities.Visit, 0, len(visits))
	for _, v := range visits {
		if v.VisitNumber < visit.VisitNumber {
			prior = append(prior, v)
		}
	}
	if len(prior) == 0 {
		return "None on record", nil
	}
	if len(prior) > priorVisitContext {
		prior = prior[len(prior)-priorVisitContext:]
	}

	lines := make([]string, 0, len(prior))
	for _, v := range prior {
		line := fmt.Sprintf("Visit %d presented with %q", v.VisitNumber, v.ChiefComplaint)

		results, err := s.resultRepo.ListByVisit(ctx, v.ID)
		if err != nil {
			log.Warn().Err(err).Str("visit_id", v.ID).Msg("failed to load prior diagnosis results for summary")
		} else if len(results) > 0 {
			latest := results[0]
			if top := latest.TopDiagnosis(); top != nil {
				line += fmt.Sprintf(", assessed as %s (triage %s)", top.Diagnosis, latest.TriageLevel)
			} else {
				line += fmt.Sprintf(", triage %s", latest.TriageLevel)
			}
		} else {
			line += ", no diagnosis recorded"
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "; "), nil
}

// narrateVitals lists only out-of-range measurements with an "(abnormal)"
// marker, using the original clinical thresholds.
func narrateVitals(vitals *entities.Vitals) string {
	if vitals == nil {
		return "No vitals recorded"
	}

	abnormal := []string{}

	if vitals.SystolicBP != nil && vitals.DiastolicBP != nil {
		bp := fmt.Sprintf("BP %s/%s mmHg", formatVital(*vitals.SystolicBP), formatVital(*vitals.DiastolicBP))
		if *vitals.SystolicBP > entities.SystolicHigh || *vitals.SystolicBP < entities.SystolicLow {
			abnormal = append(abnormal, bp+" (abnormal)")
		} else if *vitals.DiastolicBP > entities.DiastolicHigh || *vitals.DiastolicBP < entities.DiastolicLow {
			abnormal = append(abnormal, bp+" (abnormal)")
		}
	}

	if vitals.HeartRate != nil {
		if *vitals.HeartRate > entities.HeartRateHigh || *vitals.HeartRate < entities.HeartRateLow {
			abnormal = append(abnormal, fmt.Sprintf("HR %s bpm (abnormal)", formatVital(*vitals.HeartRate)))
		}
	}

	if vitals.RespiratoryRate != nil {
		if *vitals.RespiratoryRate > entities.RespRateHigh || *vitals.RespiratoryRate < entities.RespRateLow {
			abnormal = append(abnormal, fmt.Sprintf("RR %s breaths/min (abnormal)", formatVital(*vitals.RespiratoryRate)))
		}
	}

	if vitals.OxygenSaturation != nil {
		if *vitals.OxygenSaturation < entities.SpO2Low {
			abnormal = append(abnormal, fmt.Sprintf("SpO2 %s%% (abnormal)", formatVital(*vitals.OxygenSaturation)))
		}
	}

	if vitals.Temperature != nil {
		if *vitals.Temperature > entities.TempHighF || *vitals.Temperature < entities.TempLowF {
			abnormal = append(abnormal, fmt.Sprintf("Temp %s°F (abnormal)", formatVital(*vitals.Temperature)))
		}
	}

	if len(abnormal) == 0 {
		return "All vitals within normal range"
	}
	return strings.Join(abnormal, ", ")
}

func formatVital(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
