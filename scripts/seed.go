package main

import (
	"context"
	"log"
	"os"

	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/database"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/adapters/vectorindex"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/application/services"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/embedding"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/Clinicaltriagedesign/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	embedder, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}

	caseRepo := database.NewKnowledgeCaseAdapter(pgClient)
	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				llm_usage,
				diagnosis_jobs,
				diagnosis_results,
				clinical_summaries,
				labs,
				vitals,
				visits,
				patients,
				knowledge_cases
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	cases := []entities.KnowledgeCase{
		{
			CaseID:    "kc-chest-pain-mi",
			Summary:   "58-year-old male with crushing substernal chest pain radiating to the left arm, diaphoresis and nausea. BP 95/60, HR 110. History of hypertension and smoking.",
			Diagnosis: "Acute myocardial infarction",
			Outcome:   "Emergency PCI, survived to discharge on dual antiplatelet therapy.",
		},
		{
			CaseID:    "kc-chest-pain-gerd",
			Summary:   "42-year-old female with burning retrosternal chest pain after meals, worse when lying flat. Vitals within normal limits. No exertional component.",
			Diagnosis: "Gastroesophageal reflux disease",
			Outcome:   "Symptoms resolved on proton pump inhibitor and dietary changes.",
		},
		{
			CaseID:    "kc-pneumonia",
			Summary:   "67-year-old male with productive cough, fever of 38.9, pleuritic chest pain and rigors for three days. RR 24, SpO2 91% on room air.",
			Diagnosis: "Community-acquired pneumonia",
			Outcome:   "Admitted, improved on IV ceftriaxone and azithromycin.",
		},
		{
			CaseID:    "kc-pe",
			Summary:   "35-year-old female with sudden dyspnea and pleuritic chest pain two weeks after a long-haul flight. HR 118, SpO2 93%. On oral contraceptives.",
			Diagnosis: "Pulmonary embolism",
			Outcome:   "CT pulmonary angiogram positive, anticoagulated, full recovery.",
		},
		{
			CaseID:    "kc-appendicitis",
			Summary:   "19-year-old male with periumbilical pain migrating to the right lower quadrant, anorexia and low-grade fever. Rebound tenderness at McBurney's point.",
			Diagnosis: "Acute appendicitis",
			Outcome:   "Laparoscopic appendectomy, uncomplicated recovery.",
		},
		{
			CaseID:    "kc-dka",
			Summary:   "24-year-old female with polyuria, polydipsia, vomiting and abdominal pain. Kussmaul respirations, fruity breath, glucose 28 mmol/L, known type 1 diabetes.",
			Diagnosis: "Diabetic ketoacidosis",
			Outcome:   "ICU admission, insulin infusion and fluid resuscitation, resolved in 48 hours.",
		},
		{
			CaseID:    "kc-stroke",
			Summary:   "72-year-old female with sudden right-sided weakness and slurred speech onset 90 minutes ago. BP 178/96. Atrial fibrillation not anticoagulated.",
			Diagnosis: "Acute ischaemic stroke",
			Outcome:   "Thrombolysed within window, residual mild hemiparesis.",
		},
		{
			CaseID:    "kc-migraine",
			Summary:   "29-year-old female with recurrent unilateral throbbing headache, photophobia and visual aura lasting hours. Normal neurological exam between episodes.",
			Diagnosis: "Migraine with aura",
			Outcome:   "Managed with triptans and trigger avoidance.",
		},
		{
			CaseID:    "kc-meningitis",
			Summary:   "20-year-old male university student with fever, severe headache, neck stiffness and photophobia for 12 hours. Petechial rash on trunk. HR 122, BP 100/58.",
			Diagnosis: "Bacterial meningitis",
			Outcome:   "Empirical IV antibiotics after lumbar puncture, survived with no deficits.",
		},
		{
			CaseID:    "kc-sepsis-uti",
			Summary:   "81-year-old female with confusion, fever and foul-smelling urine. BP 88/52, HR 115, temp 38.8. Indwelling catheter in place.",
			Diagnosis: "Urosepsis",
			Outcome:   "Fluids and broad-spectrum antibiotics, catheter changed, recovered.",
		},
		{
			CaseID:    "kc-asthma",
			Summary:   "11-year-old male with wheeze, cough and breathlessness worsening at night and with exercise. Speaking in sentences, SpO2 94%, widespread expiratory wheeze.",
			Diagnosis: "Asthma exacerbation",
			Outcome:   "Nebulised salbutamol and oral steroids, discharged with inhaler plan.",
		},
		{
			CaseID:    "kc-gastroenteritis",
			Summary:   "6-year-old female with vomiting and watery diarrhoea for two days, mild dehydration, no blood in stool. Several daycare contacts with similar symptoms.",
			Diagnosis: "Viral gastroenteritis",
			Outcome:   "Oral rehydration, resolved without admission.",
		},
	}

	seeded := 0
	for i := range cases {
		kc := &cases[i]
		vector, err := embedder.Embed(ctx, kc.Summary)
		if err != nil {
			log.Printf("Failed to embed case %s: %v", kc.CaseID, err)
			continue
		}
		kc.Embedding = vector
		if err := caseRepo.Upsert(ctx, kc); err != nil {
			log.Printf("Failed to upsert case %s: %v", kc.CaseID, err)
			continue
		}
		seeded++
	}
	log.Printf("Seeded %d knowledge cases", seeded)

	index := vectorindex.NewFlatIndex(cfg.Index.Dir, cfg.Embedding.Dimension)
	retrievalService := services.NewRetrievalService(embedder, index, caseRepo, cfg.Index.TopK)
	if err := retrievalService.Rebuild(ctx); err != nil {
		log.Fatalf("Failed to rebuild similarity index: %v", err)
	}
	log.Printf("Similarity index rebuilt with %d cases", index.Size())
}
