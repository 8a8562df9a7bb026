// Package model contains domain models passed between layers.
package model

import "time"

// Criterion codes C1..C7 as configured in the criteria table.
const (
	CodeBloodPressure  = "C1"
	CodeWeight         = "C2"
	CodeHemoglobin     = "C3"
	CodeMedicationFree = "C4"
	CodeAge            = "C5"
	CodeSleepHours     = "C6"
	CodeDiseaseHistory = "C7"
)

// Polarity marks whether a criterion contributes to or subtracts from the
// preference score.
type Polarity string

const (
	Benefit Polarity = "benefit"
	Cost    Polarity = "cost"
)

// Criterion is one configured decision criterion. Weights are set per
// deployment and are not required to sum to 1.
type Criterion struct {
	Code     string
	Name     string
	Polarity Polarity
	Weight   float64
}

// CriterionBand is one piecewise classification range for a banded criterion.
// A raw measurement falling inside [Lower, Upper] maps to Value. Bands with
// HasRange false (the boolean criterion) are matched by value, not range.
type CriterionBand struct {
	Code     string
	Label    string
	Value    float64
	Lower    float64
	Upper    float64
	HasRange bool
}

// Examination holds the raw measurements recorded for one donor at one event.
type Examination struct {
	ID                string
	DonorID           string
	DonorName         string
	EventID           string
	SystolicPressure  float64
	Weight            float64
	Hemoglobin        float64
	MedicationFree    float64 // days without medication
	Age               float64 // years
	SleepHours        float64 // hours slept before donation
	HasDiseaseHistory bool
	RecordedAt        time.Time
}

// CriterionValue is the audit record of one criterion's raw and mapped value
// for an examination.
type CriterionValue struct {
	Code        string
	RawValue    float64
	MappedValue float64
}

// EvaluationResult is the durable outcome for one examination. Exactly one
// result exists per examination; recomputation overwrites it.
type EvaluationResult struct {
	ExaminationID string
	DonorID       string
	DonorName     string
	BenefitSum    float64
	CostSum       float64
	Preference    float64 // Yi
	IsEligible    bool
	Rank          int // 0 when computed outside cohort mode
	CalculatedAt  time.Time
}
