package criteria

import "github.com/hematin/donoreval/internal/domain/model"

// DefaultCriteria returns the seven-criterion configuration shipped with new
// deployments. Weights are deployment-tunable and replaced by whatever the
// store holds once an administrator edits them.
func DefaultCriteria() []model.Criterion {
	return []model.Criterion{
		{Code: model.CodeBloodPressure, Name: "Blood pressure (systolic)", Polarity: model.Benefit, Weight: 0.25},
		{Code: model.CodeWeight, Name: "Body weight", Polarity: model.Benefit, Weight: 0.15},
		{Code: model.CodeHemoglobin, Name: "Hemoglobin", Polarity: model.Benefit, Weight: 0.25},
		{Code: model.CodeMedicationFree, Name: "Medication-free days", Polarity: model.Benefit, Weight: 0.10},
		{Code: model.CodeAge, Name: "Age", Polarity: model.Cost, Weight: 0.10},
		{Code: model.CodeSleepHours, Name: "Hours of sleep", Polarity: model.Benefit, Weight: 0.05},
		{Code: model.CodeDiseaseHistory, Name: "Disease history", Polarity: model.Benefit, Weight: 0.05},
	}
}

// DefaultBands returns the default band tables for the banded criteria and
// the value bands of the disease-history flag.
func DefaultBands() map[string][]model.CriterionBand {
	return map[string][]model.CriterionBand{
		model.CodeBloodPressure: {
			{Code: model.CodeBloodPressure, Label: "low (< 110 mmHg)", Value: 1, Lower: 0, Upper: 109, HasRange: true},
			{Code: model.CodeBloodPressure, Label: "normal (110-155 mmHg)", Value: 3, Lower: 110, Upper: 155, HasRange: true},
			{Code: model.CodeBloodPressure, Label: "high (> 155 mmHg)", Value: 2, Lower: 156, Upper: 300, HasRange: true},
		},
		model.CodeWeight: {
			{Code: model.CodeWeight, Label: "underweight (< 50 kg)", Value: 1, Lower: 0, Upper: 49.99, HasRange: true},
			{Code: model.CodeWeight, Label: "ideal (50-65 kg)", Value: 4, Lower: 50, Upper: 65, HasRange: true},
			{Code: model.CodeWeight, Label: "overweight (65-80 kg)", Value: 3, Lower: 65.01, Upper: 80, HasRange: true},
			{Code: model.CodeWeight, Label: "obese (> 80 kg)", Value: 2, Lower: 80.01, Upper: 500, HasRange: true},
		},
		model.CodeHemoglobin: {
			{Code: model.CodeHemoglobin, Label: "low (< 12.5 g/dL)", Value: 1, Lower: 0, Upper: 12.49, HasRange: true},
			{Code: model.CodeHemoglobin, Label: "normal (12.5-17 g/dL)", Value: 3, Lower: 12.5, Upper: 17, HasRange: true},
			{Code: model.CodeHemoglobin, Label: "high (> 17 g/dL)", Value: 2, Lower: 17.01, Upper: 50, HasRange: true},
		},
		model.CodeDiseaseHistory: {
			{Code: model.CodeDiseaseHistory, Label: "has history", Value: 0},
			{Code: model.CodeDiseaseHistory, Label: "no history", Value: 1},
		},
	}
}
