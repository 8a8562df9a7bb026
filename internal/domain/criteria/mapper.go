// Package criteria maps raw examination measurements onto the value scale
// used for scoring. Banded criteria (blood pressure, weight, hemoglobin) are
// classified into configured ordinal bands; the remaining criteria pass the
// measurement through unchanged.
package criteria

import (
	"fmt"
	"math"
	"sort"

	"github.com/hematin/donoreval/internal/domain/model"
)

// bandGapTolerance is the widest seam allowed between two adjacent bands.
// The configured band tables bound ranges with finite precision (e.g. an
// upper bound of 49.99 next to a lower bound of 50), so a strict partition
// check would reject valid configurations.
const bandGapTolerance = 1.0

// bandedCodes lists the criteria classified through range bands.
var bandedCodes = map[string]bool{
	model.CodeBloodPressure: true,
	model.CodeWeight:        true,
	model.CodeHemoglobin:    true,
}

// passThroughCodes lists the criteria whose raw measurement is used as-is.
var passThroughCodes = map[string]bool{
	model.CodeMedicationFree: true,
	model.CodeAge:            true,
	model.CodeSleepHours:     true,
}

// Mapper classifies raw measurements against a validated band configuration.
type Mapper struct {
	bands map[string][]model.CriterionBand // sorted by lower bound per code
}

// NewMapper validates the band configuration and returns a Mapper.
// Every banded criterion must carry a usable band set.
func NewMapper(bands map[string][]model.CriterionBand) (*Mapper, error) {
	m := &Mapper{bands: make(map[string][]model.CriterionBand, len(bands))}
	for code, set := range bands {
		sorted := append([]model.CriterionBand(nil), set...)
		if bandedCodes[code] {
			if err := ValidateBands(code, sorted); err != nil {
				return nil, err
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lower < sorted[j].Lower })
		}
		m.bands[code] = sorted
	}
	for code := range bandedCodes {
		if len(m.bands[code]) == 0 {
			return nil, fmt.Errorf("%w: no bands configured for %s", ErrMalformedBands, code)
		}
	}
	return m, nil
}

// ValidateBands checks a banded criterion's range set: at least one band,
// ordered bounds, no overlapping ranges, and no seam wider than the
// tolerance between adjacent ranges.
func ValidateBands(code string, bands []model.CriterionBand) error {
	ranged := make([]model.CriterionBand, 0, len(bands))
	for _, b := range bands {
		if !b.HasRange {
			continue
		}
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
			return fmt.Errorf("%w: %s band %q has bounds [%v, %v]", ErrMalformedBands, code, b.Label, b.Lower, b.Upper)
		}
		ranged = append(ranged, b)
	}
	if len(ranged) == 0 {
		return fmt.Errorf("%w: no range bands for %s", ErrMalformedBands, code)
	}
	sort.Slice(ranged, func(i, j int) bool { return ranged[i].Lower < ranged[j].Lower })
	for i := 1; i < len(ranged); i++ {
		prev, next := ranged[i-1], ranged[i]
		if next.Lower <= prev.Upper {
			return fmt.Errorf("%w: %s bands %q and %q overlap", ErrMalformedBands, code, prev.Label, next.Label)
		}
		if next.Lower-prev.Upper > bandGapTolerance {
			return fmt.Errorf("%w: %s bands %q and %q leave a gap of %v", ErrMalformedBands, code, prev.Label, next.Label, next.Lower-prev.Upper)
		}
	}
	return nil
}

// MapRaw converts a raw measurement into the mapped value for the given
// criterion. For the disease-history criterion the raw value encodes the
// flag (non-zero means a history is present).
func (m *Mapper) MapRaw(code string, raw float64) (float64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: %s measurement is not a finite number", ErrInvalidInput, code)
	}

	switch {
	case passThroughCodes[code]:
		return raw, nil
	case code == model.CodeDiseaseHistory:
		// Absence of a disease history is the favorable outcome.
		if raw != 0 {
			return 0, nil
		}
		return 1, nil
	case bandedCodes[code]:
		return m.classify(code, raw)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownCriterion, code)
	}
}

// classify performs the ordered band lookup. A measurement outside every
// configured range (including the sub-unit seams between bands) classifies
// into the nearest band so an examination is never blocked on a boundary
// artifact.
func (m *Mapper) classify(code string, raw float64) (float64, error) {
	bands := m.bands[code]
	if len(bands) == 0 {
		return 0, fmt.Errorf("%w: no bands configured for %s", ErrMalformedBands, code)
	}

	nearest := bands[0]
	nearestDist := math.Inf(1)
	for _, b := range bands {
		if !b.HasRange {
			continue
		}
		if raw >= b.Lower && raw <= b.Upper {
			return b.Value, nil
		}
		dist := b.Lower - raw
		if raw > b.Upper {
			dist = raw - b.Upper
		}
		if dist < nearestDist {
			nearestDist = dist
			nearest = b
		}
	}
	return nearest.Value, nil
}

// Extract maps every configured criterion of an examination, returning the
// raw and mapped value pairs in criterion order. The pairs are persisted for
// auditability alongside the evaluation result.
func (m *Mapper) Extract(exam *model.Examination, criteria []model.Criterion) ([]model.CriterionValue, error) {
	values := make([]model.CriterionValue, 0, len(criteria))
	for _, c := range criteria {
		raw, err := rawFor(exam, c.Code)
		if err != nil {
			return nil, err
		}
		mapped, err := m.MapRaw(c.Code, raw)
		if err != nil {
			return nil, err
		}
		values = append(values, model.CriterionValue{Code: c.Code, RawValue: raw, MappedValue: mapped})
	}
	return values, nil
}

// rawFor selects the examination field backing a criterion code.
func rawFor(exam *model.Examination, code string) (float64, error) {
	switch code {
	case model.CodeBloodPressure:
		return exam.SystolicPressure, nil
	case model.CodeWeight:
		return exam.Weight, nil
	case model.CodeHemoglobin:
		return exam.Hemoglobin, nil
	case model.CodeMedicationFree:
		return exam.MedicationFree, nil
	case model.CodeAge:
		return exam.Age, nil
	case model.CodeSleepHours:
		return exam.SleepHours, nil
	case model.CodeDiseaseHistory:
		if exam.HasDiseaseHistory {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownCriterion, code)
	}
}
