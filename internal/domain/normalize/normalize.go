// Package normalize scales mapped criterion values so cross-criterion
// aggregation is meaningful. Two interchangeable strategies exist: division
// by a fixed per-criterion dominator, and cohort-relative vector
// normalization. Exactly one strategy is selected at deployment time.
package normalize

import (
	"fmt"
	"math"

	"github.com/hematin/donoreval/internal/domain/model"
)

// Strategy normalizes mapped criterion values.
type Strategy interface {
	// Name identifies the strategy in configuration and logs.
	Name() string

	// CohortScoped reports whether normalization depends on the whole
	// cohort. Cohort-scoped strategies cannot normalize a lone value.
	CohortScoped() bool

	// Value normalizes a single mapped value for one criterion.
	Value(value float64, code string) (float64, error)

	// Matrix normalizes a cohort decision matrix. rows[i][j] holds the
	// mapped value of criterion codes[j] for cohort member i.
	Matrix(rows [][]float64, codes []string) ([][]float64, error)
}

// DefaultDominators returns the fixed divisor table used by new deployments.
func DefaultDominators() map[string]float64 {
	return map[string]float64{
		model.CodeBloodPressure:  29.966648,
		model.CodeWeight:         38.236109,
		model.CodeHemoglobin:     36.496575,
		model.CodeMedicationFree: 83.845095,
		model.CodeAge:            492.957402,
		model.CodeSleepHours:     88.803153,
		model.CodeDiseaseHistory: 10.677078,
	}
}

// FixedDominator divides each mapped value by a constant per-criterion
// dominator.
type FixedDominator struct {
	dominators map[string]float64
}

// NewFixedDominator validates the dominator table and returns the strategy.
// Every criterion code passed must carry a positive finite dominator.
func NewFixedDominator(dominators map[string]float64) (*FixedDominator, error) {
	if len(dominators) == 0 {
		return nil, fmt.Errorf("%w: empty dominator table", ErrZeroDominator)
	}
	table := make(map[string]float64, len(dominators))
	for code, d := range dominators {
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("%w: %s has dominator %v", ErrZeroDominator, code, d)
		}
		table[code] = d
	}
	return &FixedDominator{dominators: table}, nil
}

func (f *FixedDominator) Name() string       { return "fixed" }
func (f *FixedDominator) CohortScoped() bool { return false }

// Value divides by the criterion's dominator. An unknown code yields 0
// rather than NaN; construction already guarantees configured codes.
func (f *FixedDominator) Value(value float64, code string) (float64, error) {
	d, ok := f.dominators[code]
	if !ok || d == 0 {
		return 0, fmt.Errorf("%w: %s", ErrZeroDominator, code)
	}
	return value / d, nil
}

// Matrix normalizes every cell independently.
func (f *FixedDominator) Matrix(rows [][]float64, codes []string) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(codes) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d criteria", ErrRaggedMatrix, i, len(row), len(codes))
		}
		out[i] = make([]float64, len(row))
		for j, v := range row {
			n, err := f.Value(v, codes[j])
			if err != nil {
				return nil, err
			}
			out[i][j] = n
		}
	}
	return out, nil
}

// VectorNorm divides each column by the square root of the column's sum of
// squares across the whole cohort.
type VectorNorm struct{}

// NewVectorNorm returns the cohort-relative strategy.
func NewVectorNorm() *VectorNorm { return &VectorNorm{} }

func (v *VectorNorm) Name() string       { return "vector" }
func (v *VectorNorm) CohortScoped() bool { return true }

// Value cannot be computed without the cohort matrix.
func (v *VectorNorm) Value(value float64, code string) (float64, error) {
	return 0, fmt.Errorf("%w: %s", ErrCohortScoped, code)
}

// Matrix computes x*ij = xij / sqrt(sum_i xij^2) per criterion column.
// A column whose sum of squares is 0 normalizes to 0 for every row.
func (v *VectorNorm) Matrix(rows [][]float64, codes []string) ([][]float64, error) {
	if len(rows) == 0 {
		return [][]float64{}, nil
	}
	width := len(codes)
	norms := make([]float64, width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values for %d criteria", ErrRaggedMatrix, i, len(row), width)
		}
		for j, x := range row {
			norms[j] += x * x
		}
	}
	for j := range norms {
		norms[j] = math.Sqrt(norms[j])
	}

	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, width)
		for j, x := range row {
			if norms[j] == 0 {
				continue
			}
			out[i][j] = x / norms[j]
		}
	}
	return out, nil
}

// ForName builds the strategy selected by configuration.
func ForName(name string, dominators map[string]float64) (Strategy, error) {
	switch name {
	case "fixed":
		return NewFixedDominator(dominators)
	case "vector":
		return NewVectorNorm(), nil
	default:
		return nil, fmt.Errorf("unknown normalization strategy %q", name)
	}
}
