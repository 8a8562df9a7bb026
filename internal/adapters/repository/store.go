// Package repository defines the persistence contract the scoring engine
// reads examinations and configuration through and writes results back to.
package repository

import (
	"context"

	"github.com/hematin/donoreval/internal/domain/model"
)

// Store provides the engine's view of persisted state. Implementations must
// be safe for concurrent use.
type Store interface {
	// Examination returns one examination by id.
	// Returns ErrExaminationNotFound if the id is unknown.
	Examination(ctx context.Context, id string) (model.Examination, error)

	// ExaminationsForEvent returns every examination recorded for an event.
	// Returns ErrEventNotFound for an unknown event; a known event with no
	// examinations yields an empty slice.
	ExaminationsForEvent(ctx context.Context, eventID string) ([]model.Examination, error)

	// Criteria returns the configured criteria ordered by code.
	Criteria(ctx context.Context) ([]model.Criterion, error)

	// Bands returns the configured classification bands for a criterion.
	Bands(ctx context.Context, code string) ([]model.CriterionBand, error)

	// Threshold returns the global eligibility threshold.
	Threshold(ctx context.Context) (float64, error)

	// Result returns the persisted evaluation result for an examination.
	// Returns ErrResultNotFound if none has been stored yet.
	Result(ctx context.Context, examinationID string) (model.EvaluationResult, error)

	// UpsertResult stores the evaluation result for an examination,
	// overwriting any prior result.
	UpsertResult(ctx context.Context, examinationID string, res model.EvaluationResult) error

	// UpsertCriterionValues stores the audit trail of raw and mapped values
	// behind a result, overwriting any prior rows.
	UpsertCriterionValues(ctx context.Context, examinationID string, values []model.CriterionValue) error
}

// Admin extends Store with the write paths used by seeding, tests, and the
// configuration surface outside the engine.
type Admin interface {
	Store

	PutEvent(ctx context.Context, eventID, name string) error
	PutExamination(ctx context.Context, exam model.Examination) error
	PutCriteria(ctx context.Context, criteria []model.Criterion) error
	PutBands(ctx context.Context, code string, bands []model.CriterionBand) error
	SetThreshold(ctx context.Context, threshold float64) error

	// EventIDs lists every known event, for recalculate-all sweeps.
	EventIDs(ctx context.Context) ([]string, error)
}
