package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hematin/donoreval/internal/domain/criteria"
	"github.com/hematin/donoreval/internal/domain/model"
)

// DefaultThreshold is the eligibility threshold new deployments start with.
const DefaultThreshold = 0.0520

// MemStore is a mutex-guarded in-memory Store. It is the default backend for
// tests and local runs; examinations keep insertion order per event so tie
// ranking is reproducible.
type MemStore struct {
	mu        sync.RWMutex
	events    map[string]string   // event id -> name
	examOrder map[string][]string // event id -> examination ids in insertion order
	exams     map[string]model.Examination
	criteria  []model.Criterion
	bands     map[string][]model.CriterionBand
	threshold float64
	results   map[string]model.EvaluationResult
	values    map[string][]model.CriterionValue
}

// NewMemStore creates an empty in-memory store with the default threshold.
func NewMemStore() *MemStore {
	return &MemStore{
		events:    make(map[string]string),
		examOrder: make(map[string][]string),
		exams:     make(map[string]model.Examination),
		bands:     make(map[string][]model.CriterionBand),
		threshold: DefaultThreshold,
		results:   make(map[string]model.EvaluationResult),
		values:    make(map[string][]model.CriterionValue),
	}
}

// SeedDefaults loads the default criteria and band configuration.
func (s *MemStore) SeedDefaults(ctx context.Context) error {
	if err := s.PutCriteria(ctx, criteria.DefaultCriteria()); err != nil {
		return err
	}
	for code, bands := range criteria.DefaultBands() {
		if err := s.PutBands(ctx, code, bands); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) Examination(ctx context.Context, id string) (model.Examination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exam, ok := s.exams[id]
	if !ok {
		return model.Examination{}, ErrExaminationNotFound
	}
	return exam, nil
}

func (s *MemStore) ExaminationsForEvent(ctx context.Context, eventID string) ([]model.Examination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.events[eventID]; !ok {
		return nil, ErrEventNotFound
	}
	ids := s.examOrder[eventID]
	out := make([]model.Examination, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.exams[id])
	}
	return out, nil
}

func (s *MemStore) Criteria(ctx context.Context) ([]model.Criterion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.criteria) == 0 {
		return nil, ErrMissingCriteria
	}
	out := append([]model.Criterion(nil), s.criteria...)
	return out, nil
}

func (s *MemStore) Bands(ctx context.Context, code string) ([]model.CriterionBand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CriterionBand(nil), s.bands[code]...), nil
}

func (s *MemStore) Threshold(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold, nil
}

func (s *MemStore) Result(ctx context.Context, examinationID string) (model.EvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[examinationID]
	if !ok {
		return model.EvaluationResult{}, ErrResultNotFound
	}
	return res, nil
}

func (s *MemStore) UpsertResult(ctx context.Context, examinationID string, res model.EvaluationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[examinationID]; !ok {
		return ErrExaminationNotFound
	}
	s.results[examinationID] = res
	return nil
}

func (s *MemStore) UpsertCriterionValues(ctx context.Context, examinationID string, values []model.CriterionValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[examinationID]; !ok {
		return ErrExaminationNotFound
	}
	s.values[examinationID] = append([]model.CriterionValue(nil), values...)
	return nil
}

// CriterionValues returns the stored audit rows for an examination.
func (s *MemStore) CriterionValues(ctx context.Context, examinationID string) []model.CriterionValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CriterionValue(nil), s.values[examinationID]...)
}

func (s *MemStore) PutEvent(ctx context.Context, eventID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[eventID] = name
	return nil
}

func (s *MemStore) PutExamination(ctx context.Context, exam model.Examination) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[exam.EventID]; !ok {
		return ErrEventNotFound
	}
	if _, seen := s.exams[exam.ID]; !seen {
		s.examOrder[exam.EventID] = append(s.examOrder[exam.EventID], exam.ID)
	}
	s.exams[exam.ID] = exam
	return nil
}

func (s *MemStore) PutCriteria(ctx context.Context, criteria []model.Criterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := append([]model.Criterion(nil), criteria...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	s.criteria = sorted
	return nil
}

func (s *MemStore) PutBands(ctx context.Context, code string, bands []model.CriterionBand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bands[code] = append([]model.CriterionBand(nil), bands...)
	return nil
}

func (s *MemStore) SetThreshold(ctx context.Context, threshold float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
	return nil
}

func (s *MemStore) EventIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
