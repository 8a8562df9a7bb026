// Package app provides the recalculation orchestrator: it runs raw
// examinations through mapping, normalization, aggregation, and the
// eligibility decision, and persists one consistent result per examination.
package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hematin/donoreval/internal/adapters/mq/queue"
	"github.com/hematin/donoreval/internal/adapters/repository"
	"github.com/hematin/donoreval/internal/domain/criteria"
	"github.com/hematin/donoreval/internal/domain/decision"
	"github.com/hematin/donoreval/internal/domain/model"
	"github.com/hematin/donoreval/internal/domain/normalize"
	"github.com/hematin/donoreval/pkg/logger"
	"github.com/hematin/donoreval/pkg/metrics"
)

// Scope reports which recomputation a single-donor request actually ran.
// Cohort-scoped normalization escalates a single request to the whole event,
// because the donor's normalized values depend on every cohort member.
type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeCohort Scope = "cohort"
)

// Default orchestrator configuration constants.
const (
	defaultCohortTimeout = 30 * time.Second
)

// Service coordinates scoring runs over the store.
type Service struct {
	store    repository.Store
	strategy normalize.Strategy

	cohortTimeout time.Duration
	recalcQueue   queue.Queue

	// Per-event locks serialize cohort recomputation for the same event.
	locks sync.Map // event id -> *sync.Mutex

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCohortTimeout bounds the duration of one cohort recomputation.
func WithCohortTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cohortTimeout = d
		}
	}
}

// WithRecalcQueue attaches the queue used for asynchronous recalculation
// requests.
func WithRecalcQueue(q queue.Queue) Option {
	return func(s *Service) {
		if q != nil {
			s.recalcQueue = q
		}
	}
}

// New constructs a Service for the given store and normalization strategy.
func New(store repository.Store, strategy normalize.Strategy, opts ...Option) *Service {
	s := &Service{
		store:         store,
		strategy:      strategy,
		cohortTimeout: defaultCohortTimeout,
		logger:        logger.Get().Named("evaluator"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// snapshot is the configuration view one run computes against. It is read
// once before any write so a threshold or weight change mid-run can never
// split a cohort.
type snapshot struct {
	criteria  []model.Criterion
	codes     []string
	mapper    *criteria.Mapper
	threshold float64
}

// loadSnapshot reads and validates criteria, bands, and threshold.
func (s *Service) loadSnapshot(ctx context.Context) (*snapshot, error) {
	crits, err := s.store.Criteria(ctx)
	if err != nil {
		metrics.RecordConfigError()
		return nil, fmt.Errorf("%w: %v", ErrBadConfiguration, err)
	}
	codes := make([]string, len(crits))
	for i, c := range crits {
		if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			metrics.RecordConfigError()
			return nil, fmt.Errorf("%w: criterion %s has weight %v", ErrBadConfiguration, c.Code, c.Weight)
		}
		if c.Polarity != model.Benefit && c.Polarity != model.Cost {
			metrics.RecordConfigError()
			return nil, fmt.Errorf("%w: criterion %s has polarity %q", ErrBadConfiguration, c.Code, c.Polarity)
		}
		codes[i] = c.Code
	}

	bands := make(map[string][]model.CriterionBand)
	for _, c := range crits {
		set, err := s.store.Bands(ctx, c.Code)
		if err != nil {
			metrics.RecordConfigError()
			return nil, fmt.Errorf("%w: bands for %s: %v", ErrBadConfiguration, c.Code, err)
		}
		if len(set) > 0 {
			bands[c.Code] = set
		}
	}
	mapper, err := criteria.NewMapper(bands)
	if err != nil {
		metrics.RecordConfigError()
		return nil, fmt.Errorf("%w: %v", ErrBadConfiguration, err)
	}

	threshold, err := s.store.Threshold(ctx)
	if err != nil {
		metrics.RecordConfigError()
		return nil, fmt.Errorf("%w: threshold: %v", ErrBadConfiguration, err)
	}
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		metrics.RecordConfigError()
		return nil, fmt.Errorf("%w: threshold %v outside [0, 1]", ErrBadConfiguration, threshold)
	}

	return &snapshot{criteria: crits, codes: codes, mapper: mapper, threshold: threshold}, nil
}

// EvaluateSingle recomputes one examination. With a cohort-scoped strategy
// the call escalates to the examination's whole event and reports
// ScopeCohort; the caller learns a full cohort was recomputed as a side
// effect.
func (s *Service) EvaluateSingle(ctx context.Context, examinationID string) (model.EvaluationResult, Scope, error) {
	exam, err := s.store.Examination(ctx, examinationID)
	if err != nil {
		return model.EvaluationResult{}, "", err
	}

	if s.strategy.CohortScoped() {
		results, err := s.EvaluateCohort(ctx, exam.EventID)
		if err != nil {
			return model.EvaluationResult{}, ScopeCohort, err
		}
		for _, res := range results {
			if res.ExaminationID == examinationID {
				return res, ScopeCohort, nil
			}
		}
		// The row was skipped as malformed during the cohort run.
		return model.EvaluationResult{}, ScopeCohort,
			fmt.Errorf("%w: examination %s was skipped during cohort recomputation", criteria.ErrInvalidInput, examinationID)
	}

	start := time.Now()
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return model.EvaluationResult{}, ScopeSingle, err
	}

	values, err := snap.mapper.Extract(&exam, snap.criteria)
	if err != nil {
		return model.EvaluationResult{}, ScopeSingle, err
	}
	normalized := make(map[string]float64, len(values))
	for _, v := range values {
		n, err := s.strategy.Value(v.MappedValue, v.Code)
		if err != nil {
			return model.EvaluationResult{}, ScopeSingle, fmt.Errorf("%w: %v", ErrBadConfiguration, err)
		}
		normalized[v.Code] = n
	}

	res := s.buildResult(ctx, &exam, decision.Compute(normalized, snap.criteria), snap.threshold)
	// Single mode does not rank; keep whatever rank the last cohort run
	// assigned so a fresh examination does not wipe the ordering.
	if prior, perr := s.store.Result(ctx, examinationID); perr == nil {
		res.Rank = prior.Rank
	}
	if err := s.persist(ctx, &exam, values, &res); err != nil {
		return model.EvaluationResult{}, ScopeSingle, err
	}

	metrics.RecordEvaluation(string(ScopeSingle))
	metrics.RecordEvaluationDuration(float64(time.Since(start).Milliseconds()))
	return res, ScopeSingle, nil
}

// cohortRow pairs an examination with its extracted criterion values while a
// cohort run is in flight.
type cohortRow struct {
	exam   model.Examination
	values []model.CriterionValue
	mapped []float64
}

// EvaluateCohort recomputes every examination of an event and returns the
// ranked results, best preference score first. Malformed rows are skipped
// with a warning; sibling rows complete normally.
func (s *Service) EvaluateCohort(ctx context.Context, eventID string) ([]model.EvaluationResult, error) {
	lock := s.lockFor(eventID)
	lock.Lock()
	defer lock.Unlock()

	if s.cohortTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cohortTimeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	exams, err := s.store.ExaminationsForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	metrics.RecordCohortSize(len(exams))
	if len(exams) == 0 {
		return []model.EvaluationResult{}, nil
	}

	rows := make([]cohortRow, 0, len(exams))
	matrix := make([][]float64, 0, len(exams))
	for i := range exams {
		exam := exams[i]
		values, err := snap.mapper.Extract(&exam, snap.criteria)
		if err != nil {
			metrics.RecordRowSkipped()
			s.logger.Warn(ctx, "skipping malformed examination",
				logger.String("examinationID", exam.ID),
				logger.String("eventID", eventID),
				logger.Error(err),
			)
			continue
		}
		mapped := make([]float64, len(values))
		for j, v := range values {
			mapped[j] = v.MappedValue
		}
		rows = append(rows, cohortRow{exam: exam, values: values, mapped: mapped})
		matrix = append(matrix, mapped)
	}

	normalized, err := s.strategy.Matrix(matrix, snap.codes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfiguration, err)
	}

	results := make([]model.EvaluationResult, len(rows))
	for i := range rows {
		byCode := make(map[string]float64, len(snap.codes))
		for j, code := range snap.codes {
			byCode[code] = normalized[i][j]
		}
		results[i] = s.buildResult(ctx, &rows[i].exam, decision.Compute(byCode, snap.criteria), snap.threshold)
	}
	decision.RankDescending(results)

	byID := make(map[string]*cohortRow, len(rows))
	for i := range rows {
		byID[rows[i].exam.ID] = &rows[i]
	}
	for i := range results {
		row := byID[results[i].ExaminationID]
		if err := s.persist(ctx, &row.exam, row.values, &results[i]); err != nil {
			s.logger.Error(ctx, "persisting evaluation result failed",
				logger.String("examinationID", results[i].ExaminationID),
				logger.Error(err),
			)
		}
	}

	metrics.RecordEvaluation(string(ScopeCohort))
	metrics.RecordEvaluationDuration(float64(time.Since(start).Milliseconds()))
	return results, nil
}

// RecalculateEvent satisfies the recalculation worker contract.
func (s *Service) RecalculateEvent(ctx context.Context, eventID string) error {
	_, err := s.EvaluateCohort(ctx, eventID)
	return err
}

// RequestRecalc enqueues an asynchronous cohort recomputation, typically
// after a weight, band, or threshold change. Returns false when no queue is
// attached or the queue rejected the job.
func (s *Service) RequestRecalc(ctx context.Context, eventID, reason string) bool {
	if s.recalcQueue == nil {
		return false
	}
	return s.recalcQueue.Enqueue(ctx, queue.Job{EventID: eventID, Reason: reason, EnqueuedAt: time.Now()})
}

// Normalize exposes single-value normalization for reporting breakdowns.
// Cohort-scoped strategies cannot answer this and return ErrCohortScoped.
func (s *Service) Normalize(value float64, code string) (float64, error) {
	return s.strategy.Value(value, code)
}

// Strategy returns the name of the active normalization strategy.
func (s *Service) Strategy() string {
	return s.strategy.Name()
}

// buildResult turns an aggregate into the persisted result shape, defaulting
// a non-finite preference score to 0 so NaN never reaches the store.
func (s *Service) buildResult(ctx context.Context, exam *model.Examination, agg decision.Aggregate, threshold float64) model.EvaluationResult {
	yi := agg.Preference
	if math.IsNaN(yi) || math.IsInf(yi, 0) {
		metrics.RecordComputationDefault()
		s.logger.Warn(ctx, "preference score not finite, defaulting to 0",
			logger.String("examinationID", exam.ID),
			logger.Float64("benefitSum", agg.BenefitSum),
			logger.Float64("costSum", agg.CostSum),
		)
		yi = 0
	}
	return model.EvaluationResult{
		ExaminationID: exam.ID,
		DonorID:       exam.DonorID,
		DonorName:     exam.DonorName,
		BenefitSum:    agg.BenefitSum,
		CostSum:       agg.CostSum,
		Preference:    yi,
		IsEligible:    decision.Eligible(yi, threshold),
		CalculatedAt:  time.Now().UTC(),
	}
}

// persist upserts the audit values and the result, logging eligibility flips
// against the previously stored result.
func (s *Service) persist(ctx context.Context, exam *model.Examination, values []model.CriterionValue, res *model.EvaluationResult) error {
	prior, err := s.store.Result(ctx, exam.ID)
	hadPrior := err == nil

	if err := s.store.UpsertCriterionValues(ctx, exam.ID, values); err != nil {
		return fmt.Errorf("persist criterion values: %w", err)
	}
	if err := s.store.UpsertResult(ctx, exam.ID, *res); err != nil {
		return fmt.Errorf("persist evaluation result: %w", err)
	}

	if hadPrior && prior.IsEligible != res.IsEligible {
		metrics.RecordStatusTransition()
		s.logger.Info(ctx, "eligibility status changed",
			logger.String("examinationID", exam.ID),
			logger.String("donor", exam.DonorName),
			logger.Bool("wasEligible", prior.IsEligible),
			logger.Bool("isEligible", res.IsEligible),
			logger.Float64("preference", res.Preference),
		)
	}
	outcome := "ineligible"
	if res.IsEligible {
		outcome = "eligible"
	}
	metrics.RecordOutcome(outcome)
	return nil
}

// lockFor returns the mutex serializing cohort runs for one event.
func (s *Service) lockFor(eventID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(eventID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
