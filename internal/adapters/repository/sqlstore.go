package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/hematin/donoreval/internal/domain/criteria"
	"github.com/hematin/donoreval/internal/domain/model"
)

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS events (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS examinations (
	id                  TEXT PRIMARY KEY,
	event_id            TEXT NOT NULL REFERENCES events(id),
	donor_id            TEXT NOT NULL,
	donor_name          TEXT NOT NULL,
	systolic_pressure   REAL NOT NULL,
	weight              REAL NOT NULL,
	hemoglobin          REAL NOT NULL,
	medication_free     REAL NOT NULL,
	age                 REAL NOT NULL,
	sleep_hours         REAL NOT NULL,
	has_disease_history INTEGER NOT NULL,
	recorded_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_examinations_event ON examinations(event_id);
CREATE TABLE IF NOT EXISTS criteria (
	code     TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	polarity TEXT NOT NULL,
	weight   REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS criterion_bands (
	code      TEXT NOT NULL,
	label     TEXT NOT NULL,
	value     REAL NOT NULL,
	lower     REAL,
	upper     REAL,
	has_range INTEGER NOT NULL,
	PRIMARY KEY (code, label)
);
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS evaluation_results (
	examination_id TEXT PRIMARY KEY REFERENCES examinations(id),
	donor_id       TEXT NOT NULL,
	donor_name     TEXT NOT NULL,
	benefit_sum    REAL NOT NULL,
	cost_sum       REAL NOT NULL,
	preference     REAL NOT NULL,
	is_eligible    INTEGER NOT NULL,
	rank           INTEGER NOT NULL,
	calculated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS examination_criterion_values (
	examination_id TEXT NOT NULL REFERENCES examinations(id),
	code           TEXT NOT NULL,
	raw_value      REAL NOT NULL,
	mapped_value   REAL NOT NULL,
	PRIMARY KEY (examination_id, code)
);
`

const thresholdKey = "eligibility_threshold"

// SQLStore persists engine state in SQLite through database/sql.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (or creates) the SQLite database at dsn and ensures the
// schema exists. An empty dsn uses a local file database.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = "file:donoreval.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// SeedDefaults loads the default criteria, bands, and threshold when the
// criteria table is empty. Existing configuration is left untouched.
func (s *SQLStore) SeedDefaults(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM criteria`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := s.PutCriteria(ctx, criteria.DefaultCriteria()); err != nil {
		return err
	}
	for code, bands := range criteria.DefaultBands() {
		if err := s.PutBands(ctx, code, bands); err != nil {
			return err
		}
	}
	return s.SetThreshold(ctx, DefaultThreshold)
}

func (s *SQLStore) Examination(ctx context.Context, id string) (model.Examination, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, event_id, donor_id, donor_name, systolic_pressure,
		weight, hemoglobin, medication_free, age, sleep_hours, has_disease_history, recorded_at
		FROM examinations WHERE id = ?`, id)
	exam, err := scanExamination(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Examination{}, ErrExaminationNotFound
	}
	return exam, err
}

func (s *SQLStore) ExaminationsForEvent(ctx context.Context, eventID string) ([]model.Examination, error) {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	// rowid order preserves insertion order, which fixes tie ranking.
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_id, donor_id, donor_name, systolic_pressure,
		weight, hemoglobin, medication_free, age, sleep_hours, has_disease_history, recorded_at
		FROM examinations WHERE event_id = ? ORDER BY rowid`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Examination{}
	for rows.Next() {
		exam, err := scanExamination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exam)
	}
	return out, rows.Err()
}

func (s *SQLStore) Criteria(ctx context.Context) ([]model.Criterion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, polarity, weight FROM criteria ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Criterion
	for rows.Next() {
		var c model.Criterion
		var polarity string
		if err := rows.Scan(&c.Code, &c.Name, &polarity, &c.Weight); err != nil {
			return nil, err
		}
		c.Polarity = model.Polarity(polarity)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrMissingCriteria
	}
	return out, nil
}

func (s *SQLStore) Bands(ctx context.Context, code string) ([]model.CriterionBand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, label, value, COALESCE(lower, 0), COALESCE(upper, 0), has_range
		FROM criterion_bands WHERE code = ? ORDER BY lower`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CriterionBand
	for rows.Next() {
		var b model.CriterionBand
		var hasRange int
		if err := rows.Scan(&b.Code, &b.Label, &b.Value, &b.Lower, &b.Upper, &hasRange); err != nil {
			return nil, err
		}
		b.HasRange = hasRange != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) Threshold(ctx context.Context) (float64, error) {
	var value float64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, thresholdKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultThreshold, nil
	}
	return value, err
}

func (s *SQLStore) Result(ctx context.Context, examinationID string) (model.EvaluationResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT examination_id, donor_id, donor_name, benefit_sum, cost_sum,
		preference, is_eligible, rank, calculated_at
		FROM evaluation_results WHERE examination_id = ?`, examinationID)

	var res model.EvaluationResult
	var eligible int
	var calculatedAt int64
	err := row.Scan(&res.ExaminationID, &res.DonorID, &res.DonorName, &res.BenefitSum, &res.CostSum,
		&res.Preference, &eligible, &res.Rank, &calculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EvaluationResult{}, ErrResultNotFound
	}
	if err != nil {
		return model.EvaluationResult{}, err
	}
	res.IsEligible = eligible != 0
	res.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
	return res, nil
}

func (s *SQLStore) UpsertResult(ctx context.Context, examinationID string, res model.EvaluationResult) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO evaluation_results
		(examination_id, donor_id, donor_name, benefit_sum, cost_sum, preference, is_eligible, rank, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (examination_id) DO UPDATE SET
			donor_id = excluded.donor_id, donor_name = excluded.donor_name,
			benefit_sum = excluded.benefit_sum, cost_sum = excluded.cost_sum,
			preference = excluded.preference, is_eligible = excluded.is_eligible,
			rank = excluded.rank, calculated_at = excluded.calculated_at`,
		examinationID, res.DonorID, res.DonorName, res.BenefitSum, res.CostSum,
		res.Preference, boolInt(res.IsEligible), res.Rank, res.CalculatedAt.Unix())
	return err
}

func (s *SQLStore) UpsertCriterionValues(ctx context.Context, examinationID string, values []model.CriterionValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, v := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO examination_criterion_values
			(examination_id, code, raw_value, mapped_value) VALUES (?, ?, ?, ?)
			ON CONFLICT (examination_id, code) DO UPDATE SET
				raw_value = excluded.raw_value, mapped_value = excluded.mapped_value`,
			examinationID, v.Code, v.RawValue, v.MappedValue); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) PutEvent(ctx context.Context, eventID, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO events (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`, eventID, name)
	return err
}

func (s *SQLStore) PutExamination(ctx context.Context, exam model.Examination) error {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, exam.EventID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO examinations
		(id, event_id, donor_id, donor_name, systolic_pressure, weight, hemoglobin,
		 medication_free, age, sleep_hours, has_disease_history, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			event_id = excluded.event_id, donor_id = excluded.donor_id,
			donor_name = excluded.donor_name, systolic_pressure = excluded.systolic_pressure,
			weight = excluded.weight, hemoglobin = excluded.hemoglobin,
			medication_free = excluded.medication_free, age = excluded.age,
			sleep_hours = excluded.sleep_hours, has_disease_history = excluded.has_disease_history,
			recorded_at = excluded.recorded_at`,
		exam.ID, exam.EventID, exam.DonorID, exam.DonorName, exam.SystolicPressure, exam.Weight,
		exam.Hemoglobin, exam.MedicationFree, exam.Age, exam.SleepHours,
		boolInt(exam.HasDiseaseHistory), exam.RecordedAt.Unix())
	return err
}

func (s *SQLStore) PutCriteria(ctx context.Context, criteria []model.Criterion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, c := range criteria {
		if _, err := tx.ExecContext(ctx, `INSERT INTO criteria (code, name, polarity, weight)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (code) DO UPDATE SET
				name = excluded.name, polarity = excluded.polarity, weight = excluded.weight`,
			c.Code, c.Name, string(c.Polarity), c.Weight); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) PutBands(ctx context.Context, code string, bands []model.CriterionBand) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM criterion_bands WHERE code = ?`, code); err != nil {
		return err
	}
	for _, b := range bands {
		if _, err := tx.ExecContext(ctx, `INSERT INTO criterion_bands
			(code, label, value, lower, upper, has_range) VALUES (?, ?, ?, ?, ?, ?)`,
			code, b.Label, b.Value, b.Lower, b.Upper, boolInt(b.HasRange)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) SetThreshold(ctx context.Context, threshold float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, thresholdKey, fmt.Sprintf("%g", threshold))
	return err
}

func (s *SQLStore) EventIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExamination(row scanner) (model.Examination, error) {
	var exam model.Examination
	var hasHistory int
	var recordedAt int64
	err := row.Scan(&exam.ID, &exam.EventID, &exam.DonorID, &exam.DonorName, &exam.SystolicPressure,
		&exam.Weight, &exam.Hemoglobin, &exam.MedicationFree, &exam.Age, &exam.SleepHours,
		&hasHistory, &recordedAt)
	if err != nil {
		return model.Examination{}, err
	}
	exam.HasDiseaseHistory = hasHistory != 0
	exam.RecordedAt = time.Unix(recordedAt, 0).UTC()
	return exam, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
