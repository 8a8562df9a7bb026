package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hematin/donoreval/internal/adapters/repository"
	"github.com/hematin/donoreval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestSQLStore(t *testing.T, ctx context.Context) *repository.SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "donoreval-test.db")
	store, err := repository.OpenSQLStore(ctx, dsn)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStoreExaminations(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLStore(t, ctx)

	Convey("Given a SQLite-backed store", t, func() {
		Convey("When looking up an unknown examination", func() {
			_, err := store.Examination(ctx, "missing")
			So(err, ShouldEqual, repository.ErrExaminationNotFound)
		})

		Convey("When listing examinations of an unknown event", func() {
			_, err := store.ExaminationsForEvent(ctx, "missing")
			So(err, ShouldEqual, repository.ErrEventNotFound)
		})

		Convey("When an event and examinations exist", func() {
			So(store.PutEvent(ctx, "event-1", "City Drive"), ShouldBeNil)
			So(store.PutExamination(ctx, sampleExamination("sql-e1", "event-1")), ShouldBeNil)
			So(store.PutExamination(ctx, sampleExamination("sql-e2", "event-1")), ShouldBeNil)

			Convey("Then examinations round-trip with their fields", func() {
				got, err := store.Examination(ctx, "sql-e1")
				So(err, ShouldBeNil)
				So(got.EventID, ShouldEqual, "event-1")
				So(got.DonorName, ShouldEqual, "Donor sql-e1")
				So(got.Hemoglobin, ShouldEqual, 14)
				So(got.HasDiseaseHistory, ShouldBeFalse)
			})

			Convey("Then listing preserves insertion order", func() {
				exams, err := store.ExaminationsForEvent(ctx, "event-1")
				So(err, ShouldBeNil)
				So(len(exams), ShouldEqual, 2)
				So(exams[0].ID, ShouldEqual, "sql-e1")
				So(exams[1].ID, ShouldEqual, "sql-e2")
			})

			Convey("Then re-storing an examination updates in place", func() {
				updated := sampleExamination("sql-e1", "event-1")
				updated.Weight = 77
				updated.HasDiseaseHistory = true
				So(store.PutExamination(ctx, updated), ShouldBeNil)

				got, err := store.Examination(ctx, "sql-e1")
				So(err, ShouldBeNil)
				So(got.Weight, ShouldEqual, 77)
				So(got.HasDiseaseHistory, ShouldBeTrue)

				exams, err := store.ExaminationsForEvent(ctx, "event-1")
				So(err, ShouldBeNil)
				So(exams[0].ID, ShouldEqual, "sql-e1")
			})

			Convey("Then event ids list sorted", func() {
				So(store.PutEvent(ctx, "event-0", "Campus Drive"), ShouldBeNil)
				ids, err := store.EventIDs(ctx)
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"event-0", "event-1"})
			})
		})
	})
}

func TestSQLStoreConfiguration(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLStore(t, ctx)

	Convey("Given a SQLite-backed store", t, func() {
		Convey("When no criteria have been configured", func() {
			_, err := store.Criteria(ctx)
			So(err, ShouldEqual, repository.ErrMissingCriteria)

			Convey("And the threshold falls back to the default", func() {
				threshold, err := store.Threshold(ctx)
				So(err, ShouldBeNil)
				So(threshold, ShouldEqual, repository.DefaultThreshold)
			})
		})

		Convey("When seeding defaults", func() {
			So(store.SeedDefaults(ctx), ShouldBeNil)

			crits, err := store.Criteria(ctx)
			So(err, ShouldBeNil)
			So(len(crits), ShouldEqual, 7)
			So(crits[0].Code, ShouldEqual, model.CodeBloodPressure)
			So(crits[0].Polarity, ShouldEqual, model.Benefit)

			bands, err := store.Bands(ctx, model.CodeWeight)
			So(err, ShouldBeNil)
			So(len(bands), ShouldEqual, 4)

			threshold, err := store.Threshold(ctx)
			So(err, ShouldBeNil)
			So(threshold, ShouldEqual, repository.DefaultThreshold)

			Convey("Then seeding again leaves configuration untouched", func() {
				So(store.SetThreshold(ctx, 0.08), ShouldBeNil)
				So(store.SeedDefaults(ctx), ShouldBeNil)

				threshold, err := store.Threshold(ctx)
				So(err, ShouldBeNil)
				So(threshold, ShouldEqual, 0.08)
			})
		})
	})
}

func TestSQLStoreResults(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLStore(t, ctx)

	Convey("Given a SQLite store with one examination", t, func() {
		So(store.PutEvent(ctx, "event-1", "City Drive"), ShouldBeNil)
		So(store.PutExamination(ctx, sampleExamination("sql-r1", "event-1")), ShouldBeNil)

		Convey("When no result has been stored", func() {
			_, err := store.Result(ctx, "sql-r1")
			So(err, ShouldEqual, repository.ErrResultNotFound)
		})

		Convey("When upserting a result twice", func() {
			res := model.EvaluationResult{
				ExaminationID: "sql-r1",
				DonorID:       "donor-sql-r1",
				DonorName:     "Donor sql-r1",
				BenefitSum:    0.08,
				CostSum:       0.007,
				Preference:    0.073,
				IsEligible:    true,
				Rank:          1,
				CalculatedAt:  time.Now().UTC().Truncate(time.Second),
			}
			So(store.UpsertResult(ctx, "sql-r1", res), ShouldBeNil)

			res.Preference = 0.05
			res.IsEligible = false
			res.Rank = 3
			So(store.UpsertResult(ctx, "sql-r1", res), ShouldBeNil)

			Convey("Then the latest result wins", func() {
				got, err := store.Result(ctx, "sql-r1")
				So(err, ShouldBeNil)
				So(got.Preference, ShouldEqual, 0.05)
				So(got.IsEligible, ShouldBeFalse)
				So(got.Rank, ShouldEqual, 3)
				So(got.CalculatedAt.Equal(res.CalculatedAt), ShouldBeTrue)
			})
		})

		Convey("When upserting criterion values twice", func() {
			values := []model.CriterionValue{
				{Code: model.CodeBloodPressure, RawValue: 120, MappedValue: 3},
				{Code: model.CodeWeight, RawValue: 60, MappedValue: 4},
			}
			So(store.UpsertCriterionValues(ctx, "sql-r1", values), ShouldBeNil)

			values[1].RawValue = 75
			values[1].MappedValue = 3
			So(store.UpsertCriterionValues(ctx, "sql-r1", values), ShouldBeNil)
		})
	})
}
