package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/hematin/donoreval/internal/adapters/repository"
	"github.com/hematin/donoreval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleExamination(id, eventID string) model.Examination {
	return model.Examination{
		ID:               id,
		DonorID:          "donor-" + id,
		DonorName:        "Donor " + id,
		EventID:          eventID,
		SystolicPressure: 120,
		Weight:           60,
		Hemoglobin:       14,
		MedicationFree:   10,
		Age:              30,
		SleepHours:       8,
		RecordedAt:       time.Now().UTC(),
	}
}

func TestMemStoreExaminations(t *testing.T) {
	Convey("Given an empty in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		Convey("When looking up an unknown examination", func() {
			_, err := store.Examination(ctx, "missing")
			So(err, ShouldEqual, repository.ErrExaminationNotFound)
		})

		Convey("When listing examinations of an unknown event", func() {
			_, err := store.ExaminationsForEvent(ctx, "missing")
			So(err, ShouldEqual, repository.ErrEventNotFound)
		})

		Convey("When storing an examination for an unknown event", func() {
			err := store.PutExamination(ctx, sampleExamination("e1", "missing"))
			So(err, ShouldEqual, repository.ErrEventNotFound)
		})

		Convey("When an event exists", func() {
			So(store.PutEvent(ctx, "event-1", "City Drive"), ShouldBeNil)

			Convey("Then an event with no examinations lists empty", func() {
				exams, err := store.ExaminationsForEvent(ctx, "event-1")
				So(err, ShouldBeNil)
				So(len(exams), ShouldEqual, 0)
			})

			Convey("Then stored examinations round-trip", func() {
				exam := sampleExamination("e1", "event-1")
				So(store.PutExamination(ctx, exam), ShouldBeNil)

				got, err := store.Examination(ctx, "e1")
				So(err, ShouldBeNil)
				So(got.DonorName, ShouldEqual, exam.DonorName)
				So(got.SystolicPressure, ShouldEqual, exam.SystolicPressure)
			})

			Convey("Then listing preserves insertion order", func() {
				So(store.PutExamination(ctx, sampleExamination("e1", "event-1")), ShouldBeNil)
				So(store.PutExamination(ctx, sampleExamination("e2", "event-1")), ShouldBeNil)
				So(store.PutExamination(ctx, sampleExamination("e3", "event-1")), ShouldBeNil)

				exams, err := store.ExaminationsForEvent(ctx, "event-1")
				So(err, ShouldBeNil)
				So(len(exams), ShouldEqual, 3)
				So(exams[0].ID, ShouldEqual, "e1")
				So(exams[1].ID, ShouldEqual, "e2")
				So(exams[2].ID, ShouldEqual, "e3")
			})

			Convey("Then re-storing an examination keeps its position", func() {
				So(store.PutExamination(ctx, sampleExamination("e1", "event-1")), ShouldBeNil)
				So(store.PutExamination(ctx, sampleExamination("e2", "event-1")), ShouldBeNil)

				updated := sampleExamination("e1", "event-1")
				updated.Weight = 72
				So(store.PutExamination(ctx, updated), ShouldBeNil)

				exams, err := store.ExaminationsForEvent(ctx, "event-1")
				So(err, ShouldBeNil)
				So(len(exams), ShouldEqual, 2)
				So(exams[0].ID, ShouldEqual, "e1")
				So(exams[0].Weight, ShouldEqual, 72)
			})
		})
	})
}

func TestMemStoreConfiguration(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		Convey("When no criteria have been configured", func() {
			_, err := store.Criteria(ctx)
			So(err, ShouldEqual, repository.ErrMissingCriteria)
		})

		Convey("When seeding defaults", func() {
			So(store.SeedDefaults(ctx), ShouldBeNil)

			Convey("Then seven criteria come back ordered by code", func() {
				crits, err := store.Criteria(ctx)
				So(err, ShouldBeNil)
				So(len(crits), ShouldEqual, 7)
				for i := 1; i < len(crits); i++ {
					So(crits[i-1].Code, ShouldBeLessThan, crits[i].Code)
				}
			})

			Convey("Then band tables are available for banded criteria", func() {
				bands, err := store.Bands(ctx, model.CodeBloodPressure)
				So(err, ShouldBeNil)
				So(len(bands), ShouldEqual, 3)
			})

			Convey("Then the default threshold is in place", func() {
				threshold, err := store.Threshold(ctx)
				So(err, ShouldBeNil)
				So(threshold, ShouldEqual, repository.DefaultThreshold)
			})
		})

		Convey("When setting a new threshold", func() {
			So(store.SetThreshold(ctx, 0.06), ShouldBeNil)

			threshold, err := store.Threshold(ctx)
			So(err, ShouldBeNil)
			So(threshold, ShouldEqual, 0.06)
		})
	})
}

func TestMemStoreResults(t *testing.T) {
	Convey("Given a store with one examination", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		So(store.PutEvent(ctx, "event-1", "City Drive"), ShouldBeNil)
		So(store.PutExamination(ctx, sampleExamination("e1", "event-1")), ShouldBeNil)

		Convey("When no result has been stored", func() {
			_, err := store.Result(ctx, "e1")
			So(err, ShouldEqual, repository.ErrResultNotFound)
		})

		Convey("When upserting a result for an unknown examination", func() {
			err := store.UpsertResult(ctx, "missing", model.EvaluationResult{})
			So(err, ShouldEqual, repository.ErrExaminationNotFound)
		})

		Convey("When upserting a result twice", func() {
			first := model.EvaluationResult{ExaminationID: "e1", Preference: 0.05, IsEligible: false}
			So(store.UpsertResult(ctx, "e1", first), ShouldBeNil)

			second := first
			second.Preference = 0.07
			second.IsEligible = true
			So(store.UpsertResult(ctx, "e1", second), ShouldBeNil)

			Convey("Then the latest result wins", func() {
				got, err := store.Result(ctx, "e1")
				So(err, ShouldBeNil)
				So(got.Preference, ShouldEqual, 0.07)
				So(got.IsEligible, ShouldBeTrue)
			})
		})

		Convey("When storing criterion values", func() {
			values := []model.CriterionValue{
				{Code: model.CodeBloodPressure, RawValue: 120, MappedValue: 3},
				{Code: model.CodeWeight, RawValue: 60, MappedValue: 4},
			}
			So(store.UpsertCriterionValues(ctx, "e1", values), ShouldBeNil)

			got := store.CriterionValues(ctx, "e1")
			So(len(got), ShouldEqual, 2)
			So(got[0].MappedValue, ShouldEqual, 3)
		})

		Convey("When listing event ids", func() {
			So(store.PutEvent(ctx, "event-2", "Campus Drive"), ShouldBeNil)

			ids, err := store.EventIDs(ctx)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"event-1", "event-2"})
		})
	})
}
