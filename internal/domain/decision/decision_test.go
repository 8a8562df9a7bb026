package decision_test

import (
	"testing"

	"github.com/hematin/donoreval/internal/domain/decision"
	"github.com/hematin/donoreval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompute(t *testing.T) {
	Convey("Given a mixed benefit and cost criteria set", t, func() {
		criteria := []model.Criterion{
			{Code: "A", Polarity: model.Benefit, Weight: 0.6},
			{Code: "B", Polarity: model.Cost, Weight: 0.4},
		}

		Convey("When computing the aggregate", func() {
			agg := decision.Compute(map[string]float64{"A": 0.5, "B": 0.25}, criteria)

			So(agg.BenefitSum, ShouldAlmostEqual, 0.3, 1e-12)
			So(agg.CostSum, ShouldAlmostEqual, 0.1, 1e-12)
			So(agg.Preference, ShouldAlmostEqual, 0.2, 1e-12)
		})

		Convey("When costs outweigh benefits", func() {
			agg := decision.Compute(map[string]float64{"A": 0.1, "B": 0.9}, criteria)

			Convey("Then the preference score goes negative unclamped", func() {
				So(agg.Preference, ShouldAlmostEqual, 0.06-0.36, 1e-12)
			})
		})

		Convey("When a criterion has no normalized value", func() {
			agg := decision.Compute(map[string]float64{"A": 0.5}, criteria)

			Convey("Then the missing criterion contributes nothing", func() {
				So(agg.CostSum, ShouldEqual, 0)
				So(agg.Preference, ShouldAlmostEqual, 0.3, 1e-12)
			})
		})
	})
}

func TestEligible(t *testing.T) {
	Convey("Given an eligibility threshold", t, func() {
		const threshold = 0.0520

		Convey("Then a score above the threshold is eligible", func() {
			So(decision.Eligible(0.0746, threshold), ShouldBeTrue)
		})

		Convey("Then a score exactly on the threshold is eligible", func() {
			So(decision.Eligible(0.0520, threshold), ShouldBeTrue)
		})

		Convey("Then a score just below the threshold is not", func() {
			So(decision.Eligible(0.0519999, threshold), ShouldBeFalse)
		})
	})
}

func TestRankDescending(t *testing.T) {
	Convey("Given unranked evaluation results", t, func() {
		results := []model.EvaluationResult{
			{ExaminationID: "a", Preference: 0.05},
			{ExaminationID: "b", Preference: 0.09},
			{ExaminationID: "c", Preference: 0.07},
		}

		Convey("When ranking", func() {
			decision.RankDescending(results)

			Convey("Then results are ordered by preference descending", func() {
				So(results[0].ExaminationID, ShouldEqual, "b")
				So(results[1].ExaminationID, ShouldEqual, "c")
				So(results[2].ExaminationID, ShouldEqual, "a")
			})

			Convey("Then ranks are 1-based positions", func() {
				So(results[0].Rank, ShouldEqual, 1)
				So(results[1].Rank, ShouldEqual, 2)
				So(results[2].Rank, ShouldEqual, 3)
			})
		})
	})

	Convey("Given results with equal preference scores", t, func() {
		results := []model.EvaluationResult{
			{ExaminationID: "first", Preference: 0.07},
			{ExaminationID: "second", Preference: 0.07},
			{ExaminationID: "third", Preference: 0.09},
		}

		Convey("When ranking", func() {
			decision.RankDescending(results)

			Convey("Then tied results keep their input order", func() {
				So(results[0].ExaminationID, ShouldEqual, "third")
				So(results[1].ExaminationID, ShouldEqual, "first")
				So(results[2].ExaminationID, ShouldEqual, "second")
				So(results[1].Rank, ShouldEqual, 2)
				So(results[2].Rank, ShouldEqual, 3)
			})
		})
	})
}
