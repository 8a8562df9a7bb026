package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hematin/donoreval/internal/app"
	"github.com/hematin/donoreval/internal/config"
	"github.com/hematin/donoreval/internal/domain/model"
	"github.com/hematin/donoreval/internal/domain/normalize"
	"github.com/hematin/donoreval/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("DONOREVAL_METRICS_ADDR", ":8080")
			_ = os.Setenv("DONOREVAL_RECALC_QUEUE_SIZE", "256")
			_ = os.Setenv("DONOREVAL_RECALC_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("DONOREVAL_METRICS_ADDR")
				_ = os.Unsetenv("DONOREVAL_RECALC_QUEUE_SIZE")
				_ = os.Unsetenv("DONOREVAL_RECALC_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.MetricsAddr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RecalcQueueSize, convey.ShouldEqual, 256)
				convey.So(cfg.RecalcWorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When opening the configured store", func() {
			ctx := context.Background()

			convey.Convey("Then the memory driver yields a usable store", func() {
				cfg := config.New()
				store, admin, closeStore, err := openStore(ctx, cfg)
				convey.So(err, convey.ShouldBeNil)
				convey.So(store, convey.ShouldNotBeNil)
				convey.So(admin, convey.ShouldNotBeNil)
				defer closeStore()

				convey.So(admin.SeedDefaults(ctx), convey.ShouldBeNil)
				crits, err := store.Criteria(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(crits), convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When running a one-shot recalculation", func() {
			ctx := context.Background()
			cfg := config.New()
			_, admin, closeStore, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer closeStore()

			convey.So(admin.SeedDefaults(ctx), convey.ShouldBeNil)
			convey.So(admin.PutEvent(ctx, "event-1", "City Drive"), convey.ShouldBeNil)
			convey.So(admin.PutExamination(ctx, model.Examination{
				ID: "e1", DonorID: "d1", DonorName: "Donor 1", EventID: "event-1",
				SystolicPressure: 120, Weight: 65, Hemoglobin: 14.5,
				MedicationFree: 9, Age: 35, SleepHours: 9,
				RecordedAt: time.Now().UTC(),
			}), convey.ShouldBeNil)

			strategy, err := normalize.ForName(cfg.Strategy, normalize.DefaultDominators())
			convey.So(err, convey.ShouldBeNil)
			svc := app.New(admin, strategy)

			convey.Convey("Then a single event run stores a ranked result", func() {
				runOneShot(ctx, svc, admin, "event-1", false)

				res, err := admin.Result(ctx, "e1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Rank, convey.ShouldEqual, 1)
			})

			convey.Convey("Then a recalc-all run sweeps every event", func() {
				runOneShot(ctx, svc, admin, "", true)

				_, err := admin.Result(ctx, "e1")
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
