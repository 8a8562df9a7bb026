// Command seed-donors populates a store with a donor drive event, generated
// examinations, and the default scoring configuration, then runs one cohort
// evaluation and prints the ranked outcome.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/hematin/donoreval/internal/adapters/repository"
	"github.com/hematin/donoreval/internal/app"
	"github.com/hematin/donoreval/internal/domain/model"
	"github.com/hematin/donoreval/internal/domain/normalize"
	"github.com/hematin/donoreval/pkg/logger"
)

// Default configuration constants.
const (
	defaultDonors  = 25
	defaultTimeout = 2 * time.Minute

	randomFloatDivisor = 1000000
	profileDivisor     = 5
)

// Constants for generated examination ranges per donor profile.
const (
	caseHealthyDonor   = 0
	caseMarginalDonor  = 1
	caseLowPressure    = 2
	caseElderlyDisease = 3
	caseWideRange      = 4

	healthySystolicMin   = 112.0
	healthySystolicRange = 16.0
	healthyWeightMin     = 55.0
	healthyWeightRange   = 20.0
	healthyHbMin         = 13.0
	healthyHbRange       = 3.0

	marginalSystolicMin   = 105.0
	marginalSystolicRange = 10.0
	marginalWeightMin     = 48.0
	marginalWeightRange   = 8.0
	marginalHbMin         = 12.0
	marginalHbRange       = 1.5

	lowSystolicMin   = 90.0
	lowSystolicRange = 18.0
	lowWeightMin     = 42.0
	lowWeightRange   = 8.0
	lowHbMin         = 10.5
	lowHbRange       = 2.0

	wideSystolicMin   = 90.0
	wideSystolicRange = 70.0
	wideWeightMin     = 42.0
	wideWeightRange   = 48.0
	wideHbMin         = 10.5
	wideHbRange       = 7.0
)

func main() {
	var (
		driver    = flag.String("driver", "memory", "Store backend: memory or sqlite")
		dsn       = flag.String("dsn", "file:donoreval.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)", "SQLite data source name")
		eventName = flag.String("event", "Donor Drive "+time.Now().Format("2006-01-02"), "Event name to create")
		donors    = flag.Int("donors", defaultDonors, "Number of donor examinations to generate")
		strategy  = flag.String("strategy", "fixed", "Normalization strategy: fixed or vector")
		threshold = flag.Float64("threshold", 0, "Eligibility threshold override (0 keeps the seeded default)")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get().Named("seed-donors")

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	admin, closeStore, err := openStore(ctx, *driver, *dsn)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.Error(err))
		return
	}
	defer closeStore()

	if err := admin.SeedDefaults(ctx); err != nil {
		log.Error(ctx, "failed to seed default configuration", logger.Error(err))
		return
	}
	if *threshold > 0 {
		if err := admin.SetThreshold(ctx, *threshold); err != nil {
			log.Error(ctx, "failed to set threshold", logger.Error(err))
			return
		}
	}

	eventID := uuid.New().String()
	if err := admin.PutEvent(ctx, eventID, *eventName); err != nil {
		log.Error(ctx, "failed to create event", logger.Error(err))
		return
	}

	for i := 0; i < *donors; i++ {
		exam := generateExamination(eventID, i)
		if err := admin.PutExamination(ctx, exam); err != nil {
			log.Error(ctx, "failed to store examination", logger.String("examinationID", exam.ID), logger.Error(err))
			return
		}
	}
	log.Info(ctx, "seeded examinations",
		logger.String("eventID", eventID),
		logger.String("event", *eventName),
		logger.Int("donors", *donors),
	)

	strat, err := normalize.ForName(*strategy, normalize.DefaultDominators())
	if err != nil {
		log.Error(ctx, "failed to build normalization strategy", logger.Error(err))
		return
	}

	svc := app.New(admin, strat, app.WithLogger(log))
	results, err := svc.EvaluateCohort(ctx, eventID)
	if err != nil {
		log.Error(ctx, "cohort evaluation failed", logger.Error(err))
		return
	}

	printRanking(eventID, *strategy, results)
}

// openStore builds the requested store backend with its admin surface.
func openStore(ctx context.Context, driver, dsn string) (admin, func(), error) {
	switch driver {
	case "sqlite":
		s, err := repository.OpenSQLStore(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "memory":
		return repository.NewMemStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// admin is the store surface this command needs.
type admin interface {
	repository.Admin
	SeedDefaults(ctx context.Context) error
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(max int64) int64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(max))
	return n.Int64()
}

// generateExamination creates one examination with a varied donor profile.
func generateExamination(eventID string, index int) model.Examination {
	var systolic, weight, hb float64

	switch randomInt(profileDivisor) {
	case caseHealthyDonor:
		systolic = healthySystolicMin + getRandomFloat()*healthySystolicRange
		weight = healthyWeightMin + getRandomFloat()*healthyWeightRange
		hb = healthyHbMin + getRandomFloat()*healthyHbRange
	case caseMarginalDonor:
		systolic = marginalSystolicMin + getRandomFloat()*marginalSystolicRange
		weight = marginalWeightMin + getRandomFloat()*marginalWeightRange
		hb = marginalHbMin + getRandomFloat()*marginalHbRange
	case caseLowPressure:
		systolic = lowSystolicMin + getRandomFloat()*lowSystolicRange
		weight = lowWeightMin + getRandomFloat()*lowWeightRange
		hb = lowHbMin + getRandomFloat()*lowHbRange
	case caseElderlyDisease:
		systolic = wideSystolicMin + getRandomFloat()*wideSystolicRange
		weight = healthyWeightMin + getRandomFloat()*healthyWeightRange
		hb = healthyHbMin + getRandomFloat()*healthyHbRange
	default:
		systolic = wideSystolicMin + getRandomFloat()*wideSystolicRange
		weight = wideWeightMin + getRandomFloat()*wideWeightRange
		hb = wideHbMin + getRandomFloat()*wideHbRange
	}

	hasDisease := randomInt(profileDivisor) == caseElderlyDisease
	age := 18 + randomInt(43)
	if hasDisease {
		age = 45 + randomInt(16)
	}

	return model.Examination{
		ID:                uuid.New().String(),
		DonorID:           uuid.New().String(),
		DonorName:         fmt.Sprintf("Donor %03d", index+1),
		EventID:           eventID,
		SystolicPressure:  systolic,
		Weight:            weight,
		Hemoglobin:        hb,
		MedicationFree:    float64(randomInt(30)),
		Age:               float64(age),
		SleepHours:        3 + getRandomFloat()*7,
		HasDiseaseHistory: hasDisease,
		RecordedAt:        time.Now().UTC(),
	}
}

// printRanking writes the ranked cohort to stdout.
func printRanking(eventID, strategy string, results []model.EvaluationResult) {
	fmt.Printf("\nEvent %s ranked with the %s strategy (%d examinations):\n\n", eventID, strategy, len(results))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tDONOR\tPREFERENCE\tELIGIBLE")
	for _, r := range results {
		status := "no"
		if r.IsEligible {
			status = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%.6f\t%s\n", r.Rank, r.DonorName, r.Preference, status)
	}
	_ = w.Flush()
}
