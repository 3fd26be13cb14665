package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/backend"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/config"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/logging"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/slot"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

// seed fills the next days of availability for a set of doctors through the
// backend, varying each doctor's working window so the UI has realistic gaps.
func main() {
	var (
		doctors = flag.String("doctors", os.Getenv("SEED_DOCTOR_IDS"), "comma separated doctor ids")
		days    = flag.Int("days", slot.DefaultWeekDays, "number of dates to fill from today")
		seed    = flag.Uint64("seed", 0, "random seed, 0 picks one from the clock")
		token   = flag.String("token", os.Getenv("BACKEND_TOKEN"), "admin bearer token")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)

	ids := splitIDs(*doctors)
	if len(ids) == 0 {
		log.Fatal("no doctors given, use -doctors or SEED_DOCTOR_IDS")
	}

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	faker := gofakeit.New(*seed)

	client, err := backend.New(backend.Options{
		BaseURL:  cfg.BackendBaseURL,
		Timeout:  cfg.BackendTimeout,
		Location: cfg.TimeZone,
		Log:      log,
	})
	if err != nil {
		log.WithError(err).Fatal("backend client error")
	}

	admin := identity.Principal{UserID: "seed", Role: identity.RoleAdmin, Token: *token}
	today := wallclock.StartOfDay(time.Now().In(cfg.TimeZone))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.WithFields(logrus.Fields{"doctors": len(ids), "days": *days, "seed": *seed}).Info("seed starting")

	total := 0
	for _, id := range ids {
		start := faker.Number(7, 10)
		end := faker.Number(15, 19)
		// some doctors start later in the week
		first := today.AddDate(0, 0, faker.Number(0, 2))

		gen, err := slot.NewGenerator(start, end, cfg.TimeZone)
		if err != nil {
			log.WithError(err).Fatal("generator config")
		}
		svc := slot.NewService(slot.ServiceDeps{Repo: client, Generator: gen, Log: log})

		created, err := svc.GenerateWeek(ctx, admin, id, first, *days)
		if err != nil {
			log.WithError(err).WithField("doctor_id", id).Error("seed doctor failed")
			continue
		}
		total += len(created)
		log.WithFields(logrus.Fields{
			"doctor_id": id,
			"window":    []int{start, end},
			"from":      wallclock.DateOf(first),
			"created":   len(created),
		}).Info("doctor seeded")
	}

	log.WithField("slots", total).Info("seed complete")
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
