package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/backend"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/config"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/logging"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/readiness"
	redisclient "github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/redis"
)

func main() {
	var (
		appointmentID = flag.String("appointment", "", "appointment id to watch")
		userID        = flag.String("user", "", "id of the user the appointment belongs to")
		role          = flag.String("role", "patient", "role of that user")
		token         = flag.String("token", os.Getenv("BACKEND_TOKEN"), "bearer token forwarded to the backend")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)

	if *appointmentID == "" || *userID == "" {
		flag.Usage()
		os.Exit(2)
	}
	r, err := identity.ParseRole(*role)
	if err != nil {
		log.WithError(err).Fatal("invalid role")
	}
	p := identity.Principal{UserID: *userID, Role: r, Token: *token}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := backend.New(backend.Options{
		BaseURL:      cfg.BackendBaseURL,
		Timeout:      cfg.BackendTimeout,
		Location:     cfg.TimeZone,
		ServiceToken: cfg.BackendServiceToken,
		Log:          log,
	})
	if err != nil {
		log.WithError(err).Fatal("backend client error")
	}

	wcfg := readiness.WatcherConfig{
		Probe:      client,
		JoinWindow: cfg.JoinWindow,
		Interval:   cfg.ReadinessPollInterval,
		Log:        log,
	}
	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		}, log)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, polling only")
		} else {
			defer rdb.Close()
			rooms := redisclient.NewRooms(rdb, 0, log)
			wcfg.Probe = readiness.Probes{rooms, client}
			wcfg.Notifier = rooms
		}
	}

	manager := appointment.NewManager(appointment.ManagerDeps{Repo: client, Log: log})
	appt, err := manager.Get(rootCtx, p, *appointmentID)
	if err != nil {
		log.WithError(err).Fatal("load appointment")
	}

	log.WithFields(logrus.Fields{
		"appointment_id": appt.ID,
		"scheduled_at":   appt.ScheduledAt,
		"modality":       appt.Modality,
		"interval":       cfg.ReadinessPollInterval,
	}).Info("readiness-watcher starting")

	watcher := readiness.NewWatcher(wcfg)
	err = watcher.Watch(rootCtx, *appt, func(res readiness.Result) {
		line := string(res.State)
		if res.State == readiness.StateTooEarly {
			line = fmt.Sprintf("%s (starts in %d min)", line, res.MinutesUntilStart)
		}
		fmt.Println(line)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("watch stopped")
	}

	switch watcher.Last().State {
	case readiness.StateReady:
		log.Info("room is open, patient can join")
	case readiness.StateNotOnline:
		log.Info("appointment is not an online consultation")
	default:
		log.Info("shutdown signal received, stopping readiness watcher")
	}
}
