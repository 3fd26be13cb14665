package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/api"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/backend"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/booking"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/caption"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/config"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/db"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/eventlog"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/logging"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/metrics"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/readiness"
	redisclient "github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/redis"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/slot"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"env":       cfg.Env,
		"http_port": cfg.HTTPPort,
		"timezone":  cfg.TimeZone.String(),
		"version":   version,
	}).Info("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []api.Check

	events := eventlog.Multi{eventlog.NewLogSink(log)}
	if cfg.PostgresEnabled() {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, log)
		if err == nil {
			err = eventlog.EnsureSchema(pgCtx, pool)
		}
		cancelPg()
		if err != nil {
			log.WithError(err).Fatal("postgres connection error")
		}
		defer pool.Close()
		events = append(events, eventlog.NewPgSink(pool, log))
		checks = append(checks, api.Check{Name: "postgres", Ping: pool.Ping})
	}

	var (
		locker   slot.Locker = slot.NoopLocker{}
		probe    readiness.RoomExistenceProbe
		notifier readiness.RoomNotifier
		marker   api.RoomMarker
	)

	reg := prometheus.DefaultRegisterer
	schedMetrics := metrics.NewSchedulingMetrics(reg)
	captionMetrics := metrics.NewCaptionMetrics(reg)

	client, err := backend.New(backend.Options{
		BaseURL:      cfg.BackendBaseURL,
		Timeout:      cfg.BackendTimeout,
		Location:     cfg.TimeZone,
		ServiceToken: cfg.BackendServiceToken,
		Metrics:      schedMetrics,
		Log:          log,
	})
	if err != nil {
		log.WithError(err).Fatal("backend client error")
	}
	probe = client

	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("error closing redis")
			}
		}()

		locker = redisclient.NewLocker(rdb, cfg.LockTTL)
		rooms := redisclient.NewRooms(rdb, 0, log)
		probe = readiness.Probes{rooms, client}
		notifier = rooms
		marker = rooms
		checks = append(checks, api.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		log.Warn("REDIS_URL/REDIS_ADDR not set, slot generation runs without a distributed lock")
	}

	gen, err := slot.NewGenerator(cfg.SlotDayStartHour, cfg.SlotDayEndHour, cfg.TimeZone)
	if err != nil {
		log.WithError(err).Fatal("slot generator config error")
	}

	captionKind, err := caption.ParseKind(cfg.CaptionsTransport)
	if err != nil {
		log.WithError(err).Fatal("caption transport config error")
	}
	transports := caption.DefaultTransports(cfg.CaptionsBaseURL, serviceHeader(cfg.BackendServiceToken))
	captions := caption.NewRegistry(rootCtx, func() caption.Options {
		return caption.Options{
			Transports: transports,
			MaxItems:   cfg.CaptionsMaxItems,
			Log:        log,
			Metrics:    captionMetrics,
		}
	})
	defer captions.Close()

	router := api.NewRouter(api.RouterConfig{
		Slots: slot.NewService(slot.ServiceDeps{
			Repo:      client,
			Locker:    locker,
			Generator: gen,
			Events:    events,
			Metrics:   schedMetrics,
			Log:       log,
		}),
		Appointments: appointment.NewManager(appointment.ManagerDeps{
			Repo:    client,
			Events:  events,
			Metrics: schedMetrics,
			Log:     log,
		}),
		Booking: booking.NewOrchestrator(booking.Deps{
			Appointments: client,
			Events:       events,
			Metrics:      schedMetrics,
			Log:          log,
		}),
		Readiness: readiness.NewWatcher(readiness.WatcherConfig{
			Probe:      probe,
			Notifier:   notifier,
			JoinWindow: cfg.JoinWindow,
			Interval:   cfg.ReadinessPollInterval,
			Log:        log,
		}),
		Captions:    captions,
		CaptionKind: captionKind,
		Rooms:       marker,
		Health:      api.NewHealthHandler(cfg.Env, version, checks...),
		Location:    cfg.TimeZone,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}

func serviceHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
