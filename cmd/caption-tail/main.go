package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/caption"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/config"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/logging"
)

func main() {
	var (
		sessionID = flag.String("session", "", "call session id")
		lang      = flag.String("lang", "es", "target caption language")
		transport = flag.String("transport", "", "push or socket, defaults to CAPTIONS_TRANSPORT")
		reconnect = flag.Duration("reconnect", 0, "reconnect delay after the stream drops, 0 exits instead")
		token     = flag.String("token", os.Getenv("BACKEND_TOKEN"), "bearer token for the caption service")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)

	if *sessionID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *transport == "" {
		*transport = cfg.CaptionsTransport
	}
	kind, err := caption.ParseKind(*transport)
	if err != nil {
		log.WithError(err).Fatal("invalid transport")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	client := caption.NewClient(caption.Options{
		Transports: caption.DefaultTransports(cfg.CaptionsBaseURL, header),
		MaxItems:   cfg.CaptionsMaxItems,
		Log:        log,
		OnChunk: func(c caption.Chunk) {
			fmt.Printf("%s [%s] %s: %s\n", c.Timestamp.In(cfg.TimeZone).Format("15:04:05"), c.Lang, c.Speaker, c.Text)
		},
	})
	defer client.Disconnect()

	if err := client.Subscribe(rootCtx, *sessionID, *lang, kind); err != nil {
		log.WithError(err).Fatal("subscribe captions")
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.WithField("buffered", len(client.Captions())).Info("shutdown signal received, stopping caption tail")
			return
		case <-ticker.C:
		}
		if client.Connected() {
			continue
		}

		entry := log.WithField("session_id", *sessionID)
		if err := client.Err(); err != nil {
			entry = entry.WithError(err)
		}
		if *reconnect <= 0 {
			entry.Info("caption stream ended")
			return
		}
		entry.WithField("delay", *reconnect).Warn("caption stream dropped, reconnecting")
		select {
		case <-rootCtx.Done():
			return
		case <-time.After(*reconnect):
		}
		if err := client.Connect(rootCtx); err != nil {
			log.WithError(err).Warn("reconnect failed")
		}
	}
}
