package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/booking"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/caption"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/readiness"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/slot"
)

type RouterConfig struct {
	Slots        *slot.Service
	Appointments *appointment.Manager
	Booking      *booking.Orchestrator
	Readiness    *readiness.Watcher
	Captions     *caption.Registry
	CaptionKind  caption.Kind
	Rooms        RoomMarker   // optional, enables the room webhook
	Health       *HealthHandler
	Metrics      http.Handler // defaults to the global prometheus registry
	Location     *time.Location
	Now          func() time.Time
	Log          *logrus.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CaptionKind == "" {
		cfg.CaptionKind = caption.KindPush
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler("", "")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}

	h := &handlers{
		slots:        cfg.Slots,
		appointments: cfg.Appointments,
		booking:      cfg.Booking,
		readiness:    cfg.Readiness,
		captions:     cfg.Captions,
		captionKind:  cfg.CaptionKind,
		rooms:        cfg.Rooms,
		loc:          cfg.Location,
		now:          cfg.Now,
		log:          cfg.Log,
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics)

	if cfg.Rooms != nil {
		r.Post("/hooks/rooms/{appointmentID}", h.roomCreated)
	}

	r.Group(func(r chi.Router) {
		r.Use(PrincipalMiddleware)

		r.Get("/doctors/{doctorID}/slots", h.listSlots)
		r.Post("/doctors/{doctorID}/slots/generate", h.generateSlots)

		r.Post("/appointments", h.bookAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Get("/appointments/{id}/readiness", h.appointmentReadiness)

		r.Post("/sessions/{sessionID}/captions", h.acquireCaptions)
		r.Get("/sessions/{sessionID}/captions", h.getCaptions)
		r.Delete("/sessions/{sessionID}/captions", h.releaseCaptions)
	})

	return r
}
