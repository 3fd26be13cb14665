package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/eventlog"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/metrics"
)

const EventAppointmentCancelled = "APPOINTMENT_CANCELLED"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

var managerTracer = otel.Tracer("telehealth/appointment")

type Manager struct {
	repo    Repository
	events  eventlog.Sink
	metrics *metrics.SchedulingMetrics
	log     *logrus.Logger
	now     func() time.Time
}

type ManagerDeps struct {
	Repo    Repository
	Events  eventlog.Sink
	Metrics *metrics.SchedulingMetrics
	Log     *logrus.Logger
	Now     func() time.Time
}

func NewManager(d ManagerDeps) *Manager {
	if d.Events == nil {
		d.Events = eventlog.Nop{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Manager{repo: d.Repo, events: d.Events, metrics: d.Metrics, log: d.Log, now: d.Now}
}

func (m *Manager) Get(ctx context.Context, p identity.Principal, id string) (*Appointment, error) {
	if id == "" {
		return nil, apperr.Validation("appointment id is required")
	}
	appt, err := m.repo.Get(ctx, p, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return appt, nil
}

// Cancel loads the appointment, checks eligibility and issues one remote
// cancel. The slot the appointment held is left booked.
func (m *Manager) Cancel(ctx context.Context, p identity.Principal, id, reason string) (*Appointment, error) {
	ctx, span := managerTracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id), attribute.String("actor.role", string(p.Role)))

	appt, err := m.Get(ctx, p, id)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveCancellation("error")
		return nil, err
	}

	if !CanCancel(*appt, m.now()) {
		m.metrics.ObserveCancellation("rejected")
		m.log.WithFields(logrus.Fields{
			"appointment_id": id,
			"status":         appt.Status,
		}).Info("cancellation rejected")
		return nil, ErrNotCancellable
	}

	updated, err := m.repo.Cancel(ctx, p, id, reason)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveCancellation("error")
		return nil, fmt.Errorf("cancel appointment %s: %w", id, err)
	}

	updated.Status = StatusCancelled
	if reason != "" {
		updated.CancelReason = reason
	}
	if updated.CancelledBy == "" {
		updated.CancelledBy = p.UserID
	}

	m.metrics.ObserveCancellation("cancelled")
	m.events.Record(ctx, eventlog.Event{
		Type:          EventAppointmentCancelled,
		AppointmentID: id,
		ActorID:       p.UserID,
		Payload: map[string]any{
			"reason":      reason,
			"actor_role":  string(p.Role),
			"slot_id":     updated.SlotID,
			"slot_freed":  false,
			"prev_status": string(appt.Status),
		},
	})
	m.log.WithFields(logrus.Fields{
		"appointment_id": id,
		"actor_role":     p.Role,
	}).Info("appointment cancelled")

	return updated, nil
}

// List serves the four listing views. Only "all" is paginated and sorted.
// Upcoming and past are both classified from the merged server buckets, so an
// appointment the backend filed on the wrong side still lands in exactly one
// of them. Cancelled is filtered so other statuses cannot leak into it.
func (m *Manager) List(ctx context.Context, p identity.Principal, q ListQuery) (*Page, error) {
	if q.View == "" {
		q.View = ViewAll
	}

	if q.View == ViewUpcoming || q.View == ViewPast {
		c, err := m.Overview(ctx, p)
		if err != nil {
			return nil, err
		}
		if q.View == ViewUpcoming {
			return single(c.Upcoming), nil
		}
		return single(c.Past), nil
	}

	if q.View == ViewAll {
		if q.Page <= 0 {
			q.Page = 1
		}
		if q.Limit <= 0 {
			q.Limit = DefaultPageLimit
		}
		if q.Limit > MaxPageLimit {
			q.Limit = MaxPageLimit
		}
		if q.Order == "" {
			q.Order = SortAsc
		}
	}

	page, err := m.repo.List(ctx, p, q)
	if err != nil {
		return nil, fmt.Errorf("list %s appointments: %w", q.View, err)
	}

	switch q.View {
	case ViewAll:
		SortByScheduled(page.Data, q.Order)
		if page.TotalPages == 0 && page.Limit > 0 {
			page.TotalPages = (page.Total + page.Limit - 1) / page.Limit
		}
		return page, nil
	case ViewCancelled:
		return single(CancelledOnly(page.Data)), nil
	default:
		return nil, apperr.Validation("unknown view %q", q.View)
	}
}

// Overview fetches upcoming and past together and classifies them with one now.
func (m *Manager) Overview(ctx context.Context, p identity.Principal) (Classification, error) {
	var merged []Appointment
	seen := map[string]bool{}
	for _, v := range []View{ViewUpcoming, ViewPast} {
		page, err := m.repo.List(ctx, p, ListQuery{View: v})
		if err != nil {
			return Classification{}, fmt.Errorf("list %s appointments: %w", v, err)
		}
		for _, a := range page.Data {
			if !seen[a.ID] {
				seen[a.ID] = true
				merged = append(merged, a)
			}
		}
	}
	return Classify(merged, m.now()), nil
}

func single(data []Appointment) *Page {
	if data == nil {
		data = []Appointment{}
	}
	return &Page{Data: data, Total: len(data), Page: 1, Limit: len(data), TotalPages: 1}
}
