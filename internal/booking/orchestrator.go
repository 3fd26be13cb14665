// Package booking turns a patient's slot selection into an appointment. It
// validates the request, refuses slots already known to be taken, and makes
// exactly one remote create call; conflicts are returned, never retried.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/eventlog"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/metrics"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/slot"
)

const EventAppointmentBooked = "APPOINTMENT_BOOKED"

const MaxReasonLength = 500

var bookingTracer = otel.Tracer("telehealth/booking")

// Selection is what the patient picked in the booking view.
type Selection struct {
	DoctorUserID string // defaults to Slot.DoctorID
	Slot         slot.AvailabilitySlot
	Modality     string
	Reason       string
}

type payload struct {
	DoctorUserID string `json:"doctorUserId" validate:"required"`
	SlotID       string `json:"slotId" validate:"required"`
	Modality     string `json:"modality" validate:"required"`
	Reason       string `json:"reason" validate:"max=500"`
}

// Booking is the created appointment plus the slot as it now stands locally.
type Booking struct {
	Appointment appointment.Appointment
	Slot        slot.AvailabilitySlot
}

type Orchestrator struct {
	appts    appointment.Repository
	validate *validator.Validate
	events   eventlog.Sink
	metrics  *metrics.SchedulingMetrics
	log      *logrus.Logger
}

type Deps struct {
	Appointments appointment.Repository
	Events       eventlog.Sink
	Metrics      *metrics.SchedulingMetrics
	Log          *logrus.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Events == nil {
		d.Events = eventlog.Nop{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return &Orchestrator{
		appts:    d.Appointments,
		validate: newValidator(),
		events:   d.Events,
		metrics:  d.Metrics,
		log:      d.Log,
	}
}

func (o *Orchestrator) Book(ctx context.Context, p identity.Principal, sel Selection) (*Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.book", trace.WithAttributes(
		attribute.String("slot.id", sel.Slot.ID),
		attribute.String("booking.modality", sel.Modality),
	))
	defer span.End()

	req, err := o.prepare(p, sel)
	if err != nil {
		o.metrics.ObserveBooking("invalid")
		span.RecordError(err)
		return nil, err
	}

	if sel.Slot.IsBooked {
		o.metrics.ObserveBooking("conflict")
		o.log.WithField("slot_id", sel.Slot.ID).Info("booking refused, slot already booked")
		return nil, appointment.ErrSlotTaken
	}

	start := time.Now()
	appt, err := o.appts.Create(ctx, p, req)
	o.metrics.ObserveRemoteCall("create_appointment", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveBooking(outcome(err))
		o.log.WithError(err).WithFields(logrus.Fields{
			"slot_id":   req.SlotID,
			"doctor_id": req.DoctorUserID,
		}).Warn("booking failed")
		return nil, fmt.Errorf("book slot %s: %w", req.SlotID, err)
	}

	fillDefaults(appt, p, req, sel.Slot)

	booked := sel.Slot
	booked.IsBooked = true
	booked.AppointmentID = appt.ID

	o.metrics.ObserveBooking("created")
	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	o.events.Record(ctx, eventlog.Event{
		Type:          EventAppointmentBooked,
		AppointmentID: appt.ID,
		ActorID:       p.UserID,
		Payload: map[string]any{
			"doctor_id": req.DoctorUserID,
			"slot_id":   req.SlotID,
			"modality":  string(req.Modality),
		},
	})
	o.log.WithFields(logrus.Fields{
		"appointment_id": appt.ID,
		"slot_id":        req.SlotID,
		"modality":       req.Modality,
	}).Info("appointment booked")

	return &Booking{Appointment: *appt, Slot: booked}, nil
}

func (o *Orchestrator) prepare(p identity.Principal, sel Selection) (appointment.CreateRequest, error) {
	if p.UserID == "" {
		return appointment.CreateRequest{}, apperr.Validation("patient identity is required")
	}

	doctor := strings.TrimSpace(sel.DoctorUserID)
	if doctor == "" {
		doctor = sel.Slot.DoctorID
	}
	pl := payload{
		DoctorUserID: doctor,
		SlotID:       strings.TrimSpace(sel.Slot.ID),
		Modality:     strings.TrimSpace(sel.Modality),
		Reason:       strings.TrimSpace(sel.Reason),
	}
	if err := o.validate.Struct(pl); err != nil {
		return appointment.CreateRequest{}, apperr.Validation("%s", formatValidationErrors(err))
	}

	modality, err := appointment.ParseModality(pl.Modality)
	if err != nil {
		return appointment.CreateRequest{}, err
	}

	return appointment.CreateRequest{
		DoctorUserID: pl.DoctorUserID,
		SlotID:       pl.SlotID,
		Modality:     modality,
		Reason:       pl.Reason,
	}, nil
}

// fillDefaults completes fields a terse backend response may omit.
func fillDefaults(a *appointment.Appointment, p identity.Principal, req appointment.CreateRequest, s slot.AvailabilitySlot) {
	if a.PatientID == "" {
		a.PatientID = p.UserID
	}
	if a.DoctorID == "" {
		a.DoctorID = req.DoctorUserID
	}
	if a.SlotID == "" {
		a.SlotID = req.SlotID
	}
	if a.Modality == "" {
		a.Modality = req.Modality
	}
	if a.Status == "" {
		a.Status = appointment.StatusPending
	}
	if a.ScheduledAt.IsZero() {
		a.ScheduledAt = s.StartAt
	}
	if a.DurationMin == 0 && !s.EndAt.IsZero() {
		a.DurationMin = int(s.Duration() / time.Minute)
	}
	if a.Reason == "" {
		a.Reason = req.Reason
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
