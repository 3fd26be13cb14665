package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/booking"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/caption"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/readiness"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/slot"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

// RoomMarker receives "room opened" callbacks from the video backend.
type RoomMarker interface {
	MarkRoomCreated(ctx context.Context, appointmentID string) error
}

type handlers struct {
	slots        *slot.Service
	appointments *appointment.Manager
	booking      *booking.Orchestrator
	readiness    *readiness.Watcher
	captions     *caption.Registry
	captionKind  caption.Kind
	rooms        RoomMarker
	loc          *time.Location
	now          func() time.Time
	log          *logrus.Logger
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	q := slot.Query{DoctorID: doctorID, TimeZone: r.URL.Query().Get("timezone")}

	var err error
	if q.From, err = h.parseOptionalTime(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
		return
	}
	if q.To, err = h.parseOptionalTime(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
		return
	}
	availableOnly, _ := strconv.ParseBool(r.URL.Query().Get("available"))

	groups, err := h.slots.Grouped(r.Context(), principalFrom(r.Context()), q, availableOnly)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := SlotsByDateResponse{DoctorID: doctorID, Days: make([]SlotDayResponse, 0, len(groups))}
	for _, date := range slot.Dates(groups) {
		resp.Days = append(resp.Days, SlotDayResponse{Date: string(date), Slots: toSlotResponses(groups[date])})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) generateSlots(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if p.IsPatient() {
		writeError(w, http.StatusForbidden, "forbidden", "only doctors and admins can generate slots")
		return
	}

	var req GenerateSlotsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	date := wallclock.StartOfDay(h.now().In(h.loc))
	if req.Date != "" {
		parsed, err := wallclock.Parse(req.Date, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		date = parsed
	}

	doctorID := chi.URLParam(r, "doctorID")
	var (
		created []slot.AvailabilitySlot
		err     error
	)
	if req.Days == 1 {
		created, err = h.slots.GenerateDay(r.Context(), p, doctorID, date)
	} else {
		created, err = h.slots.GenerateWeek(r.Context(), p, doctorID, date, req.Days)
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponses(created))
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if strings.TrimSpace(req.DoctorID) == "" || strings.TrimSpace(req.SlotID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "doctorId and slotId are required")
		return
	}

	p := principalFrom(r.Context())
	selected, err := h.slots.Lookup(r.Context(), p, req.DoctorID, req.SlotID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	b, err := h.booking.Book(r.Context(), p, booking.Selection{
		DoctorUserID: req.DoctorUserID,
		Slot:         selected,
		Modality:     req.Modality,
		Reason:       req.Reason,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookingResponse{
		Appointment: toAppointmentResponse(b.Appointment),
		Slot:        toSlotResponse(b.Slot),
	})
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.appointments.Get(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req CancelAppointmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.appointments.Cancel(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "id"), strings.TrimSpace(req.CancelReason))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	view, err := appointment.ParseView(qs.Get("view"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	q := appointment.ListQuery{View: view, Order: appointment.ParseSortOrder(qs.Get("order"))}
	if q.Page, err = optionalInt(qs.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_page", "page must be an integer")
		return
	}
	if q.Limit, err = optionalInt(qs.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return
	}

	page, err := h.appointments.List(r.Context(), principalFrom(r.Context()), q)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *handlers) appointmentReadiness(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appt, err := h.appointments.Get(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	res, err := h.readiness.Check(r.Context(), *appt)
	if err != nil {
		// evaluated as "no room yet"; the next poll may see it
		h.log.WithError(err).WithField("appointment_id", id).Warn("room probe failed")
	}
	writeJSON(w, http.StatusOK, ReadinessResponseBody{AppointmentID: id, Result: res})
}

func (h *handlers) acquireCaptions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	lang := r.URL.Query().Get("lang")

	kind := h.captionKind
	if raw := r.URL.Query().Get("transport"); raw != "" {
		parsed, err := caption.ParseKind(raw)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		kind = parsed
	}

	client, err := h.captions.Acquire(sessionID, lang, kind)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, captionSession(client))
}

func (h *handlers) getCaptions(w http.ResponseWriter, r *http.Request) {
	client, ok := h.captions.Get(chi.URLParam(r, "sessionID"), r.URL.Query().Get("lang"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_subscribed", "no caption subscription for this session and language")
		return
	}
	writeJSON(w, http.StatusOK, captionSession(client))
}

func (h *handlers) releaseCaptions(w http.ResponseWriter, r *http.Request) {
	if !h.captions.Release(chi.URLParam(r, "sessionID"), r.URL.Query().Get("lang")) {
		writeError(w, http.StatusNotFound, "not_subscribed", "no caption subscription for this session and language")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) roomCreated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	if err := h.rooms.MarkRoomCreated(r.Context(), id); err != nil {
		h.log.WithError(err).WithField("appointment_id", id).Error("failed to record room")
		writeError(w, http.StatusServiceUnavailable, "room_signal_failed", "could not record room creation")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func captionSession(c *caption.Client) CaptionSessionResponse {
	resp := CaptionSessionResponse{
		SessionID: c.SessionID(),
		Lang:      c.Lang(),
		Connected: c.Connected(),
		Captions:  c.Captions(),
	}
	if err := c.Err(); err != nil {
		resp.Error = err.Error()
	}
	if resp.Captions == nil {
		resp.Captions = []caption.Chunk{}
	}
	return resp
}

func (h *handlers) parseOptionalTime(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	return wallclock.Parse(raw, h.loc)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleError maps the shared error taxonomy onto HTTP statuses.
func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, slot.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, "generation_in_progress", "slot generation is already running, please retry shortly")
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperr.ErrTransport):
		h.log.WithError(err).WithField("request_id", GetRequestID(r.Context())).Warn("backend unavailable")
		writeError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
	default:
		h.log.WithError(err).WithField("request_id", GetRequestID(r.Context())).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
