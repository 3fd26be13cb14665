package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

var _ appointment.Repository = (*Client)(nil)

// flexString accepts ids sent either as strings or as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// wireAppointment tolerates the field names used by older and newer backend
// versions.
type wireAppointment struct {
	ID              flexString `json:"id"`
	PatientUserID   flexString `json:"patientUserId"`
	PatientID       flexString `json:"patientId"`
	DoctorUserID    flexString `json:"doctorUserId"`
	DoctorID        flexString `json:"doctorId"`
	SlotID          flexString `json:"slotId"`
	ScheduledAt     string     `json:"scheduledAt"`
	StartAt         string     `json:"startAt"`
	DurationMinutes int        `json:"durationMinutes"`
	DurationMin     int        `json:"durationMin"`
	Status          string     `json:"status"`
	Modality        string     `json:"modality"`
	Reason          string     `json:"reason"`
	CancelReason    string     `json:"cancelReason"`
	CancelledBy     flexString `json:"cancelledBy"`
	VideoRoomID     flexString `json:"videoRoomId"`
}

func firstOf[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

func (c *Client) toAppointment(w wireAppointment) (appointment.Appointment, error) {
	a := appointment.Appointment{
		ID:           string(w.ID),
		PatientID:    string(firstOf(w.PatientUserID, w.PatientID)),
		DoctorID:     string(firstOf(w.DoctorUserID, w.DoctorID)),
		SlotID:       string(w.SlotID),
		DurationMin:  firstOf(w.DurationMinutes, w.DurationMin),
		Status:       appointment.ParseStatus(w.Status),
		Modality:     appointment.ModalityFromBackend(w.Modality),
		Reason:       w.Reason,
		CancelReason: w.CancelReason,
		CancelledBy:  string(w.CancelledBy),
		VideoRoomID:  string(w.VideoRoomID),
	}
	if a.ID == "" {
		return appointment.Appointment{}, fmt.Errorf("%w: appointment without id", apperr.ErrTransport)
	}
	if raw := firstOf(w.ScheduledAt, w.StartAt); raw != "" {
		t, err := wallclock.Parse(raw, c.loc)
		if err != nil {
			return appointment.Appointment{}, fmt.Errorf("%w: appointment %s: %v", apperr.ErrTransport, a.ID, err)
		}
		a.ScheduledAt = t
	}
	return a, nil
}

func (c *Client) decodeAppointment(op string, raw []byte) (*appointment.Appointment, error) {
	var w wireAppointment
	if err := decode(op, raw, &w); err != nil {
		return nil, err
	}
	a, err := c.toAppointment(w)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type createAppointmentRequest struct {
	DoctorUserID string `json:"doctorUserId"`
	SlotID       string `json:"slotId"`
	Modality     string `json:"modality"`
	Reason       string `json:"reason,omitempty"`
}

func (c *Client) Create(ctx context.Context, p identity.Principal, req appointment.CreateRequest) (*appointment.Appointment, error) {
	raw, err := c.do(ctx, c.asUser(p, call{
		op:     "create_appointment",
		method: http.MethodPost,
		path:   "/appointments",
		body: createAppointmentRequest{
			DoctorUserID: req.DoctorUserID,
			SlotID:       req.SlotID,
			Modality:     string(req.Modality),
			Reason:       req.Reason,
		},
	}))
	if err != nil {
		return nil, err
	}
	return c.decodeAppointment("create_appointment", raw)
}

func (c *Client) Get(ctx context.Context, p identity.Principal, id string) (*appointment.Appointment, error) {
	raw, err := c.do(ctx, c.asUser(p, call{
		op:     "get_appointment",
		method: http.MethodGet,
		path:   "/appointments/" + url.PathEscape(id),
	}))
	if err != nil {
		return nil, err
	}
	return c.decodeAppointment("get_appointment", raw)
}

type cancelRequest struct {
	CancelReason string `json:"cancelReason,omitempty"`
}

func (c *Client) Cancel(ctx context.Context, p identity.Principal, id, reason string) (*appointment.Appointment, error) {
	raw, err := c.do(ctx, c.asUser(p, call{
		op:     "cancel_appointment",
		method: http.MethodPatch,
		path:   "/appointments/" + url.PathEscape(id) + "/cancel",
		body:   cancelRequest{CancelReason: strings.TrimSpace(reason)},
	}))
	if err != nil {
		return nil, err
	}
	// some deployments answer 204; read the record back instead
	if len(bytes.TrimSpace(raw)) == 0 {
		return c.Get(ctx, p, id)
	}
	return c.decodeAppointment("cancel_appointment", raw)
}

type wirePage struct {
	Data       []wireAppointment `json:"data"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

func (c *Client) List(ctx context.Context, p identity.Principal, q appointment.ListQuery) (*appointment.Page, error) {
	cl := call{op: "list_appointments", method: http.MethodGet, path: "/appointments"}
	switch q.View {
	case appointment.ViewUpcoming, appointment.ViewPast, appointment.ViewCancelled:
		cl.path += "/" + string(q.View)
	case appointment.ViewAll, "":
		params := url.Values{}
		if q.Page > 0 {
			params.Set("page", strconv.Itoa(q.Page))
		}
		if q.Limit > 0 {
			params.Set("limit", strconv.Itoa(q.Limit))
		}
		if q.Order != "" {
			params.Set("order", string(q.Order))
		}
		cl.query = params
	default:
		return nil, apperr.Validation("unknown view %q", q.View)
	}

	raw, err := c.do(ctx, c.asUser(p, cl))
	if err != nil {
		return nil, err
	}

	var wp wirePage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decode(cl.op, trimmed, &wp.Data); err != nil {
			return nil, err
		}
		wp.Total = len(wp.Data)
	} else if err := decode(cl.op, trimmed, &wp); err != nil {
		return nil, err
	}

	page := &appointment.Page{
		Data:       make([]appointment.Appointment, 0, len(wp.Data)),
		Total:      wp.Total,
		Page:       wp.Page,
		Limit:      wp.Limit,
		TotalPages: wp.TotalPages,
	}
	for _, w := range wp.Data {
		a, err := c.toAppointment(w)
		if err != nil {
			return nil, err
		}
		page.Data = append(page.Data, a)
	}
	return page, nil
}
