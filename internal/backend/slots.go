package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/slot"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

var _ slot.Repository = (*Client)(nil)

func (c *Client) ListSlots(ctx context.Context, p identity.Principal, q slot.Query) ([]slot.AvailabilitySlot, error) {
	if q.DoctorID == "" {
		return nil, slot.ErrDoctorRequired
	}

	params := url.Values{}
	if !q.From.IsZero() {
		params.Set("from", wallclock.Format(q.From))
	}
	if !q.To.IsZero() {
		params.Set("to", wallclock.Format(q.To))
	}
	if q.TimeZone != "" {
		params.Set("timezone", q.TimeZone)
	}

	raw, err := c.do(ctx, c.asUser(p, call{
		op:     "list_slots",
		method: http.MethodGet,
		path:   "/availability/doctor/" + url.PathEscape(q.DoctorID),
		query:  params,
	}))
	if err != nil {
		return nil, err
	}
	return slot.NormalizeList(raw, c.loc)
}

type batchRequest struct {
	DoctorID string      `json:"doctorId"`
	Slots    []slot.Spec `json:"slots"`
}

func (c *Client) CreateSlots(ctx context.Context, p identity.Principal, doctorID string, specs []slot.Spec) ([]slot.AvailabilitySlot, error) {
	if doctorID == "" {
		return nil, slot.ErrDoctorRequired
	}

	raw, err := c.do(ctx, c.asUser(p, call{
		op:     "create_slots",
		method: http.MethodPost,
		path:   "/availability/batch",
		body:   batchRequest{DoctorID: doctorID, Slots: specs},
	}))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return slot.NormalizeList(raw, c.loc)
}
