package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/readiness"
)

var _ readiness.RoomExistenceProbe = (*Client)(nil)

// RoomExists reports whether the host has opened a video room for the
// appointment. A 404 is an answer, not a failure.
func (c *Client) RoomExists(ctx context.Context, appointmentID string) (bool, error) {
	_, err := c.do(ctx, call{
		op:     "room_exists",
		method: http.MethodGet,
		path:   "/video/rooms/" + url.PathEscape(appointmentID),
		token:  c.serviceToken,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
