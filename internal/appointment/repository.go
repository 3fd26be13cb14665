package appointment

import (
	"context"
	"fmt"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
)

var (
	ErrAppointmentNotFound = fmt.Errorf("%w: appointment", apperr.ErrNotFound)
	ErrNotCancellable      = fmt.Errorf("%w: appointment can no longer be cancelled", apperr.ErrConflict)
	ErrSlotTaken           = fmt.Errorf("%w: slot already booked", apperr.ErrConflict)
)

type CreateRequest struct {
	DoctorUserID string
	SlotID       string
	Modality     Modality
	Reason       string
}

type ListQuery struct {
	View  View
	Page  int
	Limit int
	Order SortOrder
}

// Repository is the remote appointment API. Implementations wrap failures in
// the apperr taxonomy so the manager and orchestrator can branch on them.
type Repository interface {
	Create(ctx context.Context, p identity.Principal, req CreateRequest) (*Appointment, error)
	Get(ctx context.Context, p identity.Principal, id string) (*Appointment, error)
	Cancel(ctx context.Context, p identity.Principal, id, reason string) (*Appointment, error)
	List(ctx context.Context, p identity.Principal, q ListQuery) (*Page, error)
}
