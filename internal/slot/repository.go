package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
)

var (
	ErrGenerationInProgress = fmt.Errorf("%w: slot generation already running for this doctor", apperr.ErrConflict)
	ErrDoctorRequired       = apperr.Validation("doctor id is required")
	ErrSlotNotFound         = fmt.Errorf("%w: slot", apperr.ErrNotFound)
)

// Repository is the remote source of truth for availability. Implementations
// only translate; grouping and generation rules live in this package.
type Repository interface {
	ListSlots(ctx context.Context, p identity.Principal, q Query) ([]AvailabilitySlot, error)
	// CreateSlots submits specs as a single batch. A failure covers the whole batch.
	CreateSlots(ctx context.Context, p identity.Principal, doctorID string, specs []Spec) ([]AvailabilitySlot, error)
}

// Locker serialises generation per key. ErrLockNotAcquired from the
// implementation must satisfy errors.Is(err, ErrLockBusy).
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

var ErrLockBusy = errors.New("lock busy")

// NoopLocker runs fn immediately; used when no Redis is configured.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
