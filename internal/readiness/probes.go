package readiness

import (
	"context"
	"errors"
)

// Probes asks each probe in order and reports a room as soon as one sees it.
// An error is returned only when no probe answered.
type Probes []RoomExistenceProbe

func (ps Probes) RoomExists(ctx context.Context, appointmentID string) (bool, error) {
	var errs []error
	answered := false
	for _, p := range ps {
		ok, err := p.RoomExists(ctx, appointmentID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
		answered = true
	}
	if answered {
		return false, nil
	}
	return false, errors.Join(errs...)
}
