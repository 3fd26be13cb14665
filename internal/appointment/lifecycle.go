package appointment

import (
	"sort"
	"time"
)

type Classification struct {
	Upcoming []Appointment
	Past     []Appointment
}

// Classify splits the non-cancelled appointments into upcoming and past.
// An appointment starting exactly at now is upcoming.
func Classify(appts []Appointment, now time.Time) Classification {
	var c Classification
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		if a.ScheduledAt.Before(now) {
			c.Past = append(c.Past, a)
		} else {
			c.Upcoming = append(c.Upcoming, a)
		}
	}
	return c
}

func CancelledOnly(appts []Appointment) []Appointment {
	var out []Appointment
	for _, a := range appts {
		if a.Status == StatusCancelled {
			out = append(out, a)
		}
	}
	return out
}

// CanCancel is true only for PENDING or CONFIRMED appointments that have not started.
func CanCancel(a Appointment, now time.Time) bool {
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return false
	}
	return !a.ScheduledAt.Before(now)
}

// SortByScheduled orders appts in place; equal times keep server order.
func SortByScheduled(appts []Appointment, order SortOrder) {
	sort.SliceStable(appts, func(i, j int) bool {
		if order == SortDesc {
			return appts[i].ScheduledAt.After(appts[j].ScheduledAt)
		}
		return appts[i].ScheduledAt.Before(appts[j].ScheduledAt)
	})
}
