package slot

import (
	"time"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

// DateKey is a local calendar date, formatted 2006-01-02.
type DateKey string

type AvailabilitySlot struct {
	ID             string
	DoctorID       string
	StartAt        time.Time
	EndAt          time.Time
	IsRecurring    bool
	RecurrenceRule string
	IsBooked       bool
	AppointmentID  string
}

func (s AvailabilitySlot) Date() DateKey {
	return DateKey(wallclock.DateOf(s.StartAt))
}

func (s AvailabilitySlot) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}

// Spec is one slot to be created by the batch call. Times are local HH:MM.
type Spec struct {
	Date      DateKey `json:"date"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
}

// Query selects the slots of one doctor in [From, To].
type Query struct {
	DoctorID string
	From     time.Time
	To       time.Time
	TimeZone string // optional IANA hint forwarded to the backend
}
