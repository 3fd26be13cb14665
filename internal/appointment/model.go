package appointment

import (
	"strings"
	"time"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
)

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusNoShow      Status = "NO_SHOW"
	StatusRescheduled Status = "RESCHEDULED"
	StatusScheduled   Status = "SCHEDULED" // legacy, still returned by older records
)

// ParseStatus upper-cases the wire value; unknown statuses pass through so
// that a new backend state is never mistaken for CANCELLED.
func ParseStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

type Modality string

const (
	ModalityOnline   Modality = "online"
	ModalityInPerson Modality = "in_person"
	ModalityPhone    Modality = "phone"
)

// ParseModality accepts only the canonical vocabulary. The legacy "onsite"
// and "hybrid" values are rejected rather than mapped, since neither has a
// confirmed canonical equivalent.
func ParseModality(s string) (Modality, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "online":
		return ModalityOnline, nil
	case "in_person", "in-person", "inperson":
		return ModalityInPerson, nil
	case "phone":
		return ModalityPhone, nil
	case "onsite", "hybrid":
		return "", apperr.Validation("modality %q is ambiguous, use one of online, in_person, phone", s)
	default:
		return "", apperr.Validation("unknown modality %q", s)
	}
}

// ModalityFromBackend is lenient: values outside the canonical set are kept
// verbatim and simply never count as online.
func ModalityFromBackend(s string) Modality {
	if m, err := ParseModality(s); err == nil {
		return m
	}
	return Modality(strings.ToLower(strings.TrimSpace(s)))
}

func (m Modality) IsOnline() bool { return m == ModalityOnline }

type Appointment struct {
	ID           string
	PatientID    string
	DoctorID     string
	SlotID       string
	ScheduledAt  time.Time // wall-clock time in the caller's location
	DurationMin  int
	Status       Status
	Modality     Modality
	Reason       string
	CancelReason string
	CancelledBy  string
	VideoRoomID  string
}

type View string

const (
	ViewUpcoming  View = "upcoming"
	ViewPast      View = "past"
	ViewCancelled View = "cancelled"
	ViewAll       View = "all"
)

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewUpcoming, ViewPast, ViewCancelled, ViewAll:
		return v, nil
	case "":
		return ViewAll, nil
	default:
		return "", apperr.Validation("unknown view %q", s)
	}
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// Page is the pagination envelope of the "all" listing.
type Page struct {
	Data       []Appointment
	Total      int
	Page       int
	Limit      int
	TotalPages int
}
