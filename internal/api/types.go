package api

import (
	"time"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/caption"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/readiness"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/slot"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

type GenerateSlotsRequest struct {
	Date string `json:"date"` // 2006-01-02, defaults to today
	Days int    `json:"days"` // 1 for a single day, 0 means a week
}

type BookAppointmentRequest struct {
	DoctorID     string `json:"doctorId"`
	DoctorUserID string `json:"doctorUserId,omitempty"`
	SlotID       string `json:"slotId"`
	Modality     string `json:"modality"`
	Reason       string `json:"reason,omitempty"`
}

type CancelAppointmentRequest struct {
	CancelReason string `json:"cancelReason,omitempty"`
}

type SlotResponse struct {
	ID             string `json:"id"`
	DoctorID       string `json:"doctorId"`
	StartAt        string `json:"startAt"`
	EndAt          string `json:"endAt"`
	IsRecurring    bool   `json:"isRecurring"`
	RecurrenceRule string `json:"recurrenceRule,omitempty"`
	IsBooked       bool   `json:"isBooked"`
	AppointmentID  string `json:"appointmentId,omitempty"`
}

type SlotDayResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type SlotsByDateResponse struct {
	DoctorID string            `json:"doctorId"`
	Days     []SlotDayResponse `json:"days"`
}

type AppointmentResponse struct {
	ID           string `json:"id"`
	PatientID    string `json:"patientId,omitempty"`
	DoctorID     string `json:"doctorId,omitempty"`
	SlotID       string `json:"slotId,omitempty"`
	ScheduledAt  string `json:"scheduledAt,omitempty"`
	DurationMin  int    `json:"durationMinutes,omitempty"`
	Status       string `json:"status"`
	Modality     string `json:"modality,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
	CancelledBy  string `json:"cancelledBy,omitempty"`
	VideoRoomID  string `json:"videoRoomId,omitempty"`
}

type AppointmentPageResponse struct {
	Data       []AppointmentResponse `json:"data"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"totalPages"`
}

type BookingResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Slot        SlotResponse        `json:"slot"`
}

type ReadinessResponseBody struct {
	AppointmentID string `json:"appointmentId"`
	readiness.Result
}

type CaptionSessionResponse struct {
	SessionID string          `json:"sessionId"`
	Lang      string          `json:"lang"`
	Connected bool            `json:"connected"`
	Error     string          `json:"error,omitempty"`
	Captions  []caption.Chunk `json:"captions"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return wallclock.Format(t)
}

func toSlotResponse(s slot.AvailabilitySlot) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		DoctorID:       s.DoctorID,
		StartAt:        formatTime(s.StartAt),
		EndAt:          formatTime(s.EndAt),
		IsRecurring:    s.IsRecurring,
		RecurrenceRule: s.RecurrenceRule,
		IsBooked:       s.IsBooked,
		AppointmentID:  s.AppointmentID,
	}
}

func toSlotResponses(slots []slot.AvailabilitySlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		SlotID:       a.SlotID,
		ScheduledAt:  formatTime(a.ScheduledAt),
		DurationMin:  a.DurationMin,
		Status:       string(a.Status),
		Modality:     string(a.Modality),
		Reason:       a.Reason,
		CancelReason: a.CancelReason,
		CancelledBy:  a.CancelledBy,
		VideoRoomID:  a.VideoRoomID,
	}
}

func toPageResponse(p *appointment.Page) AppointmentPageResponse {
	data := make([]AppointmentResponse, 0, len(p.Data))
	for _, a := range p.Data {
		data = append(data, toAppointmentResponse(a))
	}
	return AppointmentPageResponse{
		Data:       data,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
	}
}
