package slot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

// Known spellings the backend has used for each canonical field.
var (
	idKeys         = []string{"id", "_id", "Id", "ID"}
	doctorKeys     = []string{"doctorId", "doctor_id", "doctorUserId", "DoctorId"}
	startKeys      = []string{"startAt", "start_at", "startTime", "start_time", "start", "StartAt"}
	endKeys        = []string{"endAt", "end_at", "endTime", "end_time", "end", "EndAt"}
	bookedKeys     = []string{"isBooked", "is_booked", "booked", "IsBooked"}
	recurringKeys  = []string{"isRecurring", "is_recurring", "recurring", "IsRecurring"}
	ruleKeys       = []string{"recurrenceRule", "recurrence_rule", "rrule"}
	appointmentKey = []string{"appointmentId", "appointment_id", "AppointmentId"}
)

// Normalize maps one raw slot object onto AvailabilitySlot. Timestamps go
// through wallclock.Parse so the UTC marker never leaks into the core.
func Normalize(raw []byte, loc *time.Location) (AvailabilitySlot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return AvailabilitySlot{}, apperr.Validation("slot payload is not an object: %v", err)
	}

	var s AvailabilitySlot
	s.ID = lookupString(fields, idKeys)
	s.DoctorID = lookupString(fields, doctorKeys)
	s.RecurrenceRule = lookupString(fields, ruleKeys)
	s.AppointmentID = lookupString(fields, appointmentKey)
	s.IsBooked = lookupBool(fields, bookedKeys)
	s.IsRecurring = lookupBool(fields, recurringKeys)

	start := lookupString(fields, startKeys)
	end := lookupString(fields, endKeys)
	if start == "" || end == "" {
		return AvailabilitySlot{}, apperr.Validation("slot %q is missing start or end time", s.ID)
	}

	var err error
	if s.StartAt, err = wallclock.Parse(start, loc); err != nil {
		return AvailabilitySlot{}, apperr.Validation("slot %q start: %v", s.ID, err)
	}
	if s.EndAt, err = wallclock.Parse(end, loc); err != nil {
		return AvailabilitySlot{}, apperr.Validation("slot %q end: %v", s.ID, err)
	}
	if !s.EndAt.After(s.StartAt) {
		return AvailabilitySlot{}, apperr.Validation("slot %q ends before it starts", s.ID)
	}

	return s, nil
}

// NormalizeList accepts either a bare array or an object wrapping it under
// "data" or "slots".
func NormalizeList(raw []byte, loc *time.Location) ([]AvailabilitySlot, error) {
	items, err := unwrapList(raw)
	if err != nil {
		return nil, err
	}

	out := make([]AvailabilitySlot, 0, len(items))
	for i, item := range items {
		s, err := Normalize(item, loc)
		if err != nil {
			return nil, fmt.Errorf("slot[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func unwrapList(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, apperr.Validation("slot list: %v", err)
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, apperr.Validation("slot list: %v", err)
	}
	for _, key := range []string{"data", "slots", "items"} {
		if inner, ok := envelope[key]; ok {
			return unwrapList(inner)
		}
	}
	return nil, apperr.Validation("slot list: no data array in response")
}

func lookupString(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || bytes.Equal(v, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.TrimSpace(s)
		}
		// numeric ids
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func lookupBool(fields map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			return b
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if parsed, err := strconv.ParseBool(s); err == nil {
				return parsed
			}
		}
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			return n != 0
		}
	}
	return false
}
