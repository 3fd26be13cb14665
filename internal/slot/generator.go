package slot

import (
	"fmt"
	"time"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

const (
	DefaultStartHour = 9
	DefaultEndHour   = 17
	DefaultWeekDays  = 7
)

// Generator produces hourly slot specs for a working day.
type Generator struct {
	StartHour int
	EndHour   int
	Loc       *time.Location
}

func NewGenerator(startHour, endHour int, loc *time.Location) (Generator, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return Generator{}, fmt.Errorf("invalid working hours [%d, %d)", startHour, endHour)
	}
	if loc == nil {
		loc = time.Local
	}
	return Generator{StartHour: startHour, EndHour: endHour, Loc: loc}, nil
}

// Day returns one spec per hour in [StartHour, EndHour) for date, or nothing
// at all when existing already holds any slot on that date. Presence of a
// single slot is enough to skip the whole day.
func (g Generator) Day(date time.Time, existing []AvailabilitySlot) []Spec {
	key := DateKey(wallclock.DateOf(date.In(g.location())))
	for _, s := range existing {
		if s.Date() == key {
			return nil
		}
	}

	specs := make([]Spec, 0, g.EndHour-g.StartHour)
	for h := g.StartHour; h < g.EndHour; h++ {
		specs = append(specs, Spec{
			Date:      key,
			StartTime: fmt.Sprintf("%02d:00", h),
			EndTime:   fmt.Sprintf("%02d:00", h+1),
		})
	}
	return specs
}

// Week applies Day to days consecutive calendar dates starting at reference.
func (g Generator) Week(reference time.Time, days int, existing []AvailabilitySlot) []Spec {
	if days <= 0 {
		days = DefaultWeekDays
	}
	first := wallclock.StartOfDay(reference.In(g.location()))

	var specs []Spec
	for i := range days {
		specs = append(specs, g.Day(first.AddDate(0, 0, i), existing)...)
	}
	return specs
}

// Range is the [from, to) window covering days dates from reference; used to
// fetch the existing slots the guard needs.
func (g Generator) Range(reference time.Time, days int) (time.Time, time.Time) {
	if days <= 0 {
		days = DefaultWeekDays
	}
	from := wallclock.StartOfDay(reference.In(g.location()))
	return from, from.AddDate(0, 0, days)
}

func (g Generator) location() *time.Location {
	if g.Loc == nil {
		return time.Local
	}
	return g.Loc
}
