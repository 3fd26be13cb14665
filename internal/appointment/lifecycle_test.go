package appointment

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

var loc = time.FixedZone("CST", -6*60*60)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled,
	StatusNoShow, StatusRescheduled, StatusScheduled,
}

func TestClassifyUsesWallClockTime(t *testing.T) {
	scheduled, err := wallclock.Parse("2025-10-27T09:00:00Z", loc)
	require.NoError(t, err)
	now := time.Date(2025, 10, 27, 8, 0, 0, 0, loc)

	c := Classify([]Appointment{{ID: "a", Status: StatusConfirmed, ScheduledAt: scheduled}}, now)

	require.Len(t, c.Upcoming, 1)
	assert.Empty(t, c.Past)

	// Reading the marker as a real UTC instant would have put it in the past.
	naive, err := time.Parse(time.RFC3339, "2025-10-27T09:00:00Z")
	require.NoError(t, err)
	assert.True(t, naive.Before(now))
}

func TestClassifyBoundaryIsUpcoming(t *testing.T) {
	now := time.Date(2025, 10, 27, 9, 0, 0, 0, loc)
	c := Classify([]Appointment{{ID: "a", Status: StatusPending, ScheduledAt: now}}, now)
	assert.Len(t, c.Upcoming, 1)
}

func TestClassifyPartition(t *testing.T) {
	f := gofakeit.New(11)
	now := time.Date(2025, 10, 27, 12, 0, 0, 0, loc)

	for range 50 {
		n := f.IntRange(0, 30)
		appts := make([]Appointment, 0, n)
		for range n {
			appts = append(appts, Appointment{
				ID:          f.UUID(),
				Status:      allStatuses[f.IntRange(0, len(allStatuses)-1)],
				ScheduledAt: now.Add(time.Duration(f.IntRange(-72, 72)) * time.Hour),
			})
		}

		c := Classify(appts, now)

		placed := map[string]int{}
		for _, a := range c.Upcoming {
			placed[a.ID]++
			assert.False(t, a.ScheduledAt.Before(now))
		}
		for _, a := range c.Past {
			placed[a.ID]++
			assert.True(t, a.ScheduledAt.Before(now))
		}
		for _, a := range appts {
			if a.Status == StatusCancelled {
				assert.Zero(t, placed[a.ID], "cancelled appointment %s was classified", a.ID)
			} else {
				assert.Equal(t, 1, placed[a.ID], "appointment %s placed %d times", a.ID, placed[a.ID])
			}
		}
	}
}

func TestCancelledOnly(t *testing.T) {
	got := CancelledOnly([]Appointment{
		{ID: "a", Status: StatusCancelled},
		{ID: "b", Status: StatusConfirmed},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestCanCancel(t *testing.T) {
	now := time.Date(2025, 10, 27, 12, 0, 0, 0, loc)
	future := now.Add(2 * time.Hour)
	past := now.Add(-time.Minute)

	for _, s := range allStatuses {
		want := s == StatusPending || s == StatusConfirmed
		assert.Equal(t, want, CanCancel(Appointment{Status: s, ScheduledAt: future}, now), "status %s", s)
		assert.False(t, CanCancel(Appointment{Status: s, ScheduledAt: past}, now), "past %s", s)
	}
}

func TestCanCancelTerminalFlipsFalse(t *testing.T) {
	now := time.Date(2025, 10, 27, 12, 0, 0, 0, loc)
	a := Appointment{Status: StatusConfirmed, ScheduledAt: now.Add(time.Hour)}
	require.True(t, CanCancel(a, now))

	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusNoShow} {
		a.Status = s
		assert.False(t, CanCancel(a, now), "status %s", s)
	}
}

func TestSortByScheduledIsStable(t *testing.T) {
	base := time.Date(2025, 10, 27, 9, 0, 0, 0, loc)
	appts := []Appointment{
		{ID: "late", ScheduledAt: base.Add(2 * time.Hour)},
		{ID: "tie-1", ScheduledAt: base},
		{ID: "tie-2", ScheduledAt: base},
	}

	SortByScheduled(appts, SortAsc)
	assert.Equal(t, []string{"tie-1", "tie-2", "late"}, ids(appts))

	SortByScheduled(appts, SortDesc)
	assert.Equal(t, []string{"late", "tie-1", "tie-2"}, ids(appts))
}

func TestParseModality(t *testing.T) {
	for in, want := range map[string]Modality{
		"online":    ModalityOnline,
		"ONLINE":    ModalityOnline,
		"in_person": ModalityInPerson,
		"in-person": ModalityInPerson,
		"phone":     ModalityPhone,
	} {
		got, err := ParseModality(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"onsite", "hybrid", "carrier pigeon", ""} {
		_, err := ParseModality(in)
		assert.Error(t, err, in)
	}

	assert.Equal(t, Modality("hybrid"), ModalityFromBackend("Hybrid"))
	assert.False(t, ModalityFromBackend("onsite").IsOnline())
	assert.True(t, ModalityFromBackend("online").IsOnline())
}

func TestParseViewAndOrder(t *testing.T) {
	v, err := ParseView("")
	require.NoError(t, err)
	assert.Equal(t, ViewAll, v)

	v, err = ParseView("Upcoming")
	require.NoError(t, err)
	assert.Equal(t, ViewUpcoming, v)

	_, err = ParseView("tomorrow")
	assert.Error(t, err)

	assert.Equal(t, SortDesc, ParseSortOrder("DESC"))
	assert.Equal(t, SortAsc, ParseSortOrder("whatever"))
	assert.Equal(t, StatusNoShow, ParseStatus(" no_show "))
}

func ids(appts []Appointment) []string {
	out := make([]string, len(appts))
	for i, a := range appts {
		out[i] = a.ID
	}
	return out
}
