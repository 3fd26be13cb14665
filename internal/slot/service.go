package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/eventlog"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/metrics"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/wallclock"
)

const EventSlotsGenerated = "SLOTS_GENERATED"

type Service struct {
	repo    Repository
	locker  Locker
	gen     Generator
	events  eventlog.Sink
	metrics *metrics.SchedulingMetrics
	log     *logrus.Logger
}

type ServiceDeps struct {
	Repo      Repository
	Locker    Locker
	Generator Generator
	Events    eventlog.Sink
	Metrics   *metrics.SchedulingMetrics
	Log       *logrus.Logger
}

func NewService(d ServiceDeps) *Service {
	if d.Locker == nil {
		d.Locker = NoopLocker{}
	}
	if d.Events == nil {
		d.Events = eventlog.Nop{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return &Service{
		repo:    d.Repo,
		locker:  d.Locker,
		gen:     d.Generator,
		events:  d.Events,
		metrics: d.Metrics,
		log:     d.Log,
	}
}

// Grouped fetches the doctor's slots and buckets them by local date. With
// availableOnly set, booked slots are removed before grouping.
func (s *Service) Grouped(ctx context.Context, p identity.Principal, q Query, availableOnly bool) (map[DateKey][]AvailabilitySlot, error) {
	if q.DoctorID == "" {
		return nil, ErrDoctorRequired
	}
	slots, err := s.repo.ListSlots(ctx, p, q)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if availableOnly {
		slots = AvailableOnly(slots)
	}
	return GroupByDate(slots), nil
}

// Lookup finds one slot of the doctor as the backend currently reports it.
func (s *Service) Lookup(ctx context.Context, p identity.Principal, doctorID, slotID string) (AvailabilitySlot, error) {
	if doctorID == "" {
		return AvailabilitySlot{}, ErrDoctorRequired
	}
	slots, err := s.repo.ListSlots(ctx, p, Query{DoctorID: doctorID})
	if err != nil {
		return AvailabilitySlot{}, fmt.Errorf("list slots: %w", err)
	}
	for _, sl := range slots {
		if sl.ID == slotID {
			return sl, nil
		}
	}
	return AvailabilitySlot{}, fmt.Errorf("%w %s of doctor %s", ErrSlotNotFound, slotID, doctorID)
}

// GenerateDay creates the default hourly schedule for one date.
func (s *Service) GenerateDay(ctx context.Context, p identity.Principal, doctorID string, date time.Time) ([]AvailabilitySlot, error) {
	return s.generate(ctx, p, doctorID, date, 1)
}

// GenerateWeek creates the default schedule for days dates from reference,
// skipping every date that already has a slot.
func (s *Service) GenerateWeek(ctx context.Context, p identity.Principal, doctorID string, reference time.Time, days int) ([]AvailabilitySlot, error) {
	return s.generate(ctx, p, doctorID, reference, days)
}

func (s *Service) generate(ctx context.Context, p identity.Principal, doctorID string, reference time.Time, days int) ([]AvailabilitySlot, error) {
	if doctorID == "" {
		return nil, ErrDoctorRequired
	}
	from, to := s.gen.Range(reference, days)
	// one lock per doctor so overlapping day and week runs serialize
	key := "slotgen:" + doctorID

	var created []AvailabilitySlot
	err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		existing, err := s.repo.ListSlots(lockCtx, p, Query{DoctorID: doctorID, From: from, To: to, TimeZone: s.gen.location().String()})
		if err != nil {
			return fmt.Errorf("load existing slots: %w", err)
		}

		specs := s.gen.Week(reference, days, existing)
		if len(specs) == 0 {
			s.log.WithFields(logrus.Fields{
				"doctor_id": doctorID,
				"from":      wallclock.DateOf(from),
				"days":      days,
			}).Info("slot generation skipped, every date already has slots")
			return nil
		}

		created, err = s.repo.CreateSlots(lockCtx, p, doctorID, specs)
		if err != nil {
			return fmt.Errorf("create slot batch: %w", err)
		}

		s.metrics.ObserveSlotsGenerated(len(specs))
		s.events.Record(lockCtx, eventlog.Event{
			Type:    EventSlotsGenerated,
			ActorID: p.UserID,
			Payload: map[string]any{
				"doctor_id": doctorID,
				"from":      wallclock.DateOf(from),
				"days":      days,
				"specs":     len(specs),
			},
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLockBusy) {
			return nil, ErrGenerationInProgress
		}
		return nil, err
	}
	return created, nil
}
