package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/readiness"
)

const DefaultRoomTTL = 12 * time.Hour

var (
	_ readiness.RoomExistenceProbe = (*Rooms)(nil)
	_ readiness.RoomNotifier       = (*Rooms)(nil)
)

// Rooms mirrors "video room opened" signals from the backend so readiness
// watchers can react without waiting for their next poll.
type Rooms struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

func NewRooms(client *redis.Client, ttl time.Duration, log *logrus.Logger) *Rooms {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Rooms{client: client, ttl: ttl, log: log}
}

func roomKey(appointmentID string) string     { return "room:" + appointmentID }
func roomChannel(appointmentID string) string { return "rooms:created:" + appointmentID }

// MarkRoomCreated records the room and wakes every subscriber.
func (r *Rooms) MarkRoomCreated(ctx context.Context, appointmentID string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, roomKey(appointmentID), time.Now().UTC().Format(time.RFC3339), r.ttl)
	pipe.Publish(ctx, roomChannel(appointmentID), appointmentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark room %s created: %w", appointmentID, err)
	}
	return nil
}

func (r *Rooms) RoomExists(ctx context.Context, appointmentID string) (bool, error) {
	n, err := r.client.Exists(ctx, roomKey(appointmentID)).Result()
	if err != nil {
		return false, fmt.Errorf("check room %s: %w", appointmentID, err)
	}
	return n > 0, nil
}

// RoomCreated subscribes to creation signals for one appointment. The
// channel is closed when ctx ends.
func (r *Rooms) RoomCreated(ctx context.Context, appointmentID string) (<-chan struct{}, error) {
	ps := r.client.Subscribe(ctx, roomChannel(appointmentID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", appointmentID, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	r.log.WithField("appointment_id", appointmentID).Debug("subscribed to room notifications")
	return out, nil
}
