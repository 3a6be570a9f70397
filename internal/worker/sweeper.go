package worker

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "sweeper:referral_events:lock"

// EventPurger is the administrative slice of the event log the sweeper needs.
type EventPurger interface {
	PurgeDeleted(ctx context.Context, olderThan time.Time) (int64, error)
}

// Sweeper hard-purges soft-deleted referral events past the retention window.
// It never touches active rows, so the counting path is unaffected.
type Sweeper struct {
	Events    EventPurger
	Redis     *redis.Client
	Interval  time.Duration
	Retention time.Duration
}

func NewSweeper(events EventPurger, rdb *redis.Client, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Sweeper{
		Events:    events,
		Redis:     rdb,
		Interval:  interval,
		Retention: retention,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	log.Println("Background cleanup sweeper started")

	// Run once at start
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	// Only one replica sweeps per interval.
	if s.Redis != nil {
		acquired, err := s.Redis.SetNX(ctx, sweepLockKey, "1", s.Interval/2).Result()
		if err != nil {
			log.Printf("Sweep lock check failed, skipping cycle: %v", err)
			return
		}
		if !acquired {
			return
		}
	}

	cutoff := time.Now().Add(-s.Retention)
	purged, err := s.Events.PurgeDeleted(ctx, cutoff)
	if err != nil {
		log.Printf("Event purge failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Purged %d soft-deleted referral events older than %s", purged, cutoff.Format(time.RFC3339))
	}
}
