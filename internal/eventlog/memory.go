package eventlog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"botfleet/internal/models"
)

var ErrNotFound = errors.New("eventlog: event not found")

// Memory is an in-process Store with the same filtering semantics as the SQL
// store. It backs unit tests and keeps the soft-delete predicate pinned down
// in one more executable place.
type Memory struct {
	mu     sync.Mutex
	events map[string]models.ReferralEvent
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]models.ReferralEvent)}
}

func (m *Memory) Append(_ context.Context, ev *models.ReferralEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.events[ev.ID] = *ev
	return ev.ID, nil
}

func (m *Memory) ActiveReferrals(_ context.Context, tenantID uint, inviterExternalID int64) ([]models.ReferralEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ReferralEvent
	for _, ev := range m.events {
		if ev.TenantID == tenantID && ev.InviterExternalID == inviterExternalID &&
			ev.IsReferral && ev.DeletedAt == nil {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok || ev.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	ev.DeletedAt = &now
	m.events[id] = ev
	return nil
}

func (m *Memory) HardDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *Memory) PurgeDeleted(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, ev := range m.events {
		if ev.DeletedAt != nil && ev.DeletedAt.Before(olderThan) {
			delete(m.events, id)
			purged++
		}
	}
	return purged, nil
}
