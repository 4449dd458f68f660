package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

// MockKeeper implements ports.DNSSECKeeper with a fixed posture per zone.
type MockKeeper struct {
	Postures map[domain.Name]domain.ZonePosture
	Err      error
}

func (m *MockKeeper) GetNSEC3Params(_ context.Context, apex domain.Name) (domain.NSEC3Params, bool, error) {
	p := m.Postures[apex]
	return p.NSEC3, p.HasNSEC3, m.Err
}

func (m *MockKeeper) IsPresigned(_ context.Context, apex domain.Name) (bool, error) {
	return m.Postures[apex].Presigned, m.Err
}

func (m *MockKeeper) IsSecured(_ context.Context, apex domain.Name) (bool, error) {
	return m.Postures[apex].Secured, m.Err
}

// MockLocker implements ports.ZoneLocker and records lock activity.
type MockLocker struct {
	mu       sync.Mutex
	Locked   map[domain.Name]int
	Unlocked map[domain.Name]int
	FailLock bool
}

func (m *MockLocker) Lock(_ context.Context, zone domain.Name) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLock {
		return nil, errors.New("lock failed")
	}
	if m.Locked == nil {
		m.Locked = make(map[domain.Name]int)
		m.Unlocked = make(map[domain.Name]int)
	}
	m.Locked[zone]++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Unlocked[zone]++
	}, nil
}

// MockNotifier implements ports.ChangeNotifier and records notified zones.
type MockNotifier struct {
	mu         sync.Mutex
	Zones      []domain.Name
	FailNotify bool
}

func (m *MockNotifier) ZoneRectified(_ context.Context, zone domain.Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNotify {
		return errors.New("notify failed")
	}
	m.Zones = append(m.Zones, zone)
	return nil
}
