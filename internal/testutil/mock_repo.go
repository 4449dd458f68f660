package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
)

// MockDataSource is a testify mock of ports.ZoneDataSource.
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) GetZone(ctx context.Context, name domain.Name) (*domain.Zone, error) {
	args := m.Called(name)
	zone, _ := args.Get(0).(*domain.Zone)
	return zone, args.Error(1)
}

func (m *MockDataSource) ListZones(ctx context.Context) ([]domain.Zone, error) {
	args := m.Called()
	return args.Get(0).([]domain.Zone), args.Error(1)
}

func (m *MockDataSource) GetSOA(ctx context.Context, apex domain.Name) (*domain.SOAData, error) {
	args := m.Called(apex)
	soa, _ := args.Get(0).(*domain.SOAData)
	return soa, args.Error(1)
}

func (m *MockDataSource) ListRecords(ctx context.Context, zoneID string, includeDisabled bool) ([]domain.Record, error) {
	args := m.Called(zoneID, includeDisabled)
	return args.Get(0).([]domain.Record), args.Error(1)
}

func (m *MockDataSource) GetRecordsByName(ctx context.Context, zoneID string, name domain.Name) ([]domain.Record, error) {
	args := m.Called(zoneID, name)
	return args.Get(0).([]domain.Record), args.Error(1)
}

func (m *MockDataSource) GetBeforeAndAfterNames(ctx context.Context, zoneID string, apex, orderName domain.Name) (domain.Name, domain.Name, error) {
	args := m.Called(zoneID, apex, orderName)
	return args.Get(0).(domain.Name), args.Get(1).(domain.Name), args.Error(2)
}

func (m *MockDataSource) BeginTransaction(ctx context.Context, zoneID string, apex domain.Name) (ports.ZoneTransaction, error) {
	args := m.Called(zoneID, apex)
	tx, _ := args.Get(0).(ports.ZoneTransaction)
	return tx, args.Error(1)
}

// MockTransaction is a testify mock of ports.ZoneTransaction.
type MockTransaction struct {
	mock.Mock
}

func (m *MockTransaction) UpdateOrderNameAndAuth(ctx context.Context, name, orderName domain.Name, auth bool, qType domain.RecordType) error {
	args := m.Called(name, orderName, auth, qType)
	return args.Error(0)
}

func (m *MockTransaction) ReplaceEmptyNonTerminals(ctx context.Context, insert, remove []domain.Name, disableTracking bool) error {
	args := m.Called(insert, remove, disableTracking)
	return args.Error(0)
}

func (m *MockTransaction) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransaction) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ ports.ZoneDataSource  = (*MockDataSource)(nil)
	_ ports.ZoneTransaction = (*MockTransaction)(nil)
)
