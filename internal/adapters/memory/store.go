// Package memory is an in-memory zone backend. It implements the same
// ordering, transaction and ENT replace semantics as the PostgreSQL
// repository and backs check-file as well as the service tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
	"github.com/poyrazK/zonekeeper/internal/dns/master"
)

// Stats counts writes that reached committed state.
type Stats struct {
	Transactions    int
	Commits         int
	Rollbacks       int
	OrderingUpdates int // UpdateOrderNameAndAuth calls
	RowsChanged     int // pre-existing rows whose ordername or auth differ after commit
	ENTReplaceCalls int
	ENTInserted     int
	ENTDeleted      int
}

// Store is safe for concurrent use. Each transaction works on a private copy
// of the zone's records that replaces the live set on Commit.
type Store struct {
	mu       sync.RWMutex
	zones    map[string]*domain.Zone
	byName   map[domain.Name]string
	records  map[string][]domain.Record
	metadata map[string]map[string][]string
	keys     map[string][]domain.DNSSECKey
	stats    Stats
	failures map[string]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		zones:    make(map[string]*domain.Zone),
		byName:   make(map[domain.Name]string),
		records:  make(map[string][]domain.Record),
		metadata: make(map[string]map[string][]string),
		keys:     make(map[string][]domain.DNSSECKey),
		failures: make(map[string]error),
	}
}

var (
	_ ports.ZoneDataSource   = (*Store)(nil)
	_ ports.DNSSECRepository = (*Store)(nil)

	_ ports.DNSSECAdminRepository = (*Store)(nil)
	_ ports.ZoneWriter            = (*Store)(nil)
)

// Operations accepted by FailOn.
const (
	OpBegin   = "begin"
	OpUpdate  = "update"
	OpReplace = "replace"
	OpCommit  = "commit"
	OpList    = "list"
)

// FailOn makes the named operation return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[op]
}

// AddZone creates a zone and returns it.
func (s *Store) AddZone(name domain.Name, kind string) *domain.Zone {
	name = domain.NewName(string(name))
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[name]; ok {
		return s.zones[id]
	}
	if kind == "" {
		kind = domain.ZoneKindNative
	}
	now := time.Now()
	z := &domain.Zone{ID: uuid.New().String(), Name: string(name), Kind: kind, CreatedAt: now, UpdatedAt: now}
	s.zones[z.ID] = z
	s.byName[name] = z.ID
	return z
}

// AddRecord appends a record to a zone. Name is canonicalized.
func (s *Store) AddRecord(zoneID string, rec domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ZoneID = zoneID
	rec.Name = domain.NewName(string(rec.Name))
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	s.records[zoneID] = append(s.records[zoneID], rec)
}

// SetMetadata replaces the values of one metadata kind for a zone.
func (s *Store) SetMetadata(zoneID, kind string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata[zoneID] == nil {
		s.metadata[zoneID] = make(map[string][]string)
	}
	s.metadata[zoneID][kind] = values
}

// AddKey attaches a DNSSEC key to a zone.
func (s *Store) AddKey(zoneID string, key domain.DNSSECKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key.ZoneID = zoneID
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	s.keys[zoneID] = append(s.keys[zoneID], key)
}

// LoadZoneFile parses a master file into a new zone. origin may be empty
// when the file carries $ORIGIN.
func (s *Store) LoadZoneFile(r io.Reader, origin domain.Name) (*domain.Zone, error) {
	data, err := master.NewMasterParser(origin).Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse zone file: %w", err)
	}
	apex := origin
	if apex == "" {
		apex = data.Apex
	}
	if apex == "" {
		return nil, fmt.Errorf("zone file has no $ORIGIN and no origin was given")
	}
	z := s.AddZone(apex, domain.ZoneKindNative)
	for _, rec := range data.Records {
		s.AddRecord(z.ID, rec)
	}
	return z, nil
}

// CreateZoneWithRecords adds a new zone with its records. It fails when the
// zone already exists.
func (s *Store) CreateZoneWithRecords(_ context.Context, zone *domain.Zone, records []domain.Record) error {
	name := domain.NewName(zone.Name)
	s.mu.RLock()
	_, exists := s.byName[name]
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("zone %s already exists", name)
	}
	z := s.AddZone(name, zone.Kind)
	*zone = *z
	for _, rec := range records {
		s.AddRecord(z.ID, rec)
	}
	return nil
}

// SetZoneMetadata is SetMetadata behind the repository interface.
func (s *Store) SetZoneMetadata(_ context.Context, zoneID, kind string, values ...string) error {
	s.SetMetadata(zoneID, kind, values...)
	return nil
}

// CreateKey stores key, assigning an ID when empty.
func (s *Store) CreateKey(_ context.Context, key *domain.DNSSECKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	s.AddKey(key.ZoneID, *key)
	return nil
}

// Stats returns a snapshot of the write counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// ResetStats zeroes the write counters.
func (s *Store) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
}

// Records returns a copy of every stored row of a zone, markers included.
func (s *Store) Records(zoneID string) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Record(nil), s.records[zoneID]...)
}

func (s *Store) GetZone(_ context.Context, name domain.Name) (*domain.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	z := *s.zones[id]
	return &z, nil
}

func (s *Store) ListZones(_ context.Context) ([]domain.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zones := make([]domain.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		zones = append(zones, *z)
	}
	sort.Slice(zones, func(i, j int) bool {
		return domain.CompareCanonical(domain.Name(zones[i].Name), domain.Name(zones[j].Name)) < 0
	})
	return zones, nil
}

func (s *Store) GetSOA(_ context.Context, apex domain.Name) (*domain.SOAData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[apex]
	if !ok {
		return nil, fmt.Errorf("%s: %w", apex, domain.ErrZoneNotFound)
	}
	for _, r := range s.records[id] {
		if r.Type == domain.TypeSOA && r.Name == apex && !r.Disabled {
			serial, minimum := domain.ParseSOAContent(r.Content)
			return &domain.SOAData{ZoneID: id, Apex: apex, Serial: serial, DefaultTTL: minimum, TTL: r.TTL}, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", apex, domain.ErrNoSOA)
}

func (s *Store) ListRecords(_ context.Context, zoneID string, includeDisabled bool) ([]domain.Record, error) {
	if err := s.failure(OpList); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, r := range s.records[zoneID] {
		if r.Disabled && !includeDisabled {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) GetRecordsByName(_ context.Context, zoneID string, name domain.Name) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, r := range s.records[zoneID] {
		if r.Name == name && !r.Disabled && !r.IsENT() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetBeforeAndAfterNames(_ context.Context, zoneID string, apex, orderName domain.Name) (domain.Name, domain.Name, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		key  string
		name domain.Name
	}
	var entries []entry
	for _, r := range s.records[zoneID] {
		if r.Disabled || r.OrderName == "" {
			continue
		}
		entries = append(entries, entry{key: domain.OrderKey(r.OrderName, apex), name: r.Name})
	}
	if len(entries) == 0 {
		return "", "", nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].name < entries[j].name
	})

	q := domain.OrderKey(orderName, apex)
	before := entries[len(entries)-1].name
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].key <= q {
			before = entries[i].name
			break
		}
	}
	after := entries[0].name
	for _, e := range entries {
		if e.key > q {
			after = e.name
			break
		}
	}
	return before, after, nil
}

func (s *Store) BeginTransaction(_ context.Context, zoneID string, apex domain.Name) (ports.ZoneTransaction, error) {
	if err := s.failure(OpBegin); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.zones[zoneID]; !ok {
		return nil, fmt.Errorf("%s: %w", apex, domain.ErrZoneNotFound)
	}
	s.stats.Transactions++
	return &tx{
		store:   s,
		zoneID:  zoneID,
		apex:    apex,
		records: append([]domain.Record(nil), s.records[zoneID]...),
	}, nil
}

type tx struct {
	store   *Store
	zoneID  string
	apex    domain.Name
	records []domain.Record
	pending Stats
	done    bool
}

func (t *tx) UpdateOrderNameAndAuth(_ context.Context, name, orderName domain.Name, auth bool, qType domain.RecordType) error {
	if t.done {
		return fmt.Errorf("update on finished transaction: %w", domain.ErrTransaction)
	}
	if err := t.store.failure(OpUpdate); err != nil {
		return err
	}
	t.pending.OrderingUpdates++
	for i := range t.records {
		r := &t.records[i]
		if r.Name != name || r.Disabled {
			continue
		}
		if qType != "" && r.Type != qType {
			continue
		}
		r.OrderName = orderName
		r.Auth = auth
	}
	return nil
}

func (t *tx) ReplaceEmptyNonTerminals(_ context.Context, insert, remove []domain.Name, disableTracking bool) error {
	if t.done {
		return fmt.Errorf("replace on finished transaction: %w", domain.ErrTransaction)
	}
	if err := t.store.failure(OpReplace); err != nil {
		return err
	}
	t.pending.ENTReplaceCalls++

	drop := make(map[domain.Name]bool, len(remove))
	for _, n := range remove {
		drop[n] = true
	}
	kept := t.records[:0]
	for _, r := range t.records {
		if r.IsENT() && (disableTracking || drop[r.Name]) {
			t.pending.ENTDeleted++
			continue
		}
		kept = append(kept, r)
	}
	t.records = kept

	if disableTracking {
		return nil
	}
	for _, n := range insert {
		t.records = append(t.records, domain.Record{
			ID:     uuid.New().String(),
			ZoneID: t.zoneID,
			Name:   n,
			Type:   domain.TypeENT,
			Auth:   true,
		})
		t.pending.ENTInserted++
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return fmt.Errorf("commit on finished transaction: %w", domain.ErrTransaction)
	}
	if err := t.store.failure(OpCommit); err != nil {
		return err
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	before := make(map[string]domain.Record, len(s.records[t.zoneID]))
	for _, r := range s.records[t.zoneID] {
		before[r.ID] = r
	}
	for _, r := range t.records {
		if old, ok := before[r.ID]; ok && (old.OrderName != r.OrderName || old.Auth != r.Auth) {
			t.pending.RowsChanged++
		}
	}
	s.records[t.zoneID] = t.records
	s.stats.Commits++
	s.stats.OrderingUpdates += t.pending.OrderingUpdates
	s.stats.RowsChanged += t.pending.RowsChanged
	s.stats.ENTReplaceCalls += t.pending.ENTReplaceCalls
	s.stats.ENTInserted += t.pending.ENTInserted
	s.stats.ENTDeleted += t.pending.ENTDeleted
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.stats.Rollbacks++
	t.store.mu.Unlock()
	return nil
}

// GetZoneMetadata implements ports.DNSSECRepository.
func (s *Store) GetZoneMetadata(_ context.Context, zoneID, kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.metadata[zoneID][kind]...), nil
}

// ListKeysForZone implements ports.DNSSECRepository.
func (s *Store) ListKeysForZone(_ context.Context, zoneID string) ([]domain.DNSSECKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.DNSSECKey(nil), s.keys[zoneID]...), nil
}
