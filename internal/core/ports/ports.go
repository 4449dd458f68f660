// Package ports declares the interfaces between the rectify/check core and
// its collaborators: the zone backend, DNSSEC key management, the NSEC3 hash,
// the record content parser and the coordination services.
package ports

import (
	"context"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

// ZoneDataSource is the read side of a zone backend plus its transaction entry point.
type ZoneDataSource interface {
	// GetZone returns nil, nil when no zone has that name.
	GetZone(ctx context.Context, name domain.Name) (*domain.Zone, error)
	ListZones(ctx context.Context) ([]domain.Zone, error)
	// GetSOA returns domain.ErrZoneNotFound or domain.ErrNoSOA when unresolvable.
	GetSOA(ctx context.Context, apex domain.Name) (*domain.SOAData, error)
	ListRecords(ctx context.Context, zoneID string, includeDisabled bool) ([]domain.Record, error)
	GetRecordsByName(ctx context.Context, zoneID string, name domain.Name) ([]domain.Record, error)
	// GetBeforeAndAfterNames returns the owner names whose ordernames surround
	// orderName, wrapping around the end of the zone.
	GetBeforeAndAfterNames(ctx context.Context, zoneID string, apex, orderName domain.Name) (before, after domain.Name, err error)
	BeginTransaction(ctx context.Context, zoneID string, apex domain.Name) (ZoneTransaction, error)
}

// ZoneTransaction scopes every rectify write to one zone. Nothing written
// through it is visible until Commit; Rollback after Commit is a no-op.
type ZoneTransaction interface {
	// UpdateOrderNameAndAuth sets ordername and auth on the enabled rows at
	// name. An empty qType matches every row, including ENT markers. An empty
	// orderName clears it.
	UpdateOrderNameAndAuth(ctx context.Context, name, orderName domain.Name, auth bool, qType domain.RecordType) error
	// ReplaceEmptyNonTerminals deletes the remove set and inserts the insert
	// set as authoritative ENT markers. With disableTracking every ENT marker
	// of the zone is deleted instead.
	ReplaceEmptyNonTerminals(ctx context.Context, insert, remove []domain.Name, disableTracking bool) error
	Commit() error
	Rollback() error
}

// DNSSECRepository is the storage behind the key-management collaborator.
type DNSSECRepository interface {
	GetZone(ctx context.Context, name domain.Name) (*domain.Zone, error)
	GetZoneMetadata(ctx context.Context, zoneID, kind string) ([]string, error)
	ListKeysForZone(ctx context.Context, zoneID string) ([]domain.DNSSECKey, error)
}

// DNSSECAdminRepository adds the key and metadata writes behind secure-zone and set-nsec3.
type DNSSECAdminRepository interface {
	DNSSECRepository
	CreateKey(ctx context.Context, key *domain.DNSSECKey) error
	SetZoneMetadata(ctx context.Context, zoneID, kind string, values ...string) error
}

// ZoneWriter provisions a zone with its records in one step.
type ZoneWriter interface {
	CreateZoneWithRecords(ctx context.Context, zone *domain.Zone, records []domain.Record) error
}

// DNSSECKeeper answers posture questions about a zone.
type DNSSECKeeper interface {
	// GetNSEC3Params reports the zone's NSEC3 parameters; present is false for NSEC or unsigned zones.
	GetNSEC3Params(ctx context.Context, apex domain.Name) (params domain.NSEC3Params, present bool, err error)
	IsPresigned(ctx context.Context, apex domain.Name) (bool, error)
	IsSecured(ctx context.Context, apex domain.Name) (bool, error)
}

// HashOracle computes the NSEC3 hashed owner label (RFC 5155), lower-case base32hex.
type HashOracle interface {
	HashedLabel(params domain.NSEC3Params, name domain.Name) string
}

// ContentCanonicalizer parses record content for its type and serializes it back.
type ContentCanonicalizer interface {
	Canonicalize(name domain.Name, qType domain.RecordType, content string) (string, error)
}

// ZoneLocker serializes writers of the same zone across processes.
type ZoneLocker interface {
	Lock(ctx context.Context, zone domain.Name) (unlock func(), err error)
}

// ChangeNotifier is told about committed rectify runs.
type ChangeNotifier interface {
	ZoneRectified(ctx context.Context, zone domain.Name) error
}

// Rectifier is the rectify engine as seen by the CLI and API.
type Rectifier interface {
	RectifyZone(ctx context.Context, zone domain.Name) (*domain.RectifyResult, error)
	RectifyAllZones(ctx context.Context) (*domain.BatchResult, error)
	ClosestNames(ctx context.Context, zone, name domain.Name) (before, after domain.Name, err error)
}

// Checker is the integrity checker as seen by the CLI and API.
type Checker interface {
	CheckZone(ctx context.Context, zone domain.Name) (*domain.CheckReport, error)
	CheckAllZones(ctx context.Context, exitOnError bool, each func(*domain.CheckReport)) (*domain.BatchResult, error)
}
