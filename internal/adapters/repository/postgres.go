package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
)

// PostgresRepository implements ports.ZoneDataSource and
// ports.DNSSECRepository on PostgreSQL. Ordernames are persisted as
// domain.OrderKey values in a "C" collated column so the database orders
// them bytewise; NULL means no ordername.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var (
	_ ports.ZoneDataSource   = (*PostgresRepository)(nil)
	_ ports.DNSSECRepository = (*PostgresRepository)(nil)
)

func closeRows(rows *sql.Rows) {
	if errClose := rows.Close(); errClose != nil {
		slog.Error("failed to close rows", "error", errClose)
	}
}

func (r *PostgresRepository) GetZone(ctx context.Context, name domain.Name) (*domain.Zone, error) {
	query := `SELECT id, name, kind, created_at, updated_at FROM zones WHERE LOWER(name) = LOWER($1)`
	var z domain.Zone
	errRow := r.db.QueryRowContext(ctx, query, string(name)).Scan(&z.ID, &z.Name, &z.Kind, &z.CreatedAt, &z.UpdatedAt)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, errRow
	}
	z.Name = string(domain.NewName(z.Name))
	return &z, nil
}

func (r *PostgresRepository) ListZones(ctx context.Context) ([]domain.Zone, error) {
	query := `SELECT id, name, kind, created_at, updated_at FROM zones ORDER BY name`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var zones []domain.Zone
	for rows.Next() {
		var z domain.Zone
		if errScan := rows.Scan(&z.ID, &z.Name, &z.Kind, &z.CreatedAt, &z.UpdatedAt); errScan != nil {
			return nil, errScan
		}
		z.Name = string(domain.NewName(z.Name))
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// GetSOA returns the active SOA at the apex of a zone.
func (r *PostgresRepository) GetSOA(ctx context.Context, apex domain.Name) (*domain.SOAData, error) {
	zone, err := r.GetZone(ctx, apex)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		return nil, fmt.Errorf("%s: %w", apex, domain.ErrZoneNotFound)
	}

	query := `SELECT content, ttl FROM records
	          WHERE zone_id = $1 AND type = 'SOA' AND LOWER(name) = LOWER($2) AND disabled = false
	          LIMIT 1`
	var content string
	var ttl uint32
	errRow := r.db.QueryRowContext(ctx, query, zone.ID, string(apex)).Scan(&content, &ttl)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", apex, domain.ErrNoSOA)
	}
	if errRow != nil {
		return nil, errRow
	}
	serial, minimum := domain.ParseSOAContent(content)
	return &domain.SOAData{ZoneID: zone.ID, Apex: domain.NewName(zone.Name), Serial: serial, DefaultTTL: minimum, TTL: ttl}, nil
}

const recordColumns = `r.id, r.zone_id, r.name, COALESCE(r.type, ''), r.content, r.ttl, r.disabled, r.auth, r.ordername, z.name`

func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		var name, qType, apex string
		var orderKey sql.NullString
		if errScan := rows.Scan(&rec.ID, &rec.ZoneID, &name, &qType, &rec.Content, &rec.TTL, &rec.Disabled, &rec.Auth, &orderKey, &apex); errScan != nil {
			return nil, errScan
		}
		rec.Name = domain.NewName(name)
		rec.Type = domain.RecordType(qType)
		if orderKey.Valid {
			rec.OrderName = domain.FromOrderKey(orderKey.String, domain.NewName(apex))
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) ListRecords(ctx context.Context, zoneID string, includeDisabled bool) ([]domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records r JOIN zones z ON z.id = r.zone_id WHERE r.zone_id = $1`
	if !includeDisabled {
		query += ` AND r.disabled = false`
	}
	rows, errQuery := r.db.QueryContext(ctx, query, zoneID)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)
	return scanRecords(rows)
}

// GetRecordsByName returns the active, non-ENT rows owned by name.
func (r *PostgresRepository) GetRecordsByName(ctx context.Context, zoneID string, name domain.Name) ([]domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records r JOIN zones z ON z.id = r.zone_id
	          WHERE r.zone_id = $1 AND LOWER(r.name) = LOWER($2) AND r.type IS NOT NULL AND r.disabled = false`
	rows, errQuery := r.db.QueryContext(ctx, query, zoneID, string(name))
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)
	return scanRecords(rows)
}

// GetBeforeAndAfterNames returns the owners of the closest ordernames at or
// before and strictly after orderName, wrapping around at either end.
func (r *PostgresRepository) GetBeforeAndAfterNames(ctx context.Context, zoneID string, apex, orderName domain.Name) (domain.Name, domain.Name, error) {
	key := domain.OrderKey(orderName, apex)
	const base = `SELECT name FROM records WHERE zone_id = $1 AND ordername IS NOT NULL AND disabled = false`

	before, err := r.firstName(ctx, base+` AND ordername <= $2 ORDER BY ordername DESC, name DESC LIMIT 1`, zoneID, key)
	if err != nil {
		return "", "", err
	}
	if before == "" {
		if before, err = r.firstName(ctx, base+` ORDER BY ordername DESC, name DESC LIMIT 1`, zoneID); err != nil {
			return "", "", err
		}
	}

	after, err := r.firstName(ctx, base+` AND ordername > $2 ORDER BY ordername ASC, name ASC LIMIT 1`, zoneID, key)
	if err != nil {
		return "", "", err
	}
	if after == "" {
		if after, err = r.firstName(ctx, base+` ORDER BY ordername ASC, name ASC LIMIT 1`, zoneID); err != nil {
			return "", "", err
		}
	}
	return before, after, nil
}

func (r *PostgresRepository) firstName(ctx context.Context, query string, args ...any) (domain.Name, error) {
	var name string
	errRow := r.db.QueryRowContext(ctx, query, args...).Scan(&name)
	if errors.Is(errRow, sql.ErrNoRows) {
		return "", nil
	}
	if errRow != nil {
		return "", errRow
	}
	return domain.NewName(name), nil
}

// BeginTransaction opens the transaction a rectify run writes through.
func (r *PostgresRepository) BeginTransaction(ctx context.Context, zoneID string, apex domain.Name) (ports.ZoneTransaction, error) {
	tx, errTx := r.db.BeginTx(ctx, nil)
	if errTx != nil {
		return nil, errTx
	}
	return &postgresTx{tx: tx, zoneID: zoneID, apex: apex}, nil
}

type postgresTx struct {
	tx     *sql.Tx
	zoneID string
	apex   domain.Name
}

// UpdateOrderNameAndAuth rewrites every enabled row at name, or only those
// of qType when it is set.
func (t *postgresTx) UpdateOrderNameAndAuth(ctx context.Context, name, orderName domain.Name, auth bool, qType domain.RecordType) error {
	var key sql.NullString
	if orderName != "" {
		key = sql.NullString{String: domain.OrderKey(orderName, t.apex), Valid: true}
	}
	query := `UPDATE records SET ordername = $1, auth = $2
	          WHERE zone_id = $3 AND LOWER(name) = LOWER($4) AND disabled = false`
	args := []any{key, auth, t.zoneID, string(name)}
	if qType != "" {
		query += ` AND type = $5`
		args = append(args, string(qType))
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// ReplaceEmptyNonTerminals deletes and inserts ENT marker rows (type NULL).
// disableTracking deletes every marker of the zone and ignores the sets.
func (t *postgresTx) ReplaceEmptyNonTerminals(ctx context.Context, insert, remove []domain.Name, disableTracking bool) error {
	if disableTracking {
		_, err := t.tx.ExecContext(ctx, `DELETE FROM records WHERE zone_id = $1 AND type IS NULL`, t.zoneID)
		return err
	}
	for _, name := range remove {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM records WHERE zone_id = $1 AND type IS NULL AND LOWER(name) = LOWER($2)`,
			t.zoneID, string(name)); err != nil {
			return err
		}
	}
	for _, name := range insert {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO records (id, zone_id, name, type, content, ttl, disabled, auth, ordername)
		          VALUES ($1, $2, $3, NULL, '', 0, false, true, NULL)`,
			uuid.New().String(), t.zoneID, string(name)); err != nil {
			return err
		}
	}
	return nil
}

func (t *postgresTx) Commit() error {
	return t.tx.Commit()
}

func (t *postgresTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// CreateZoneWithRecords stores a zone and its records in one transaction.
func (r *PostgresRepository) CreateZoneWithRecords(ctx context.Context, zone *domain.Zone, records []domain.Record) error {
	tx, errTx := r.db.BeginTx(ctx, nil)
	if errTx != nil {
		return errTx
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", errRollback)
		}
	}()

	if zone.ID == "" {
		zone.ID = uuid.New().String()
	}
	if zone.Kind == "" {
		zone.Kind = domain.ZoneKindNative
	}
	now := time.Now()
	zone.CreatedAt, zone.UpdatedAt = now, now
	if _, errExec := tx.ExecContext(ctx, `INSERT INTO zones (id, name, kind, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		zone.ID, zone.Name, zone.Kind, zone.CreatedAt, zone.UpdatedAt); errExec != nil {
		return errExec
	}

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		var qType sql.NullString
		if rec.Type != domain.TypeENT {
			qType = sql.NullString{String: string(rec.Type), Valid: true}
		}
		if _, errExec := tx.ExecContext(ctx, `INSERT INTO records (id, zone_id, name, type, content, ttl, disabled, auth, ordername)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)`,
			rec.ID, zone.ID, string(rec.Name), qType, rec.Content, rec.TTL, rec.Disabled, rec.Auth); errExec != nil {
			return errExec
		}
	}
	return tx.Commit()
}

// SetZoneMetadata replaces the values of one metadata kind.
func (r *PostgresRepository) SetZoneMetadata(ctx context.Context, zoneID, kind string, values ...string) error {
	tx, errTx := r.db.BeginTx(ctx, nil)
	if errTx != nil {
		return errTx
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", errRollback)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_metadata WHERE zone_id = $1 AND kind = $2`, zoneID, kind); err != nil {
		return err
	}
	for _, v := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO zone_metadata (zone_id, kind, content) VALUES ($1, $2, $3)`, zoneID, kind, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepository) GetZoneMetadata(ctx context.Context, zoneID, kind string) ([]string, error) {
	rows, errQuery := r.db.QueryContext(ctx, `SELECT content FROM zone_metadata WHERE zone_id = $1 AND kind = $2 ORDER BY id`, zoneID, kind)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var values []string
	for rows.Next() {
		var v string
		if errScan := rows.Scan(&v); errScan != nil {
			return nil, errScan
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (r *PostgresRepository) CreateKey(ctx context.Context, key *domain.DNSSECKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	now := time.Now()
	key.CreatedAt, key.UpdatedAt = now, now
	query := `INSERT INTO cryptokeys (id, zone_id, key_type, algorithm, private_key, public_key, active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, key.ID, key.ZoneID, key.KeyType, key.Algorithm, key.PrivateKey, key.PublicKey, key.Active, key.CreatedAt, key.UpdatedAt)
	return err
}

func (r *PostgresRepository) ListKeysForZone(ctx context.Context, zoneID string) ([]domain.DNSSECKey, error) {
	query := `SELECT id, zone_id, key_type, algorithm, public_key, active, created_at, updated_at FROM cryptokeys WHERE zone_id = $1`
	rows, errQuery := r.db.QueryContext(ctx, query, zoneID)
	if errQuery != nil {
		return nil, errQuery
	}
	defer closeRows(rows)

	var keys []domain.DNSSECKey
	for rows.Next() {
		var k domain.DNSSECKey
		if errScan := rows.Scan(&k.ID, &k.ZoneID, &k.KeyType, &k.Algorithm, &k.PublicKey, &k.Active, &k.CreatedAt, &k.UpdatedAt); errScan != nil {
			return nil, errScan
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
