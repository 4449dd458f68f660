package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/services"
	"github.com/poyrazK/zonekeeper/internal/dns/nsec3"
	"github.com/poyrazK/zonekeeper/internal/dns/rdata"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("zonekeeper_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432").
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("failed to open db: %s", err)
	}

	schema, err := os.ReadFile(filepath.Join(".", "schema.sql"))
	if err != nil {
		t.Fatalf("failed to read schema: %s", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %s", err)
	}

	return db, func() {
		db.Close()
		pgContainer.Terminate(ctx)
	}
}

func rec(name string, qType domain.RecordType, content string) domain.Record {
	return domain.Record{Name: domain.Name(name), Type: qType, Content: content, TTL: 3600, Auth: true}
}

// TestPostgresRepository_Integration rectifies and checks a signed zone
// against a real PostgreSQL.
func TestPostgresRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPostgresRepository(db)
	ctx := context.Background()

	zone := &domain.Zone{Name: "example.com."}
	records := []domain.Record{
		rec("example.com.", domain.TypeSOA, "ns1.example.com hostmaster.example.com 1 3600 600 604800 300"),
		rec("example.com.", domain.TypeNS, "ns1.example.com"),
		rec("ns1.example.com.", domain.TypeA, "192.0.2.1"),
		rec("_underscore.example.com.", domain.TypeA, "127.0.0.1"),
		rec("bla.example.com.", domain.TypeA, "127.0.0.2"),
		rec("www.sub.example.com.", domain.TypeA, "192.0.2.80"),
		rec("deleg.example.com.", domain.TypeNS, "ns.example.net"),
		{Name: "stale.example.com.", Type: domain.TypeENT, Auth: true},
	}
	if err := repo.CreateZoneWithRecords(ctx, zone, records); err != nil {
		t.Fatalf("CreateZoneWithRecords failed: %v", err)
	}
	if err := repo.SetZoneMetadata(ctx, zone.ID, domain.MetaNSEC3Param, "1 0 1 -"); err != nil {
		t.Fatalf("SetZoneMetadata failed: %v", err)
	}
	if err := repo.CreateKey(ctx, &domain.DNSSECKey{ZoneID: zone.ID, KeyType: "KSK", Algorithm: 13, Active: true}); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}

	// RFC 1034: lookups are case-insensitive.
	soa, err := repo.GetSOA(ctx, "ExAmPlE.CoM.")
	if err != nil {
		t.Fatalf("GetSOA failed: %v", err)
	}
	if soa.DefaultTTL != 300 || soa.Serial != 1 {
		t.Errorf("unexpected SOA data: %+v", soa)
	}

	keeper := services.NewKeeperService(repo, 0, nil)
	cfg := services.DefaultConfig()
	rectifier := services.NewRectifyService(repo, keeper, nsec3.NewHasher(), cfg, nil)
	checker := services.NewCheckService(repo, keeper, rdata.NewCanonicalizer(), cfg, nil)

	res, err := rectifier.RectifyZone(ctx, "example.com.")
	if err != nil {
		t.Fatalf("RectifyZone failed: %v", err)
	}
	if len(res.ENTInserted) != 1 || res.ENTInserted[0] != "sub.example.com." {
		t.Errorf("unexpected ENT inserts: %v", res.ENTInserted)
	}
	if len(res.ENTDeleted) != 1 || res.ENTDeleted[0] != "stale.example.com." {
		t.Errorf("unexpected ENT deletes: %v", res.ENTDeleted)
	}

	before, after, err := rectifier.ClosestNames(ctx, "example.com.", "z.example.com.")
	if err != nil {
		t.Fatalf("ClosestNames failed: %v", err)
	}
	if before != "_underscore.example.com." || after != "example.com." {
		t.Errorf("got before=%s after=%s", before, after)
	}

	stored, err := repo.ListRecords(ctx, zone.ID, false)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	for _, r := range stored {
		if r.Name == "deleg.example.com." && r.Auth {
			t.Errorf("delegation NS must not be authoritative")
		}
		if r.Name == "example.com." && r.OrderName == "" {
			t.Errorf("apex %s lost its ordername", r.Type)
		}
	}

	// Second run is a no-op for ENTs.
	res, err = rectifier.RectifyZone(ctx, "example.com.")
	if err != nil {
		t.Fatalf("second RectifyZone failed: %v", err)
	}
	if len(res.ENTInserted) != 0 || len(res.ENTDeleted) != 0 {
		t.Errorf("second run changed ENTs: %+v", res)
	}

	report, err := checker.CheckZone(ctx, "example.com.")
	if err != nil {
		t.Fatalf("CheckZone failed: %v", err)
	}
	if !report.Passed() {
		t.Errorf("rectified zone did not pass:\n%s", report)
	}
}
