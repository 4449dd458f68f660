package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

func rec(name string, qType domain.RecordType, content string) domain.Record {
	return domain.Record{Name: domain.Name(name), Type: qType, Content: content, TTL: 3600, Auth: true}
}

func TestStore_GetSOA(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	z := st.AddZone("Example.COM.", "")
	assert.Equal(t, "example.com.", z.Name)
	assert.Equal(t, domain.ZoneKindNative, z.Kind)

	_, err := st.GetSOA(ctx, "example.com.")
	assert.ErrorIs(t, err, domain.ErrNoSOA)
	_, err = st.GetSOA(ctx, "missing.test.")
	assert.ErrorIs(t, err, domain.ErrZoneNotFound)

	st.AddRecord(z.ID, rec("example.com.", domain.TypeSOA, "ns1 hostmaster 42 3600 600 604800 120"))
	soa, err := st.GetSOA(ctx, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), soa.Serial)
	assert.Equal(t, uint32(120), soa.DefaultTTL)
	assert.Equal(t, z.ID, soa.ZoneID)
}

func TestStore_TransactionIsolation(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	z := st.AddZone("example.com.", "")
	st.AddRecord(z.ID, rec("www.example.com.", domain.TypeA, "192.0.2.1"))
	st.AddRecord(z.ID, rec("stale.example.com.", domain.TypeENT, ""))

	tx, err := st.BeginTransaction(ctx, z.ID, "example.com.")
	require.NoError(t, err)
	require.NoError(t, tx.UpdateOrderNameAndAuth(ctx, "www.example.com.", "www.example.com.", false, ""))
	require.NoError(t, tx.ReplaceEmptyNonTerminals(ctx, []domain.Name{"sub.example.com."}, []domain.Name{"stale.example.com."}, false))

	// Nothing is visible before commit.
	for _, r := range st.Records(z.ID) {
		assert.Empty(t, r.OrderName)
		assert.True(t, r.Auth)
	}

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback(), "rollback after commit is a no-op")
	assert.Error(t, tx.Commit())

	var names []string
	for _, r := range st.Records(z.ID) {
		names = append(names, string(r.Name)+"/"+string(r.Type))
		if r.Name == "www.example.com." {
			assert.Equal(t, domain.Name("www.example.com."), r.OrderName)
			assert.False(t, r.Auth)
		}
	}
	assert.ElementsMatch(t, []string{"www.example.com./A", "sub.example.com./"}, names)

	stats := st.Stats()
	assert.Equal(t, 1, stats.Commits)
	assert.Equal(t, 1, stats.RowsChanged)
	assert.Equal(t, 1, stats.ENTInserted)
	assert.Equal(t, 1, stats.ENTDeleted)
}

func TestStore_Rollback(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	z := st.AddZone("example.com.", "")
	st.AddRecord(z.ID, rec("a.example.com.", domain.TypeA, "192.0.2.1"))
	st.AddRecord(z.ID, rec("b.example.com.", domain.TypeENT, ""))

	tx, err := st.BeginTransaction(ctx, z.ID, "example.com.")
	require.NoError(t, err)
	require.NoError(t, tx.ReplaceEmptyNonTerminals(ctx, []domain.Name{"ignored.example.com."}, nil, true))
	require.NoError(t, tx.Rollback())

	assert.Len(t, st.Records(z.ID), 2)
	assert.Equal(t, 1, st.Stats().Rollbacks)
	assert.Equal(t, 0, st.Stats().ENTDeleted)
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	z := st.AddZone("example.com.", "")
	boom := errors.New("boom")

	st.FailOn(OpBegin, boom)
	_, err := st.BeginTransaction(ctx, z.ID, "example.com.")
	assert.ErrorIs(t, err, boom)
	st.FailOn(OpBegin, nil)

	st.FailOn(OpCommit, boom)
	tx, err := st.BeginTransaction(ctx, z.ID, "example.com.")
	require.NoError(t, err)
	assert.ErrorIs(t, tx.Commit(), boom)
	require.NoError(t, tx.Rollback())

	st.FailOn(OpList, boom)
	_, err = st.ListRecords(ctx, z.ID, true)
	assert.ErrorIs(t, err, boom)
}

func TestStore_GetBeforeAndAfterNames(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	z := st.AddZone("example.com.", "")
	for _, n := range []string{"example.com.", "a.example.com.", "c.example.com.", "b.a.example.com."} {
		r := rec(n, domain.TypeA, "192.0.2.1")
		r.OrderName = domain.Name(n)
		st.AddRecord(z.ID, r)
	}
	st.AddRecord(z.ID, rec("unordered.example.com.", domain.TypeA, "192.0.2.9"))

	tests := []struct {
		q, before, after domain.Name
	}{
		{"b.example.com.", "b.a.example.com.", "c.example.com."},
		{"a.example.com.", "a.example.com.", "b.a.example.com."},
		{"z.example.com.", "c.example.com.", "example.com."},
		{"example.com.", "example.com.", "a.example.com."},
	}
	for _, tt := range tests {
		before, after, err := st.GetBeforeAndAfterNames(ctx, z.ID, "example.com.", tt.q)
		require.NoError(t, err)
		assert.Equal(t, tt.before, before, tt.q)
		assert.Equal(t, tt.after, after, tt.q)
	}
}

func TestStore_CreateZoneWithRecords(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	z := &domain.Zone{Name: "example.com."}
	require.NoError(t, st.CreateZoneWithRecords(ctx, z, []domain.Record{rec("example.com.", domain.TypeNS, "ns1.example.com")}))
	assert.NotEmpty(t, z.ID)
	assert.Len(t, st.Records(z.ID), 1)

	assert.Error(t, st.CreateZoneWithRecords(ctx, &domain.Zone{Name: "example.com."}, nil))
}

func TestStore_LoadZoneFile(t *testing.T) {
	zone := `$ORIGIN example.org.
@ 3600 IN SOA ns1 hostmaster 1 3600 600 604800 300
@ 3600 IN NS ns1
ns1 IN A 192.0.2.53
`
	st := NewStore()
	z, err := st.LoadZoneFile(strings.NewReader(zone), "")
	require.NoError(t, err)
	assert.Equal(t, "example.org.", z.Name)
	assert.Len(t, st.Records(z.ID), 3)

	_, err = st.LoadZoneFile(strings.NewReader("www IN A 192.0.2.1\n"), "")
	assert.Error(t, err, "no origin anywhere")
}
