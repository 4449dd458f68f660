package services

import (
	"log/slog"
	"sort"
	"testing"

	"github.com/poyrazK/zonekeeper/internal/adapters/memory"
	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/dns/nsec3"
	"github.com/poyrazK/zonekeeper/internal/dns/rdata"
)

const testSOA = "ns1.example.com hostmaster.example.com 1 3600 600 604800 300"

var quietLogger = slog.New(slog.DiscardHandler)

func rr(name string, qType domain.RecordType, content string) domain.Record {
	return domain.Record{Name: domain.NewName(name), Type: qType, Content: content, TTL: 3600, Auth: true}
}

func ent(name string) domain.Record {
	return domain.Record{Name: domain.NewName(name), Type: domain.TypeENT, Auth: true}
}

func newZone(st *memory.Store, apex string, recs ...domain.Record) *domain.Zone {
	z := st.AddZone(domain.NewName(apex), "")
	for _, r := range recs {
		st.AddRecord(z.ID, r)
	}
	return z
}

// apexRecords returns the SOA and NS every well-formed test zone carries.
func apexRecords(apex string) []domain.Record {
	return []domain.Record{
		rr(apex, domain.TypeSOA, testSOA),
		rr(apex, domain.TypeNS, "ns1.example.com"),
	}
}

func secureNSEC(st *memory.Store, z *domain.Zone) {
	st.AddKey(z.ID, domain.DNSSECKey{KeyType: "KSK", Algorithm: 13, Active: true})
}

func secureNSEC3(st *memory.Store, z *domain.Zone, param string) {
	secureNSEC(st, z)
	st.SetMetadata(z.ID, domain.MetaNSEC3Param, param)
}

func newServices(st *memory.Store, cfg Config, opts ...RectifyOption) (*RectifyService, *CheckService) {
	keeper := NewKeeperService(st, 0, quietLogger)
	return NewRectifyService(st, keeper, nsec3.NewHasher(), cfg, quietLogger, opts...),
		NewCheckService(st, keeper, rdata.NewCanonicalizer(), cfg, quietLogger)
}

func findRecord(t *testing.T, st *memory.Store, zoneID, name string, qType domain.RecordType) domain.Record {
	t.Helper()
	for _, r := range st.Records(zoneID) {
		if r.Name == domain.NewName(name) && r.Type == qType {
			return r
		}
	}
	t.Fatalf("no %s record at %s", qType, name)
	return domain.Record{}
}

func storedENTs(st *memory.Store, zoneID string) []domain.Name {
	var out []domain.Name
	for _, r := range st.Records(zoneID) {
		if r.IsENT() {
			out = append(out, r.Name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.CompareCanonical(out[i], out[j]) < 0 })
	return out
}

type ordering struct {
	orderName domain.Name
	auth      bool
}

// snapshot maps "name type content" to the stored ordering of each row.
func snapshot(st *memory.Store, zoneID string) map[string]ordering {
	out := make(map[string]ordering)
	for _, r := range st.Records(zoneID) {
		out[string(r.Name)+" "+string(r.Type)+" "+r.Content] = ordering{r.OrderName, r.Auth}
	}
	return out
}

func hashed(params domain.NSEC3Params, name, apex string) domain.Name {
	return domain.NewName(apex).Prepend(nsec3.NewHasher().HashedLabel(params, domain.NewName(name)))
}
