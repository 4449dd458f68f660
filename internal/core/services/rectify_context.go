package services

import (
	"sort"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

// Config is the engine configuration shared by rectify and check.
type Config struct {
	// MaxENTEntries bounds the empty non-terminals tracked per zone.
	MaxENTEntries int
	// DirectDNSKey means DNSKEY records in the backend are published as-is.
	DirectDNSKey bool
	// Workers bounds how many zones batch runs process at once.
	Workers int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxENTEntries: 100000,
		Workers:       4,
	}
}

type nameSet map[domain.Name]bool

func (s nameSet) sorted() []domain.Name {
	out := make([]domain.Name, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sortCanonical(out)
	return out
}

func sortCanonical(names []domain.Name) {
	sort.Slice(names, func(i, j int) bool { return domain.CompareCanonical(names[i], names[j]) < 0 })
}

// rectifyContext holds the name sets of a single rectify run. It is built
// from one snapshot and never shared between runs.
type rectifyContext struct {
	apex    domain.Name
	posture domain.ZonePosture

	qnames  nameSet
	nsset   nameSet
	dsnames nameSet
	// nonterm maps each synthesized ENT to whether an authoritative descendant needs it.
	nonterm map[domain.Name]bool
	insert  nameSet
	remove  nameSet

	doent     bool
	budget    int
	exhausted bool
}

func newRectifyContext(apex domain.Name, posture domain.ZonePosture, records []domain.Record, maxENT int) *rectifyContext {
	rc := &rectifyContext{
		apex:    apex,
		posture: posture,
		qnames:  make(nameSet),
		nsset:   make(nameSet),
		dsnames: make(nameSet),
		nonterm: make(map[domain.Name]bool),
		insert:  make(nameSet),
		remove:  make(nameSet),
		doent:   true,
		budget:  maxENT,
	}
	for _, r := range records {
		if r.Disabled {
			continue
		}
		if r.IsENT() {
			rc.remove[r.Name] = true
			continue
		}
		rc.qnames[r.Name] = true
		if r.Type == domain.TypeNS && r.Name != apex {
			rc.nsset[r.Name] = true
		}
		if r.Type == domain.TypeDS {
			rc.dsnames[r.Name] = true
		}
	}
	return rc
}

func (rc *rectifyContext) nsec3() bool {
	return rc.posture.Posture() == domain.PostureNSEC3
}

func (rc *rectifyContext) narrow() bool {
	return rc.nsec3() && rc.posture.NSEC3.Narrow
}

func (rc *rectifyContext) optOut() bool {
	return rc.nsec3() && rc.posture.NSEC3.OptOut()
}

func (rc *rectifyContext) entNames() []domain.Name {
	out := make([]domain.Name, 0, len(rc.nonterm))
	for n := range rc.nonterm {
		out = append(out, n)
	}
	sortCanonical(out)
	return out
}
