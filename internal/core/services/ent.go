package services

import "github.com/poyrazK/zonekeeper/internal/core/domain"

// trackEmptyNonTerminals walks the strict ancestors of a real owner name
// below the apex and records each one that owns no records as an ENT. Only
// newly seen ENTs are charged against the budget. Running out drops ENT
// tracking for the whole run.
func (rc *rectifyContext) trackEmptyNonTerminals(name domain.Name, auth bool) {
	if !rc.doent || name == rc.apex || !name.IsPartOf(rc.apex) {
		return
	}

	for n := name; ; {
		next, ok := n.ChopOff()
		if !ok || next == rc.apex {
			return
		}
		n = next
		if rc.qnames[n] {
			// Its own walk covers everything above it.
			return
		}

		if known, seen := rc.nonterm[n]; seen {
			if auth && !known {
				rc.nonterm[n] = true
			}
			continue
		}

		if rc.budget <= 0 {
			rc.dropENTTracking()
			return
		}
		rc.budget--
		rc.nonterm[n] = auth
		if rc.remove[n] {
			delete(rc.remove, n)
		} else {
			rc.insert[n] = true
		}
	}
}

// dropENTTracking discards everything accumulated for ENTs in this run.
func (rc *rectifyContext) dropENTTracking() {
	rc.doent = false
	rc.exhausted = true
	rc.nonterm = make(map[domain.Name]bool)
	rc.insert = make(nameSet)
	rc.remove = make(nameSet)
}
