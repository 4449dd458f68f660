package services

import (
	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
)

// delegated reports whether name or any ancestor up to the apex is a delegation point.
func (rc *rectifyContext) delegated(name domain.Name) bool {
	for n := name; ; {
		if rc.nsset[n] {
			return true
		}
		if n == rc.apex {
			return false
		}
		next, ok := n.ChopOff()
		if !ok {
			return false
		}
		n = next
	}
}

// computeOrdering returns the ordername and auth flag for one owner name.
// Real names derive auth from the delegation structure and get an ordername
// under NSEC or non-narrow NSEC3, except non-authoritative names in opt-out
// zones. Synthetic ENT names use the auth recorded while walking their
// descendants and only get a hashed ordername when authoritative.
func (rc *rectifyContext) computeOrdering(name domain.Name, synthetic bool, hasher ports.HashOracle) (domain.Name, bool) {
	var auth bool
	if synthetic {
		auth = rc.nonterm[name]
	} else {
		auth = !rc.delegated(name)
	}

	switch rc.posture.Posture() {
	case domain.PostureNSEC3:
		if rc.narrow() {
			return "", auth
		}
		if auth || (!synthetic && !rc.optOut()) {
			return hashedOrderName(hasher, rc.posture.NSEC3, name, rc.apex), auth
		}
	case domain.PostureNSEC:
		if !synthetic {
			return name, auth
		}
	}
	return "", auth
}

func hashedOrderName(hasher ports.HashOracle, params domain.NSEC3Params, name, apex domain.Name) domain.Name {
	return apex.Prepend(hasher.HashedLabel(params, name))
}

// dsOrdering is the ordername of a DS rrset. DS is authoritative data of
// the parent, so it keeps an ordername even where the delegation's own rows
// lose theirs.
func (rc *rectifyContext) dsOrdering(name domain.Name, hasher ports.HashOracle) domain.Name {
	switch rc.posture.Posture() {
	case domain.PostureNSEC3:
		if rc.narrow() {
			return ""
		}
		return hashedOrderName(hasher, rc.posture.NSEC3, name, rc.apex)
	case domain.PostureNSEC:
		return name
	}
	return ""
}
