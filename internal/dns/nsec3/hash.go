// Package nsec3 implements the RFC 5155 owner name hash used for NSEC3 ordernames.
package nsec3

import (
	"encoding/hex"
	"strings"

	"github.com/miekg/dns"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

// Hasher computes hashed owner labels. It is stateless and safe for concurrent use.
type Hasher struct{}

// NewHasher returns a Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashedLabel returns base32hex(H(name)) for the given parameters, lower case,
// unpadded. Names that do not pack into wire form hash to "".
func (h *Hasher) HashedLabel(params domain.NSEC3Params, name domain.Name) string {
	return strings.ToLower(dns.HashName(string(name), dns.SHA1, params.Iterations, hex.EncodeToString(params.Salt)))
}
