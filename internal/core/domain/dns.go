// Package domain contains the core entities of zonekeeper: zones, records,
// DNSSEC posture and the reports produced by rectify and check runs.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// RecordType represents the type of a DNS record (e.g., A, AAAA, MX).
type RecordType string

const (
	// TypeENT marks a stored empty non-terminal row. It is not a real record.
	TypeENT RecordType = ""
	// TypeA represents an IPv4 address record.
	TypeA RecordType = "A"
	// TypeAAAA represents an IPv6 address record.
	TypeAAAA RecordType = "AAAA"
	// TypeCNAME represents a canonical name record.
	TypeCNAME RecordType = "CNAME"
	// TypeMX represents a mail exchange record.
	TypeMX RecordType = "MX"
	// TypeTXT represents a text record.
	TypeTXT RecordType = "TXT"
	// TypeNS represents a name server record.
	TypeNS RecordType = "NS"
	// TypeSOA represents a start of authority record.
	TypeSOA RecordType = "SOA"
	// TypePTR represents a pointer record.
	TypePTR RecordType = "PTR"
	// TypeSRV represents a service locator record (RFC 2782).
	TypeSRV RecordType = "SRV"
	// TypeDNAME represents a delegation name record.
	TypeDNAME RecordType = "DNAME"
	// TypeDS represents a delegation signer record.
	TypeDS RecordType = "DS"
	// TypeDNSKEY represents a zone signing public key.
	TypeDNSKEY RecordType = "DNSKEY"
	// TypeRRSIG represents a signature over an RRset.
	TypeRRSIG RecordType = "RRSIG"
	// TypeNSEC represents a plain denial-of-existence record.
	TypeNSEC RecordType = "NSEC"
	// TypeNSEC3 represents a hashed denial-of-existence record.
	TypeNSEC3 RecordType = "NSEC3"
	// TypeNSEC3PARAM carries the zone's NSEC3 hashing parameters.
	TypeNSEC3PARAM RecordType = "NSEC3PARAM"
	// TypeTLSA represents a DANE certificate association.
	TypeTLSA RecordType = "TLSA"
	// TypeCAA represents a certification authority authorization.
	TypeCAA RecordType = "CAA"
)

// Zone kinds as stored by the backend.
const (
	ZoneKindNative = "NATIVE"
	ZoneKindMaster = "MASTER"
	ZoneKindSlave  = "SLAVE"
)

// Zone represents a DNS zone.
type Zone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"` // e.g., example.com.
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record represents a DNS resource record within a zone. Rows with
// Type == TypeENT are empty non-terminal markers maintained by rectify.
type Record struct {
	ID        string     `json:"id"`
	ZoneID    string     `json:"zone_id"`
	Name      Name       `json:"name"` // absolute, e.g. www.example.com.
	Type      RecordType `json:"type"`
	Content   string     `json:"content"`
	TTL       uint32     `json:"ttl"`
	Disabled  bool       `json:"disabled"`
	Auth      bool       `json:"auth"`
	OrderName Name       `json:"ordername,omitempty"` // empty when unset
}

// IsENT reports whether the row is an empty non-terminal marker.
func (r Record) IsENT() bool {
	return r.Type == TypeENT
}

// DNSSECKey represents a cryptographic key used for DNSSEC signing. Only
// its presence and activity matter here; signing happens elsewhere.
type DNSSECKey struct {
	ID         string    `json:"id"`
	ZoneID     string    `json:"zone_id"`
	KeyType    string    `json:"key_type"` // "KSK" or "ZSK"
	Algorithm  int       `json:"algorithm"`
	PrivateKey []byte    `json:"-"`
	PublicKey  []byte    `json:"public_key"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Metadata kinds consulted for a zone's DNSSEC posture.
const (
	MetaNSEC3Param  = "NSEC3PARAM"
	MetaNSEC3Narrow = "NSEC3NARROW"
	MetaPresigned   = "PRESIGNED"
)

// SOAData is the subset of a zone's SOA that rectify and check consume.
type SOAData struct {
	ZoneID     string
	Apex       Name
	Serial     uint32
	DefaultTTL uint32 // SOA minimum
	TTL        uint32
}

// ParseSOAContent fills serial and minimum from SOA rdata. Short content is
// padded with zeros, so "ns hostmaster" yields serial 0 and minimum 0.
func ParseSOAContent(content string) (serial, minimum uint32) {
	fields := strings.Fields(content)
	for len(fields) < 7 {
		fields = append(fields, "0")
	}
	serial = parseUint32(fields[2])
	minimum = parseUint32(fields[6])
	return serial, minimum
}

// PadSOAContent returns SOA content with missing numeric fields set to 0.
func PadSOAContent(content string) string {
	fields := strings.Fields(content)
	for len(fields) < 7 {
		fields = append(fields, "0")
	}
	return strings.Join(fields, " ")
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}
