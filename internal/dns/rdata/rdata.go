// Package rdata round-trips record content through miekg/dns so the checker
// can compare stored content against its canonical zone representation.
package rdata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

// ErrEmptyContent is returned for records without rdata.
var ErrEmptyContent = errors.New("empty record content")

// Canonicalizer parses record content for its type and serializes it back in
// backend storage form: presentation format with name-valued fields unqualified
// (no trailing dot).
type Canonicalizer struct {
	// Origin qualifies relative names in content. Empty means the root.
	Origin domain.Name
}

// NewCanonicalizer returns a Canonicalizer that treats content names as absolute.
func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{}
}

// Canonicalize parses content as rdata of qType owned by name.
func (c *Canonicalizer) Canonicalize(name domain.Name, qType domain.RecordType, content string) (string, error) {
	rr, err := c.Parse(name, qType, 3600, content)
	if err != nil {
		return "", err
	}
	return Content(rr), nil
}

// Parse builds a miekg RR from backend fields.
func (c *Canonicalizer) Parse(name domain.Name, qType domain.RecordType, ttl uint32, content string) (dns.RR, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if _, ok := dns.StringToType[string(qType)]; !ok {
		return nil, fmt.Errorf("unknown record type %q", qType)
	}
	owner := string(name)
	if owner == "" {
		owner = "."
	}
	line := fmt.Sprintf("%s %d IN %s %s", owner, ttl, qType, content)

	origin := "."
	if c.Origin != "" {
		origin = string(c.Origin)
	}
	zp := dns.NewZoneParser(strings.NewReader(line), origin, "")
	rr, ok := zp.Next()
	if err := zp.Err(); err != nil {
		return nil, err
	}
	if !ok || rr == nil {
		return nil, fmt.Errorf("no %s record parsed from %q", qType, content)
	}
	return rr, nil
}

// Content returns the rdata of rr in storage form.
func Content(rr dns.RR) string {
	rr = dns.Copy(rr)
	unqualify(rr)
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}

// unqualify strips the trailing dot from every name-valued rdata field.
func unqualify(rr dns.RR) {
	switch v := rr.(type) {
	case *dns.NS:
		v.Ns = trimDot(v.Ns)
	case *dns.CNAME:
		v.Target = trimDot(v.Target)
	case *dns.DNAME:
		v.Target = trimDot(v.Target)
	case *dns.PTR:
		v.Ptr = trimDot(v.Ptr)
	case *dns.MX:
		v.Mx = trimDot(v.Mx)
	case *dns.SRV:
		v.Target = trimDot(v.Target)
	case *dns.SOA:
		v.Ns = trimDot(v.Ns)
		v.Mbox = trimDot(v.Mbox)
	case *dns.NAPTR:
		v.Replacement = trimDot(v.Replacement)
	case *dns.AFSDB:
		v.Hostname = trimDot(v.Hostname)
	case *dns.KX:
		v.Exchanger = trimDot(v.Exchanger)
	case *dns.RP:
		v.Mbox = trimDot(v.Mbox)
		v.Txt = trimDot(v.Txt)
	case *dns.RRSIG:
		v.SignerName = trimDot(v.SignerName)
	case *dns.NSEC:
		v.NextDomain = trimDot(v.NextDomain)
	}
}

func trimDot(s string) string {
	if s == "." {
		return s
	}
	return strings.TrimSuffix(s, ".")
}

// Presentation renders rec as a zone file line with name-valued content
// fully qualified. Content that does not parse is printed verbatim.
func (c *Canonicalizer) Presentation(rec domain.Record) string {
	rr, err := c.Parse(rec.Name, rec.Type, rec.TTL, rec.Content)
	if err != nil {
		return fmt.Sprintf("%s\t%d\tIN\t%s\t%s", rec.Name, rec.TTL, rec.Type, rec.Content)
	}
	return rr.String()
}
