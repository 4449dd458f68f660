// Package master parses DNS master zone files (RFC 1035) into backend records
// so they can be checked without a database.
package master

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/dns/rdata"
)

// MasterParser implements a parser for DNS master zone files.
type MasterParser struct {
	Origin     domain.Name
	DefaultTTL uint32
}

// NewMasterParser creates a parser with the given starting origin (may be empty).
func NewMasterParser(origin domain.Name) *MasterParser {
	return &MasterParser{
		Origin:     origin,
		DefaultTTL: 3600,
	}
}

// ZoneData holds the parsed records and the last origin seen.
type ZoneData struct {
	Apex    domain.Name
	Records []domain.Record
}

// Parse reads a master zone file. Record content is converted to backend
// storage form (relative names qualified, no trailing dots). Content that
// does not parse for its type is kept verbatim so a later check reports it.
func (p *MasterParser) Parse(r io.Reader) (*ZoneData, error) {
	scanner := bufio.NewScanner(r)
	// 1MB lines for long DNSKEY/TXT content
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)
	data := &ZoneData{Apex: p.Origin}

	var lastName domain.Name
	var inParen bool
	var parenLines []string
	var leadingWS bool

	for scanner.Scan() {
		line := stripComment(scanner.Text())

		if !inParen {
			if strings.TrimSpace(line) == "" {
				continue
			}
			leadingWS = line[0] == ' ' || line[0] == '\t'

			if strings.Contains(line, "(") {
				inParen = true
				parenLines = append(parenLines, strings.Replace(line, "(", " ", 1))
				if !strings.Contains(line, ")") {
					continue
				}
				inParen = false
			}
		} else {
			parenLines = append(parenLines, line)
			if !strings.Contains(line, ")") {
				continue
			}
			inParen = false
		}

		full := line
		if len(parenLines) > 0 {
			full = strings.ReplaceAll(strings.Join(parenLines, " "), ")", " ")
			parenLines = nil
		}
		full = strings.TrimSpace(full)
		if full == "" {
			continue
		}

		if strings.HasPrefix(full, "$") {
			p.directive(strings.Fields(full), data)
			continue
		}

		fields := strings.Fields(full)
		name := lastName
		if !leadingWS {
			name = p.qualify(fields[0])
			fields = fields[1:]
			lastName = name
		}

		ttl := p.DefaultTTL
		var qType domain.RecordType
		var rest []string
		for i, f := range fields {
			if val, err := strconv.ParseUint(f, 10, 32); err == nil {
				ttl = uint32(val)
				continue
			}
			upper := strings.ToUpper(f)
			if upper == "IN" || upper == "CS" || upper == "CH" || upper == "HS" {
				continue
			}
			qType = domain.RecordType(upper)
			rest = fields[i+1:]
			break
		}
		if qType == "" || name == "" {
			continue
		}

		data.Records = append(data.Records, domain.Record{
			Name:    name,
			Type:    qType,
			Content: p.content(name, qType, ttl, strings.Join(rest, " ")),
			TTL:     ttl,
			Auth:    true,
		})
	}

	return data, scanner.Err()
}

func (p *MasterParser) directive(parts []string, data *ZoneData) {
	if len(parts) < 2 {
		return
	}
	switch strings.ToUpper(parts[0]) {
	case "$ORIGIN":
		p.Origin = domain.NewName(parts[1])
		data.Apex = p.Origin
	case "$TTL":
		if ttl, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
			p.DefaultTTL = uint32(ttl)
		}
	}
}

func (p *MasterParser) qualify(owner string) domain.Name {
	switch {
	case owner == "@":
		return p.Origin
	case strings.HasSuffix(owner, "."):
		return domain.NewName(owner)
	case p.Origin == "" || p.Origin.IsRoot():
		return domain.NewName(owner + ".")
	default:
		return domain.NewName(owner + "." + string(p.Origin))
	}
}

func (p *MasterParser) content(name domain.Name, qType domain.RecordType, ttl uint32, raw string) string {
	c := &rdata.Canonicalizer{Origin: p.Origin}
	rr, err := c.Parse(name, qType, ttl, raw)
	if err != nil {
		return raw
	}
	return rdata.Content(rr)
}

// stripComment cuts a ';' comment, ignoring semicolons inside quoted strings.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// SortRecordsCanonically orders records by owner name (RFC 4034 section 6.1),
// then type, then content.
func SortRecordsCanonically(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if cmp := domain.CompareCanonical(records[i].Name, records[j].Name); cmp != 0 {
			return cmp < 0
		}
		if records[i].Type != records[j].Type {
			return records[i].Type < records[j].Type
		}
		return records[i].Content < records[j].Content
	})
}
