package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
	"github.com/poyrazK/zonekeeper/internal/infrastructure/metrics"
)

// maxNSEC3ZoneWireLength leaves room for a 32 character hash label plus
// its length byte within the 255 octet name limit.
const maxNSEC3ZoneWireLength = 222

// CheckService audits a zone's stored records. It never writes.
type CheckService struct {
	source ports.ZoneDataSource
	keeper ports.DNSSECKeeper
	canon  ports.ContentCanonicalizer
	cfg    Config
	logger *slog.Logger
}

// NewCheckService wires the integrity checker.
func NewCheckService(source ports.ZoneDataSource, keeper ports.DNSSECKeeper, canon ports.ContentCanonicalizer, cfg Config, logger *slog.Logger) *CheckService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckService{source: source, keeper: keeper, canon: canon, cfg: cfg, logger: logger}
}

var _ ports.Checker = (*CheckService)(nil)

// checkState collects the cross-record facts of one check run.
type checkState struct {
	hasNSAtApex bool
	tlsas       nameSet
	cnames      nameSet
	noncnames   nameSet
	glue        nameSet
	checkglue   nameSet
	records     map[string]bool
	ttls        map[string]uint32
}

// CheckZone runs every integrity rule against one zone. A zone without an
// SOA yields a report with a single error; backend failures are returned
// as errors.
func (s *CheckService) CheckZone(ctx context.Context, zone domain.Name) (*domain.CheckReport, error) {
	report := &domain.CheckReport{Zone: zone}

	soa, err := s.source.GetSOA(ctx, zone)
	if errors.Is(err, domain.ErrNoSOA) || errors.Is(err, domain.ErrZoneNotFound) {
		report.Errorf(zone, domain.TypeSOA, "No SOA record present, or active, in zone '%s'", zone)
		recordCheckMetrics(report)
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", zone, err)
	}

	posture, err := LoadPosture(ctx, s.keeper, zone)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", zone, err)
	}

	if posture.HasNSEC3 && posture.Secured && zone.WireLength() > maxNSEC3ZoneWireLength {
		report.Errorf(zone, "", "zone '%s' has NSEC3 semantics but is too long to have the hash prepended. Zone name is %d bytes long, whereas the maximum is %d bytes.",
			strings.TrimSuffix(string(zone), "."), zone.WireLength(), maxNSEC3ZoneWireLength)
	}

	if err := s.checkParentDelegation(ctx, zone, report); err != nil {
		return nil, err
	}

	records, err := s.source.ListRecords(ctx, soa.ZoneID, true)
	if err != nil {
		return nil, fmt.Errorf("check %s: failed to list records: %w", zone, err)
	}
	sortRecords(records)

	st := &checkState{
		tlsas:     make(nameSet),
		cnames:    make(nameSet),
		noncnames: make(nameSet),
		glue:      make(nameSet),
		checkglue: make(nameSet),
		records:   make(map[string]bool),
		ttls:      make(map[string]uint32),
	}
	for _, rr := range records {
		if rr.IsENT() {
			continue
		}
		report.RecordsChecked++
		s.checkRecord(rr, zone, soa, posture, st, report)
	}

	for _, name := range st.cnames.sorted() {
		if st.noncnames[name] {
			report.Errorf(name, domain.TypeCNAME, "CNAME %s found, but other records with same label exist.", name)
		}
	}

	for _, tlsa := range st.tlsas.sorted() {
		base := tlsa.StripLeft(2)
		if st.cnames[base] || st.noncnames[base] {
			continue
		}
		parent, _ := base.ChopOff()
		wildcard := parent.Prepend("*")
		var msg string
		if st.cnames[wildcard] || st.noncnames[wildcard] {
			msg = fmt.Sprintf("A wildcard record exist for '%s' and a TLSA record for '%s'.", wildcard, tlsa)
		} else {
			msg = fmt.Sprintf("No record for '%s' exists, but a TLSA record for '%s' does.", base, tlsa)
		}
		report.Warnf(tlsa, domain.TypeTLSA, "%s A query for '%s' will yield an empty response. This is most likely a mistake, please create records for '%s'.", msg, base, base)
	}

	if !st.hasNSAtApex {
		report.Errorf(zone, domain.TypeNS, "No NS record at zone apex in zone '%s'", zone)
	}

	for _, target := range st.checkglue.sorted() {
		if !st.glue[target] {
			report.Warnf(target, "", "Missing glue for '%s' in zone '%s'", target, zone)
		}
	}

	recordCheckMetrics(report)
	s.logger.Debug("zone checked", "zone", zone, "records", report.RecordsChecked, "errors", report.Errors, "warnings", report.Warnings)
	return report, nil
}

// checkParentDelegation finds the closest enclosing zone hosted by the same
// backend and requires an NS record for zone in it.
func (s *CheckService) checkParentDelegation(ctx context.Context, zone domain.Name, report *domain.CheckReport) error {
	for parent, ok := zone.ChopOff(); ok; parent, ok = parent.ChopOff() {
		psoa, err := s.source.GetSOA(ctx, parent)
		if errors.Is(err, domain.ErrNoSOA) || errors.Is(err, domain.ErrZoneNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("check %s: parent %s: %w", zone, parent, err)
		}
		recs, err := s.source.GetRecordsByName(ctx, psoa.ZoneID, zone)
		if err != nil {
			return fmt.Errorf("check %s: parent %s: %w", zone, parent, err)
		}
		hasNS := false
		for _, r := range recs {
			hasNS = hasNS || r.Type == domain.TypeNS
		}
		if !hasNS {
			report.Errorf(zone, domain.TypeNS, "No delegation for zone '%s' in parent '%s'", zone, parent)
		}
		return nil
	}
	return nil
}

// checkRecord applies the per-record rules in order. Several rules end the
// record's checks early once they fire.
func (s *CheckService) checkRecord(rr domain.Record, zone domain.Name, soa *domain.SOAData, posture domain.ZonePosture, st *checkState, report *domain.CheckReport) {
	name, qType := rr.Name, rr.Type

	if qType == domain.TypeTLSA {
		st.tlsas[name] = true
	}
	content := rr.Content
	switch {
	case qType == domain.TypeSOA:
		content = domain.PadSOAContent(content)
	case qType == domain.TypeTXT && content != "" && content[0] != '"':
		content = `"` + content + `"`
	}

	canonical, err := s.canon.Canonicalize(name, qType, content)
	if err != nil {
		report.Errorf(name, qType, "Following record had a problem: %s IN %s %s (%v)", name, qType, content, err)
		return
	}
	if qType != domain.TypeAAAA {
		if !strings.EqualFold(canonical, content) {
			report.Warnf(name, qType, "Parsed and original record content are not equal: %s IN %s '%s' (Content parsed as '%s')", name, qType, content, canonical)
		}
	} else if !validIPv6Literal(content) {
		report.Warnf(name, qType, "Following record is not a valid IPv6 address: %s IN %s '%s'", name, qType, content)
	}

	if !name.IsPartOf(zone) {
		report.Warnf(name, qType, "Record '%s IN %s %s' in zone '%s' is out-of-zone.", name, qType, content, zone)
		return
	}

	// A copy differing only in TTL is a TTL mismatch, not a duplicate.
	ttlKey := strings.ToLower(fmt.Sprintf("%s %s", name, qType))
	if qType == domain.TypeRRSIG {
		ttlKey += " (" + strings.ToLower(string(coveredType(content))) + ")"
	}
	if prev, seen := st.ttls[ttlKey]; !seen {
		st.ttls[ttlKey] = rr.TTL
	} else if prev != rr.TTL {
		report.Errorf(name, qType, "TTL mismatch in rrset: '%s IN %s %s' (%d != %d)", name, qType, content, prev, rr.TTL)
		return
	}

	key := strings.ToLower(fmt.Sprintf("%s %s %s", name, qType, content))
	if st.records[key] {
		report.Errorf(name, qType, "Duplicate record found in rrset: '%s IN %s %s'", name, qType, content)
		return
	}
	st.records[key] = true

	if posture.Secured && posture.HasNSEC3 && posture.NSEC3.OptOut() && name.IsWildcard() {
		report.Warnf(name, qType, "wildcard record '%s IN %s %s' is insecure. Wildcard records in opt-out zones are insecure; disable the opt-out flag for this zone to avoid this warning.", name, qType, content)
	}

	if name == zone {
		switch qType {
		case domain.TypeNS:
			st.hasNSAtApex = true
		case domain.TypeDS:
			report.Warnf(name, qType, "DS at apex in zone '%s', should not be here.", zone)
		}
	} else {
		switch {
		case qType == domain.TypeSOA:
			report.Errorf(name, qType, "SOA record not at apex '%s IN %s %s' in zone '%s'", name, qType, content, zone)
			return
		case qType == domain.TypeDNSKEY:
			report.Warnf(name, qType, "DNSKEY record not at apex '%s IN %s %s' in zone '%s', should not be here.", name, qType, content, zone)
		case qType == domain.TypeNS && domain.NewName(content).IsPartOf(name):
			st.checkglue[domain.NewName(content)] = true
		case qType == domain.TypeA || qType == domain.TypeAAAA:
			st.glue[name] = true
		}
	}

	switch qType {
	case domain.TypeCNAME:
		if st.cnames[name] {
			report.Errorf(name, qType, "Duplicate CNAME found at '%s'", name)
			return
		}
		st.cnames[name] = true
	case domain.TypeRRSIG:
		if !posture.Presigned {
			report.Errorf(name, qType, "RRSIG found at '%s' in non-presigned zone. These do not belong in the database.", name)
			return
		}
	default:
		st.noncnames[name] = true
	}

	if qType == domain.TypeNSEC || qType == domain.TypeNSEC3 {
		report.Errorf(name, qType, "NSEC or NSEC3 found at '%s'. These do not belong in the database.", name)
		return
	}

	if !posture.Presigned && qType == domain.TypeDNSKEY {
		if s.cfg.DirectDNSKey {
			if rr.TTL != soa.DefaultTTL {
				report.Warnf(name, qType, "DNSKEY TTL of %d at '%s' differs from SOA minimum of %d", rr.TTL, name, soa.DefaultTTL)
			}
		} else {
			report.Warnf(name, qType, "DNSKEY at '%s' in non-presigned zone will mostly be ignored and can cause problems.", name)
		}
	}

	switch qType {
	case domain.TypeNS, domain.TypeSRV, domain.TypeMX, domain.TypeCNAME, domain.TypeDNAME:
		if strings.HasSuffix(content, ".") {
			report.Warnf(name, qType, "The record %s with type %s has a trailing dot in the content (%s). Your backend might not work well with this.", name, qType, content)
		}
	}

	if !rr.Auth && qType != domain.TypeNS && qType != domain.TypeA && qType != domain.TypeAAAA {
		report.Errorf(name, qType, "Following record is auth=0, run rectify-zone?: %s IN %s %s", name, qType, content)
	}
}

// validIPv6Literal accepts plain IPv6 addresses only: no zone index and no
// embedded dotted-quad IPv4 notation.
func validIPv6Literal(content string) bool {
	if strings.Contains(content, ".") {
		return false
	}
	addr, err := netip.ParseAddr(content)
	return err == nil && addr.Is6() && addr.Zone() == ""
}

// coveredType returns the type an RRSIG's content covers.
func coveredType(content string) domain.RecordType {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return domain.RecordType(strings.ToUpper(fields[0]))
}

func sortRecords(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if cmp := domain.CompareCanonical(records[i].Name, records[j].Name); cmp != 0 {
			return cmp < 0
		}
		return records[i].Type < records[j].Type
	})
}

func recordCheckMetrics(report *domain.CheckReport) {
	metrics.CheckFindings.WithLabelValues("error").Add(float64(report.Errors))
	metrics.CheckFindings.WithLabelValues("warning").Add(float64(report.Warnings))
	if report.Passed() {
		metrics.ZonesChecked.WithLabelValues("passed").Inc()
	} else {
		metrics.ZonesChecked.WithLabelValues("failed").Inc()
	}
}

// CheckAllZones checks every zone in canonical order, handing each report
// to each. With exitOnError it stops after the first zone that fails.
func (s *CheckService) CheckAllZones(ctx context.Context, exitOnError bool, each func(*domain.CheckReport)) (*domain.BatchResult, error) {
	zones, err := s.source.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	var merr *multierror.Error
	result := &domain.BatchResult{Zones: len(zones)}
	for _, z := range zones {
		report, err := s.CheckZone(ctx, domain.NewName(z.Name))
		if err != nil {
			result.Failed++
			merr = multierror.Append(merr, err)
			s.logger.Error("check failed", "zone", z.Name, "error", err)
		} else {
			if each != nil {
				each(report)
			}
			if !report.Passed() {
				result.Failed++
			}
		}
		if exitOnError && result.Failed > 0 {
			break
		}
	}
	return result, merr.ErrorOrNil()
}
