package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miekg/dns"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
)

// DefaultMaxNSEC3Iterations caps stored NSEC3 iteration counts.
const DefaultMaxNSEC3Iterations = 500

// KeeperService answers DNSSEC posture questions from zone metadata and keys.
type KeeperService struct {
	repo          ports.DNSSECRepository
	maxIterations uint16
	logger        *slog.Logger
}

// NewKeeperService creates a KeeperService. maxIterations 0 selects the default.
func NewKeeperService(repo ports.DNSSECRepository, maxIterations uint16, logger *slog.Logger) *KeeperService {
	if maxIterations == 0 {
		maxIterations = DefaultMaxNSEC3Iterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeeperService{repo: repo, maxIterations: maxIterations, logger: logger}
}

var _ ports.DNSSECKeeper = (*KeeperService)(nil)

func (s *KeeperService) zoneID(ctx context.Context, apex domain.Name) (string, error) {
	zone, err := s.repo.GetZone(ctx, apex)
	if err != nil {
		return "", err
	}
	if zone == nil {
		return "", fmt.Errorf("%s: %w", apex, domain.ErrZoneNotFound)
	}
	return zone.ID, nil
}

func (s *KeeperService) metaFlag(ctx context.Context, zoneID, kind string) (bool, error) {
	values, err := s.repo.GetZoneMetadata(ctx, zoneID, kind)
	if err != nil {
		return false, fmt.Errorf("failed to read %s metadata: %w", kind, err)
	}
	return len(values) > 0 && strings.TrimSpace(values[0]) == "1", nil
}

// GetNSEC3Params reads the NSEC3PARAM metadata of a zone. Iteration counts
// above the configured maximum are clamped.
func (s *KeeperService) GetNSEC3Params(ctx context.Context, apex domain.Name) (domain.NSEC3Params, bool, error) {
	id, err := s.zoneID(ctx, apex)
	if err != nil {
		return domain.NSEC3Params{}, false, err
	}
	values, err := s.repo.GetZoneMetadata(ctx, id, domain.MetaNSEC3Param)
	if err != nil {
		return domain.NSEC3Params{}, false, fmt.Errorf("failed to read NSEC3PARAM metadata: %w", err)
	}
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return domain.NSEC3Params{}, false, nil
	}

	params, err := ParseNSEC3Param(values[0])
	if err != nil {
		return domain.NSEC3Params{}, false, fmt.Errorf("zone %s: %w", apex, err)
	}
	if params.Iterations > s.maxIterations {
		s.logger.Warn("NSEC3 iterations above maximum, clamping",
			"zone", apex, "iterations", params.Iterations, "max", s.maxIterations)
		params.Iterations = s.maxIterations
	}

	params.Narrow, err = s.metaFlag(ctx, id, domain.MetaNSEC3Narrow)
	if err != nil {
		return domain.NSEC3Params{}, false, err
	}
	return params, true, nil
}

// IsPresigned reports whether the zone is signed outside this system.
func (s *KeeperService) IsPresigned(ctx context.Context, apex domain.Name) (bool, error) {
	id, err := s.zoneID(ctx, apex)
	if err != nil {
		return false, err
	}
	return s.metaFlag(ctx, id, domain.MetaPresigned)
}

// IsSecured reports whether the zone has at least one active key.
func (s *KeeperService) IsSecured(ctx context.Context, apex domain.Name) (bool, error) {
	id, err := s.zoneID(ctx, apex)
	if err != nil {
		return false, err
	}
	keys, err := s.repo.ListKeysForZone(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to list keys: %w", err)
	}
	for _, k := range keys {
		if k.Active {
			return true, nil
		}
	}
	return false, nil
}

// ParseNSEC3Param parses NSEC3PARAM presentation content ("1 0 10 aabbccdd").
func ParseNSEC3Param(content string) (domain.NSEC3Params, error) {
	rr, err := dns.NewRR(". 0 IN NSEC3PARAM " + content)
	if err != nil {
		return domain.NSEC3Params{}, fmt.Errorf("invalid NSEC3PARAM %q: %w", content, err)
	}
	p, ok := rr.(*dns.NSEC3PARAM)
	if !ok || p == nil {
		return domain.NSEC3Params{}, fmt.Errorf("invalid NSEC3PARAM %q", content)
	}
	var salt []byte
	if p.Salt != "" && p.Salt != "-" {
		salt, err = hex.DecodeString(p.Salt)
		if err != nil {
			return domain.NSEC3Params{}, fmt.Errorf("invalid NSEC3 salt %q: %w", p.Salt, err)
		}
	}
	return domain.NSEC3Params{
		Algorithm:  p.Hash,
		Flags:      p.Flags,
		Iterations: p.Iterations,
		Salt:       salt,
	}, nil
}

// LoadPosture gathers the DNSSEC posture of a zone in one call.
func LoadPosture(ctx context.Context, keeper ports.DNSSECKeeper, apex domain.Name) (domain.ZonePosture, error) {
	var p domain.ZonePosture
	var err error
	if p.Presigned, err = keeper.IsPresigned(ctx, apex); err != nil {
		return p, err
	}
	if p.Secured, err = keeper.IsSecured(ctx, apex); err != nil {
		return p, err
	}
	if p.NSEC3, p.HasNSEC3, err = keeper.GetNSEC3Params(ctx, apex); err != nil {
		return p, err
	}
	return p, nil
}
