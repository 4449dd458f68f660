package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
)

// DNSSEC key flags (RFC 4034 section 2.1.1).
const (
	flagsZSK = 256
	flagsKSK = 257
)

// DNSSECService manages the keys and metadata that decide a zone's posture.
type DNSSECService struct {
	repo   ports.DNSSECAdminRepository
	logger *slog.Logger
}

func NewDNSSECService(repo ports.DNSSECAdminRepository, logger *slog.Logger) *DNSSECService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DNSSECService{repo: repo, logger: logger}
}

func (s *DNSSECService) zone(ctx context.Context, apex domain.Name) (*domain.Zone, error) {
	zone, err := s.repo.GetZone(ctx, apex)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		return nil, fmt.Errorf("%s: %w", apex, domain.ErrZoneNotFound)
	}
	return zone, nil
}

// GenerateKey creates a new ECDSA P-256 key pair for a zone.
func (s *DNSSECService) GenerateKey(ctx context.Context, apex domain.Name, keyType string) (*domain.DNSSECKey, error) {
	zone, err := s.zone(ctx, apex)
	if err != nil {
		return nil, err
	}

	flags := uint16(flagsZSK)
	if keyType == "KSK" {
		flags = flagsKSK
	}
	dnskey := &dns.DNSKEY{
		Hdr:       dns.RR_Header{Name: dns.Fqdn(zone.Name), Rrtype: dns.TypeDNSKEY, Class: dns.ClassINET, Ttl: 3600},
		Flags:     flags,
		Protocol:  3,
		Algorithm: dns.ECDSAP256SHA256,
	}
	priv, err := dnskey.Generate(256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(dnskey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}

	now := time.Now()
	key := &domain.DNSSECKey{
		ID:         uuid.New().String(),
		ZoneID:     zone.ID,
		KeyType:    keyType,
		Algorithm:  int(dns.ECDSAP256SHA256),
		PrivateKey: []byte(dnskey.PrivateKeyString(priv)),
		PublicKey:  pub,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateKey(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("Generated DNSSEC key", "zone", zone.Name, "type", keyType, "tag", dnskey.KeyTag())
	return key, nil
}

// SecureZone makes sure the zone has an active KSK and ZSK and returns
// the keys it created.
func (s *DNSSECService) SecureZone(ctx context.Context, apex domain.Name) ([]domain.DNSSECKey, error) {
	zone, err := s.zone(ctx, apex)
	if err != nil {
		return nil, err
	}
	presigned, err := s.repo.GetZoneMetadata(ctx, zone.ID, domain.MetaPresigned)
	if err != nil {
		return nil, err
	}
	if len(presigned) > 0 && presigned[0] == "1" {
		return nil, fmt.Errorf("%s: %w", apex, domain.ErrPresigned)
	}

	keys, err := s.repo.ListKeysForZone(ctx, zone.ID)
	if err != nil {
		return nil, err
	}
	hasKSK, hasZSK := false, false
	for _, k := range keys {
		if k.KeyType == "KSK" && k.Active {
			hasKSK = true
		}
		if k.KeyType == "ZSK" && k.Active {
			hasZSK = true
		}
	}

	var created []domain.DNSSECKey
	for keyType, present := range map[string]bool{"KSK": hasKSK, "ZSK": hasZSK} {
		if present {
			continue
		}
		key, err := s.GenerateKey(ctx, apex, keyType)
		if err != nil {
			return created, err
		}
		created = append(created, *key)
	}
	return created, nil
}

// GetActiveKey returns the current active key of a specific type for a zone.
func (s *DNSSECService) GetActiveKey(ctx context.Context, apex domain.Name, keyType string) (*domain.DNSSECKey, error) {
	zone, err := s.zone(ctx, apex)
	if err != nil {
		return nil, err
	}
	keys, err := s.repo.ListKeysForZone(ctx, zone.ID)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.KeyType == keyType && k.Active {
			return &k, nil
		}
	}
	return nil, fmt.Errorf("no active %s key found", keyType)
}

// SetNSEC3Param switches the zone to NSEC3 with the given NSEC3PARAM
// content. The zone needs a rectify afterwards.
func (s *DNSSECService) SetNSEC3Param(ctx context.Context, apex domain.Name, content string, narrow bool) error {
	zone, err := s.zone(ctx, apex)
	if err != nil {
		return err
	}
	params, err := ParseNSEC3Param(content)
	if err != nil {
		return err
	}
	if params.Algorithm != dns.SHA1 {
		return fmt.Errorf("unsupported NSEC3 hash algorithm %d", params.Algorithm)
	}
	canonical := fmt.Sprintf("%d %d %d %s", params.Algorithm, params.Flags, params.Iterations, params.SaltHex())
	if err := s.repo.SetZoneMetadata(ctx, zone.ID, domain.MetaNSEC3Param, canonical); err != nil {
		return err
	}
	flag := []string{}
	if narrow {
		flag = []string{"1"}
	}
	return s.repo.SetZoneMetadata(ctx, zone.ID, domain.MetaNSEC3Narrow, flag...)
}

// UnsetNSEC3Param returns the zone to NSEC (or unsigned without keys).
func (s *DNSSECService) UnsetNSEC3Param(ctx context.Context, apex domain.Name) error {
	zone, err := s.zone(ctx, apex)
	if err != nil {
		return err
	}
	if err := s.repo.SetZoneMetadata(ctx, zone.ID, domain.MetaNSEC3Param); err != nil {
		return err
	}
	return s.repo.SetZoneMetadata(ctx, zone.ID, domain.MetaNSEC3Narrow)
}

// SetPresigned marks or unmarks the zone as signed elsewhere.
func (s *DNSSECService) SetPresigned(ctx context.Context, apex domain.Name, presigned bool) error {
	zone, err := s.zone(ctx, apex)
	if err != nil {
		return err
	}
	if !presigned {
		return s.repo.SetZoneMetadata(ctx, zone.ID, domain.MetaPresigned)
	}
	return s.repo.SetZoneMetadata(ctx, zone.ID, domain.MetaPresigned, "1")
}
