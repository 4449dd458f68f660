package domain

import (
	"encoding/hex"
	"fmt"
)

// DNSSECPosture describes how a zone provides denial of existence.
type DNSSECPosture int

const (
	// PostureUnsigned zones get auth flags only.
	PostureUnsigned DNSSECPosture = iota
	// PostureNSEC zones order by plain owner name.
	PostureNSEC
	// PostureNSEC3 zones order by hashed owner name.
	PostureNSEC3
	// PosturePresigned zones are signed elsewhere and never rectified.
	PosturePresigned
)

func (p DNSSECPosture) String() string {
	switch p {
	case PostureNSEC:
		return "nsec"
	case PostureNSEC3:
		return "nsec3"
	case PosturePresigned:
		return "presigned"
	default:
		return "unsigned"
	}
}

// MarshalText renders the posture by name in JSON output.
func (p DNSSECPosture) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (p *DNSSECPosture) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unsigned":
		*p = PostureUnsigned
	case "nsec":
		*p = PostureNSEC
	case "nsec3":
		*p = PostureNSEC3
	case "presigned":
		*p = PosturePresigned
	default:
		return fmt.Errorf("unknown DNSSEC posture %q", text)
	}
	return nil
}

// NSEC3Params holds a zone's NSEC3 hashing parameters (RFC 5155).
type NSEC3Params struct {
	Algorithm  uint8
	Flags      uint8
	Iterations uint16
	Salt       []byte
	// Narrow zones compute hashes at query time; no ordername is stored.
	Narrow bool
}

// OptOut reports whether the opt-out flag (bit 0) is set.
func (p NSEC3Params) OptOut() bool {
	return p.Flags&0x01 != 0
}

// SaltHex renders the salt the way NSEC3PARAM presentation format does.
func (p NSEC3Params) SaltHex() string {
	if len(p.Salt) == 0 {
		return "-"
	}
	return hex.EncodeToString(p.Salt)
}

// ZonePosture is everything rectify and check need to know about a zone's
// signing setup, gathered once per run.
type ZonePosture struct {
	Secured   bool
	Presigned bool
	HasNSEC3  bool
	NSEC3     NSEC3Params
}

// Posture collapses the flags into a single DNSSECPosture.
func (z ZonePosture) Posture() DNSSECPosture {
	switch {
	case z.Presigned:
		return PosturePresigned
	case z.HasNSEC3:
		return PostureNSEC3
	case z.Secured:
		return PostureNSEC
	default:
		return PostureUnsigned
	}
}
