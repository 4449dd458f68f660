package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Zone apexes may carry underscores (e.g. _tcp delegations), unlike hostnames.
var validLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9_]([a-zA-Z0-9_-]{0,61}[a-zA-Z0-9_])?$`)

// ParseZoneName validates a zone name given on the command line or API and
// returns it canonicalized. A missing trailing dot is added.
func ParseZoneName(raw string) (Name, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("zone name cannot be empty")
	}
	if name == "." {
		return Root, nil
	}
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	if len(name) > 254 {
		return "", fmt.Errorf("zone name exceeds 253 characters")
	}

	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	for _, label := range labels {
		if len(label) > 63 {
			return "", fmt.Errorf("label '%s' exceeds 63 characters", label)
		}
		if label == "" {
			return "", fmt.Errorf("zone name contains empty label")
		}
		if !validLabelRegex.MatchString(label) {
			return "", fmt.Errorf("label '%s' contains invalid characters or format", label)
		}
	}
	return NewName(name), nil
}
