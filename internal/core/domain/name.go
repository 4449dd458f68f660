package domain

import (
	"strings"

	"github.com/miekg/dns"
)

// Name is an absolute, lower-cased DNS owner name with a trailing dot.
// Use NewName to build one from user or backend input.
type Name string

// Root is the DNS root name.
const Root Name = "."

// NewName canonicalizes s: lower case, fully qualified.
func NewName(s string) Name {
	if s == "" {
		return ""
	}
	return Name(dns.CanonicalName(s))
}

func (n Name) String() string {
	return string(n)
}

// IsRoot reports whether n is the root name.
func (n Name) IsRoot() bool {
	return n == Root
}

// IsPartOf reports whether n equals zone or sits below it.
func (n Name) IsPartOf(zone Name) bool {
	if n == "" || zone == "" {
		return false
	}
	return dns.IsSubDomain(string(zone), string(n))
}

// ChopOff returns n without its leftmost label. It returns false at the root.
func (n Name) ChopOff() (Name, bool) {
	if n == "" || n.IsRoot() {
		return n, false
	}
	idx := dns.Split(string(n))
	if len(idx) <= 1 {
		return Root, true
	}
	return Name(string(n)[idx[1]:]), true
}

// CountLabels returns the number of labels, 0 for the root.
func (n Name) CountLabels() int {
	return dns.CountLabel(string(n))
}

// Labels returns the labels of n from left to right.
func (n Name) Labels() []string {
	return dns.SplitDomainName(string(n))
}

// FirstLabel returns the leftmost label, or "" for the root.
func (n Name) FirstLabel() string {
	labels := n.Labels()
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

// IsWildcard reports whether the leftmost label is "*".
func (n Name) IsWildcard() bool {
	return n.FirstLabel() == "*"
}

// WireLength is the length of n in uncompressed wire format.
func (n Name) WireLength() int {
	buf := make([]byte, 512)
	off, err := dns.PackDomainName(string(n), buf, 0, nil, false)
	if err != nil {
		return len(n) + 1
	}
	return off
}

// StripLeft removes up to count labels from the left of n.
func (n Name) StripLeft(count int) Name {
	out := n
	for i := 0; i < count; i++ {
		next, ok := out.ChopOff()
		if !ok {
			break
		}
		out = next
	}
	return out
}

// Prepend returns label.n.
func (n Name) Prepend(label string) Name {
	if n.IsRoot() {
		return NewName(label + ".")
	}
	return NewName(label + "." + string(n))
}

// Relative returns the labels of n below apex, leftmost first. It returns
// nil when n is the apex or is not part of it.
func (n Name) Relative(apex Name) []string {
	if n == apex || !n.IsPartOf(apex) {
		return nil
	}
	labels := n.Labels()
	return labels[:len(labels)-apex.CountLabels()]
}

// OrderKey is the byte-comparable key a backend stores for an ordername:
// the labels below apex in reverse order, joined by a single space. The apex
// maps to the empty key. Hashed NSEC3 ordernames reduce to the hash label.
func OrderKey(orderName, apex Name) string {
	rel := orderName.Relative(apex)
	for i, j := 0, len(rel)-1; i < j; i, j = i+1, j-1 {
		rel[i], rel[j] = rel[j], rel[i]
	}
	return strings.Join(rel, " ")
}

// FromOrderKey rebuilds an absolute ordername from a stored key.
func FromOrderKey(key string, apex Name) Name {
	if key == "" {
		return apex
	}
	labels := strings.Split(key, " ")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	rel := strings.Join(labels, ".")
	if apex.IsRoot() {
		return NewName(rel + ".")
	}
	return NewName(rel + "." + string(apex))
}

// CompareCanonical orders names per RFC 4034 section 6.1: label by label
// from the right, case-insensitive, shorter names first on a common suffix.
func CompareCanonical(a, b Name) int {
	if a == b {
		return 0
	}
	al := a.Labels()
	bl := b.Labels()
	i, j := len(al)-1, len(bl)-1
	for i >= 0 && j >= 0 {
		x, y := strings.ToLower(al[i]), strings.ToLower(bl[j])
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
		i--
		j--
	}
	switch {
	case len(al) < len(bl):
		return -1
	case len(al) > len(bl):
		return 1
	}
	return 0
}
