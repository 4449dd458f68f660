package domain

import (
	"fmt"
	"strings"
)

// RectifyResult summarizes one committed rectify run.
type RectifyResult struct {
	RunID   string        `json:"run_id"`
	Zone    Name          `json:"zone"`
	Posture DNSSECPosture `json:"posture"`
	OptOut  bool          `json:"opt_out"`
	Narrow  bool          `json:"narrow"`
	Names   int           `json:"names"`
	ENTs    int           `json:"ents"`
	// ENTInserted and ENTDeleted are the reconciled deltas that were written.
	ENTInserted []Name `json:"ent_inserted"`
	ENTDeleted  []Name `json:"ent_deleted"`
	// ENTDisabled is set when the zone exceeded the ENT budget.
	ENTDisabled bool `json:"ent_disabled"`
}

// Severity classifies a check finding.
type Severity int

const (
	// SeverityWarning findings are advisory.
	SeverityWarning Severity = iota
	// SeverityError findings make the zone fail the check.
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// MarshalText makes severities readable in JSON reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Finding is one problem found in a zone.
type Finding struct {
	Severity Severity   `json:"severity"`
	Name     Name       `json:"name,omitempty"`
	Type     RecordType `json:"type,omitempty"`
	Message  string     `json:"message"`
}

func (f Finding) String() string {
	prefix := "[Warning]"
	if f.Severity == SeverityError {
		prefix = "[Error]"
	}
	return prefix + " " + f.Message
}

// CheckReport is the outcome of an integrity check of one zone.
type CheckReport struct {
	Zone           Name      `json:"zone"`
	RecordsChecked int       `json:"records_checked"`
	Errors         int       `json:"errors"`
	Warnings       int       `json:"warnings"`
	Findings       []Finding `json:"findings"`
}

// Errorf records an error finding.
func (r *CheckReport) Errorf(name Name, qType RecordType, format string, args ...any) {
	r.add(SeverityError, name, qType, fmt.Sprintf(format, args...))
}

// Warnf records a warning finding.
func (r *CheckReport) Warnf(name Name, qType RecordType, format string, args ...any) {
	r.add(SeverityWarning, name, qType, fmt.Sprintf(format, args...))
}

func (r *CheckReport) add(sev Severity, name Name, qType RecordType, msg string) {
	if sev == SeverityError {
		r.Errors++
	} else {
		r.Warnings++
	}
	r.Findings = append(r.Findings, Finding{Severity: sev, Name: name, Type: qType, Message: msg})
}

// Passed is true when the zone has no errors. Warnings never fail a zone.
func (r *CheckReport) Passed() bool {
	return r.Errors == 0
}

// Summary is the one-line tally printed after the findings.
func (r *CheckReport) Summary() string {
	return fmt.Sprintf("Checked %d records of '%s', %d errors, %d warnings.",
		r.RecordsChecked, r.Zone, r.Errors, r.Warnings)
}

// String renders every finding followed by the summary line.
func (r *CheckReport) String() string {
	var b strings.Builder
	for _, f := range r.Findings {
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	b.WriteString(r.Summary())
	return b.String()
}

// BatchResult tallies a rectify-all or check-all run.
type BatchResult struct {
	Zones   int `json:"zones"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}
