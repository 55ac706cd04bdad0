package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Severity ranks how serious a finding is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rank returns an ordering value, higher meaning more severe.
// Unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps free-form model output onto a Severity.
// Unrecognized values fall back to info rather than failing.
func ParseSeverity(raw string) Severity {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if s.IsValid() {
		return s
	}
	switch s {
	case "warning", "warn", "moderate":
		return SeverityMedium
	case "error", "severe":
		return SeverityHigh
	case "note", "notice", "informational":
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// Categories produced by the model. Ingested scanner reports carry the tool's
// own category (e.g. "secret-scan") so their comments are distinguishable.
const (
	CategorySecurity = "security"
	CategoryQuality  = "quality"
)

// Finding is a single issue normalized from model output or a scanner report.
// Line 0 means the finding is summary-level rather than tied to a line.
type Finding struct {
	File       string   `json:"file"`
	Line       int      `json:"line,omitempty"`
	Severity   Severity `json:"severity"`
	Category   string   `json:"category"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Inline reports whether the finding can be attached to a diff line.
func (f Finding) Inline() bool {
	return f.File != "" && f.Line > 0
}

// Fingerprint identifies a finding across runs so re-reviews do not repeat
// comments. Derived from (file, line, category, normalized message); the
// severity and suggestion are deliberately excluded so rewordings of advice
// do not resurrect an already-posted finding.
type Fingerprint string

// NewFingerprint computes the stable identity for the given attributes.
func NewFingerprint(file string, line int, category, message string) Fingerprint {
	payload := fmt.Sprintf("%s|%d|%s|%s", file, line, category, NormalizeMessage(message))
	sum := sha256.Sum256([]byte(payload))
	return Fingerprint(hex.EncodeToString(sum[:16]))
}

// Fingerprint returns the finding's stable identity.
func (f Finding) Fingerprint() Fingerprint {
	return NewFingerprint(f.File, f.Line, f.Category, f.Message)
}

// maxNormalizedLen bounds the message prefix that feeds the fingerprint so
// minor trailing wording changes don't produce a new identity.
const maxNormalizedLen = 120

// NormalizeMessage canonicalizes a finding message for fingerprinting:
// NFKC normalization, case folding, and whitespace collapsing.
func NormalizeMessage(message string) string {
	folded := cases.Fold().String(norm.NFKC.String(message))
	collapsed := strings.Join(strings.Fields(folded), " ")
	if len(collapsed) > maxNormalizedLen {
		collapsed = collapsed[:maxNormalizedLen]
	}
	return collapsed
}
