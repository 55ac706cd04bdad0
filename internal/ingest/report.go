// Package ingest folds scanner report artifacts into review findings so
// secret-scan, static-analysis, and dependency-audit results ride the same
// dedup and posting pipeline as model findings.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bmartin/prguard/internal/domain"
)

// Report is the artifact format the ingester accepts: a tool name plus a
// flat list of issues.
type Report struct {
	Tool   string        `json:"tool"`
	Issues []ReportIssue `json:"issues"`
}

// ReportIssue is one issue from a scanner report.
type ReportIssue struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	RuleID   string `json:"rule_id"`
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

// LoadReport reads and converts a report file. The tool argument overrides
// the report's own tool name when non-empty; it becomes the findings'
// category so scanner findings stay distinguishable from model findings.
func LoadReport(tool, path string) ([]domain.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	return ParseReport(tool, data)
}

// ParseReport converts a report artifact into findings.
func ParseReport(tool string, data []byte) ([]domain.Finding, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}

	category := strings.TrimSpace(tool)
	if category == "" {
		category = strings.TrimSpace(report.Tool)
	}
	if category == "" {
		return nil, fmt.Errorf("report has no tool name; pass one as tool=path")
	}

	findings := make([]domain.Finding, 0, len(report.Issues))
	for _, issue := range report.Issues {
		if strings.TrimSpace(issue.Message) == "" {
			continue
		}
		message := issue.Message
		if issue.RuleID != "" {
			message = issue.RuleID + ": " + message
		}
		findings = append(findings, domain.Finding{
			File:       issue.File,
			Line:       issue.Line,
			Severity:   domain.ParseSeverity(issue.Severity),
			Category:   category,
			Message:    message,
			Suggestion: issue.Fix,
		})
	}
	return findings, nil
}

// ParseReportFlag splits a --report flag value of the form tool=path.
func ParseReportFlag(value string) (tool, path string, err error) {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid report flag %q, want tool=path", value)
	}
	return parts[0], parts[1], nil
}
