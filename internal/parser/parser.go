// Package parser turns raw model output into normalized findings.
//
// Parsing never produces a hard error: strict JSON extraction is attempted
// first, then a best-effort heuristic over free text, and if both fail the
// chunk is reported as unparsed through a Diagnostic instead of being
// silently dropped.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmartin/prguard/internal/domain"
)

// Parse degradation stages.
const (
	StageHeuristic = "heuristic"
	StageUnparsed  = "unparsed"
)

// Diagnostic records a degraded parse for the run summary.
type Diagnostic struct {
	ChunkIndex int
	Stage      string
	Message    string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("chunk %d: %s: %s", d.ChunkIndex+1, d.Stage, d.Message)
}

// contract mirrors the output contract the prompt builder asks the model for.
type contract struct {
	Findings []struct {
		File       string `json:"file"`
		Line       int    `json:"line"`
		Severity   string `json:"severity"`
		Category   string `json:"category"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion"`
	} `json:"findings"`
}

// fenceRe matches a JSON object inside a markdown code fence.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// fileLineRe recognizes file:line markers in free text.
var fileLineRe = regexp.MustCompile(`([\w][\w./\-]*\.[\w]+):(\d+)`)

// severityRe recognizes severity keywords in free text.
var severityRe = regexp.MustCompile(`(?i)\b(critical|high|medium|low|info|warning|error)\b`)

// securityKeywords switch a heuristic finding's category to security.
var securityKeywords = []string{
	"security", "injection", "xss", "csrf", "secret", "credential",
	"password", "token", "crypto", "traversal", "overflow", "sanitiz",
}

// Parse extracts findings from raw model output for the given chunk.
// On irrecoverable failure it returns an empty list plus a Diagnostic;
// it never returns an error.
func Parse(raw string, chunk domain.Chunk) ([]domain.Finding, *Diagnostic) {
	if findings, ok := parseStrict(raw); ok {
		return remap(findings, chunk), nil
	}

	findings := parseHeuristic(raw)
	if len(findings) > 0 {
		return remap(findings, chunk), &Diagnostic{
			ChunkIndex: chunk.Index,
			Stage:      StageHeuristic,
			Message:    fmt.Sprintf("model output was not valid JSON; extracted %d finding(s) heuristically", len(findings)),
		}
	}

	return nil, &Diagnostic{
		ChunkIndex: chunk.Index,
		Stage:      StageUnparsed,
		Message:    "model output could not be parsed as findings",
	}
}

// parseStrict attempts the JSON output contract, looking inside markdown
// fences first and falling back to the whole response.
func parseStrict(raw string) ([]domain.Finding, bool) {
	candidates := []string{}
	if m := fenceRe.FindStringSubmatch(raw); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, strings.TrimSpace(raw))

	for _, candidate := range candidates {
		var c contract
		if err := json.Unmarshal([]byte(candidate), &c); err != nil {
			continue
		}
		findings := make([]domain.Finding, 0, len(c.Findings))
		for _, f := range c.Findings {
			if strings.TrimSpace(f.Message) == "" {
				continue
			}
			findings = append(findings, domain.Finding{
				File:       strings.TrimSpace(f.File),
				Line:       f.Line,
				Severity:   domain.ParseSeverity(f.Severity),
				Category:   normalizeCategory(f.Category, f.Message),
				Message:    strings.TrimSpace(f.Message),
				Suggestion: strings.TrimSpace(f.Suggestion),
			})
		}
		return findings, true
	}
	return nil, false
}

// parseHeuristic extracts findings from free text by recognizing severity
// keywords and file:line markers line by line.
func parseHeuristic(raw string) []domain.Finding {
	var findings []domain.Finding

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if line == "" {
			continue
		}

		sevMatch := severityRe.FindString(line)
		if sevMatch == "" {
			continue
		}

		f := domain.Finding{
			Severity: domain.ParseSeverity(sevMatch),
			Category: normalizeCategory("", line),
			Message:  line,
		}
		if m := fileLineRe.FindStringSubmatch(line); len(m) == 3 {
			f.File = m[1]
			f.Line, _ = strconv.Atoi(m[2])
		}
		findings = append(findings, f)
	}
	return findings
}

// normalizeCategory keeps the model's category when recognized and otherwise
// infers security vs quality from the message text.
func normalizeCategory(category, message string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case domain.CategorySecurity:
		return domain.CategorySecurity
	case domain.CategoryQuality:
		return domain.CategoryQuality
	}

	lower := strings.ToLower(message)
	for _, kw := range securityKeywords {
		if strings.Contains(lower, kw) {
			return domain.CategorySecurity
		}
	}
	return domain.CategoryQuality
}

// remap fixes up line numbers for continuation sub-chunks. The prompt gives
// each part an absolute @@ header, but models sometimes report lines relative
// to the fragment; those are translated back onto the original hunk. Lines
// that fit neither interpretation are demoted to summary-level rather than
// anchored to a wrong line.
func remap(findings []domain.Finding, chunk domain.Chunk) []domain.Finding {
	if !chunk.IsContinuation() || len(chunk.Hunks) != 1 {
		return findings
	}
	part := chunk.Hunks[0]
	lo := part.NewStart
	hi := part.NewStart + part.NewLines - 1

	for i, f := range findings {
		if f.Line == 0 {
			continue
		}
		switch {
		case f.Line >= lo && f.Line <= hi:
			// Already absolute.
		case f.Line >= 1 && f.Line <= part.NewLines:
			findings[i].Line = lo + f.Line - 1
		default:
			findings[i].Line = 0
		}
	}
	return findings
}
