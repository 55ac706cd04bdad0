// Package prompt renders deterministic review prompts. Build is a pure
// function of the chunk and a static template, so identical chunks always
// produce identical prompts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/bmartin/prguard/internal/chunker"
	"github.com/bmartin/prguard/internal/domain"
)

// instructions is the static review task description sent with every chunk.
const instructions = `Review the following pull request diff for security and code-quality issues.

Report only issues visible in the changed code. For each issue give:
- "file": the file path exactly as shown in the diff
- "line": the line number in the new revision (from the @@ header), or omit it for file-level remarks
- "severity": one of "info", "low", "medium", "high", "critical"
- "category": "security" or "quality"
- "message": a concise description of the problem
- "suggestion": an optional concrete fix

Respond with a single JSON object and nothing else:

{"findings": [{"file": "...", "line": 123, "severity": "high", "category": "security", "message": "...", "suggestion": "..."}]}

If there are no issues respond with {"findings": []}.`

// Build renders the prompt for one chunk, including chunk framing and
// continuation labeling so split hunks are never presented ambiguously.
func Build(chunk domain.Chunk) string {
	var sb strings.Builder

	sb.WriteString(instructions)
	sb.WriteString("\n\n")

	if chunk.Total > 1 {
		fmt.Fprintf(&sb, "This is chunk %d of %d of the full diff; other chunks are reviewed separately.\n", chunk.Index+1, chunk.Total)
	}
	if chunk.IsContinuation() {
		fmt.Fprintf(&sb, "This chunk is part %d of %d of a single larger hunk that was split to fit the context budget. "+
			"The @@ header below carries the correct absolute line numbers for this part; report lines in the new revision.\n",
			chunk.PartIndex, chunk.PartTotal)
	}
	sb.WriteString("\n")

	for _, h := range chunk.Hunks {
		sb.WriteString(chunker.Serialize(h))
	}

	return sb.String()
}
