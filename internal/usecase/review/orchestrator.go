// Package review implements the core pipeline: fetch the diff, chunk it,
// review chunks concurrently, parse and deduplicate findings, and publish
// the result.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	llmhttp "github.com/bmartin/prguard/internal/adapter/llm/http"
	"github.com/bmartin/prguard/internal/chunker"
	"github.com/bmartin/prguard/internal/diff"
	"github.com/bmartin/prguard/internal/domain"
	"github.com/bmartin/prguard/internal/parser"
	"github.com/bmartin/prguard/internal/prompt"
	"github.com/bmartin/prguard/internal/usecase/dedup"
)

// DiffSource abstracts where the change under review comes from: a pull
// request API or a local repository.
type DiffSource interface {
	Fetch(ctx context.Context) (*domain.PullRequestContext, error)
}

// ModelClient defines the outbound port for model reviews. Retries live
// behind this interface.
type ModelClient interface {
	Review(ctx context.Context, prompt string) (string, error)
}

// Publisher delivers findings and the run summary to their destination and
// recalls what earlier runs already delivered.
type Publisher interface {
	Records(ctx context.Context, pr *domain.PullRequestContext) ([]domain.PostedCommentRecord, error)
	Publish(ctx context.Context, pr *domain.PullRequestContext, findings []domain.Finding, summary domain.RunSummary) (PublishResult, error)
}

// PublishResult reports delivery counts.
type PublishResult struct {
	Posted   int
	Failures int
	Records  []domain.PostedCommentRecord
}

// RunStore optionally persists run history and delivered findings.
type RunStore interface {
	RecordRun(ctx context.Context, pr *domain.PullRequestContext, summary domain.RunSummary) error
	SaveRecords(ctx context.Context, pr *domain.PullRequestContext, records []domain.PostedCommentRecord) error
}

// Logger records pipeline progress.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// Deps captures the orchestrator's dependencies.
type Deps struct {
	Source    DiffSource
	Model     ModelClient
	Publisher Publisher
	Logger    Logger

	// Store is optional; nil disables persistence.
	Store RunStore

	// TokenBudget is the per-chunk token ceiling.
	TokenBudget int

	// CountTokens estimates prompt size; required.
	CountTokens chunker.TokenCounter

	// Concurrency bounds in-flight model calls.
	Concurrency int

	// Timeout is the wall-clock budget for the run. Zero means no limit.
	Timeout time.Duration

	// ExtraFindings are pre-made findings (scanner reports) that join the
	// model findings before deduplication.
	ExtraFindings []domain.Finding
}

// Orchestrator drives one review run end to end.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator wires the orchestrator dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) validateDependencies() error {
	if o.deps.Source == nil {
		return errors.New("diff source is required")
	}
	if o.deps.Model == nil {
		return errors.New("model client is required")
	}
	if o.deps.Publisher == nil {
		return errors.New("publisher is required")
	}
	if o.deps.Logger == nil {
		return errors.New("logger is required")
	}
	if o.deps.CountTokens == nil {
		return errors.New("token counter is required")
	}
	return nil
}

// chunkOutcome is one chunk's review result; failed chunks carry an error
// instead of findings.
type chunkOutcome struct {
	findings   []domain.Finding
	diagnostic *parser.Diagnostic
	err        error
}

// Run executes a full review. The returned error is non-nil only for fatal
// failures (configuration, fetch, chunking, authentication); everything
// else degrades into the summary. The destination always receives either
// findings or an explicit completion summary.
func (o *Orchestrator) Run(ctx context.Context) (domain.RunSummary, error) {
	if err := o.validateDependencies(); err != nil {
		return domain.RunSummary{Status: domain.RunStatusFailed}, err
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.deps.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.deps.Timeout)
	}
	defer cancel()

	summary := domain.RunSummary{}

	pr, err := o.deps.Source.Fetch(runCtx)
	if err != nil {
		summary.Status = domain.RunStatusFailed
		return summary, fmt.Errorf("fetch diff: %w", err)
	}

	files, err := diff.Parse(pr.RawDiff)
	if err != nil {
		summary.Status = domain.RunStatusFailed
		return summary, fmt.Errorf("parse diff: %w", err)
	}

	ch, err := chunker.New(o.deps.TokenBudget, o.deps.CountTokens)
	if err != nil {
		summary.Status = domain.RunStatusFailed
		return summary, err
	}
	chunks, err := ch.Split(files)
	if err != nil {
		summary.Status = domain.RunStatusFailed
		return summary, fmt.Errorf("chunk diff: %w", err)
	}
	summary.ChunksTotal = len(chunks)

	o.deps.Logger.LogInfo(runCtx, "starting review", map[string]interface{}{
		"repository": pr.Repository(),
		"files":      len(files),
		"chunks":     len(chunks),
	})

	records, err := o.deps.Publisher.Records(runCtx, pr)
	if err != nil {
		if llmhttp.IsAuthError(err) {
			summary.Status = domain.RunStatusFailed
			return summary, fmt.Errorf("list posted findings: %w", err)
		}
		// Without records, re-posting a duplicate beats dropping findings.
		summary.Errors = append(summary.Errors, fmt.Sprintf("list posted findings: %v", err))
		o.deps.Logger.LogWarning(runCtx, "could not recover posted findings, dedup disabled for this run", map[string]interface{}{
			"error": err.Error(),
		})
		records = nil
	}

	outcomes, timedOut, fatal := o.reviewChunks(runCtx, chunks)
	if fatal != nil {
		summary.Status = domain.RunStatusFailed
		return summary, fatal
	}

	var findings []domain.Finding
	for i, out := range outcomes {
		switch {
		case out == nil:
			// Never scheduled before the run was stopped.
			summary.ChunksFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("chunk %d: not reviewed before the run was stopped", i+1))
		case out.err != nil:
			summary.ChunksFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("chunk %d: %v", i+1, out.err))
		default:
			findings = append(findings, out.findings...)
			if out.diagnostic != nil {
				summary.Errors = append(summary.Errors, out.diagnostic.String())
				if out.diagnostic.Stage == parser.StageUnparsed {
					summary.ChunksFailed++
				}
			}
		}
	}
	findings = append(findings, o.deps.ExtraFindings...)
	summary.FindingsTotal = len(findings)

	result := dedup.Partition(findings, records)
	summary.FindingsDeduplicated = len(result.AlreadyPosted)

	switch {
	case timedOut:
		summary.Status = domain.RunStatusTimedOut
	case summary.ChunksFailed > 0:
		summary.Status = domain.RunStatusPartial
	default:
		summary.Status = domain.RunStatusCompleted
	}

	// Publishing survives the run deadline: findings already extracted
	// still go out after a timeout.
	postCtx, postCancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer postCancel()

	pub, err := o.deps.Publisher.Publish(postCtx, pr, result.New, summary)
	if err != nil {
		if llmhttp.IsAuthError(err) {
			summary.Status = domain.RunStatusFailed
			return summary, fmt.Errorf("publish findings: %w", err)
		}
		summary.PostFailures++
		summary.Errors = append(summary.Errors, fmt.Sprintf("publish findings: %v", err))
	} else {
		summary.FindingsPosted = pub.Posted
		summary.PostFailures += pub.Failures
	}

	if summary.PostFailures > 0 && summary.Status == domain.RunStatusCompleted {
		summary.Status = domain.RunStatusPartial
	}

	o.persist(postCtx, pr, summary, pub.Records)

	o.deps.Logger.LogInfo(postCtx, "review finished", map[string]interface{}{
		"status":       string(summary.Status),
		"findings":     summary.FindingsTotal,
		"posted":       summary.FindingsPosted,
		"deduplicated": summary.FindingsDeduplicated,
		"chunksFailed": summary.ChunksFailed,
	})

	return summary, nil
}

// reviewChunks fans chunks out to the model with bounded concurrency. A
// deadline stops scheduling but keeps every finished outcome. Only an
// authentication failure aborts the whole run.
func (o *Orchestrator) reviewChunks(ctx context.Context, chunks []domain.Chunk) (outcomes []*chunkOutcome, timedOut bool, fatal error) {
	outcomes = make([]*chunkOutcome, len(chunks))
	concurrency := o.deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(concurrency))
	var mu sync.Mutex

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil // deadline hit before this chunk started
			}
			defer sem.Release(1)

			out := o.reviewChunk(gctx, chunk)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()

			if out.err != nil && llmhttp.IsAuthError(out.err) {
				return out.err
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && llmhttp.IsAuthError(err) {
		return nil, false, fmt.Errorf("model authentication failed: %w", err)
	}
	// Only deadline expiry counts as a timeout; plain cancellation (a
	// signal) still produces a partial result, not a timed-out one.
	return outcomes, errors.Is(ctx.Err(), context.DeadlineExceeded), nil
}

func (o *Orchestrator) reviewChunk(ctx context.Context, chunk domain.Chunk) *chunkOutcome {
	if err := ctx.Err(); err != nil {
		return &chunkOutcome{err: err}
	}

	p := prompt.Build(chunk)
	start := time.Now()
	raw, err := o.deps.Model.Review(ctx, p)
	if err != nil {
		o.deps.Logger.LogWarning(ctx, "chunk review failed", map[string]interface{}{
			"chunk": chunk.Index,
			"error": err.Error(),
		})
		return &chunkOutcome{err: err}
	}

	findings, diag := parser.Parse(raw, chunk)
	o.deps.Logger.LogInfo(ctx, "chunk reviewed", map[string]interface{}{
		"chunk":    chunk.Index,
		"findings": len(findings),
		"duration": time.Since(start).String(),
	})
	return &chunkOutcome{findings: findings, diagnostic: diag}
}

func (o *Orchestrator) persist(ctx context.Context, pr *domain.PullRequestContext, summary domain.RunSummary, records []domain.PostedCommentRecord) {
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.RecordRun(ctx, pr, summary); err != nil {
		o.deps.Logger.LogWarning(ctx, "failed to record run", map[string]interface{}{"error": err.Error()})
	}
	if len(records) == 0 {
		return
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Fingerprint < records[j].Fingerprint })
	if err := o.deps.Store.SaveRecords(ctx, pr, records); err != nil {
		o.deps.Logger.LogWarning(ctx, "failed to save posted findings", map[string]interface{}{"error": err.Error()})
	}
}
