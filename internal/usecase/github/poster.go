// Package github provides the use case for publishing review findings to a
// pull request.
package github

import (
	"context"
	"fmt"
	"sort"

	"github.com/bmartin/prguard/internal/adapter/github"
	"github.com/bmartin/prguard/internal/domain"
)

// CommentClient is the slice of the GitHub API the poster needs. It allows
// mocking in tests.
type CommentClient interface {
	ListComments(ctx context.Context, owner, repo string, number int) ([]github.Comment, error)
	CreateReviewComment(ctx context.Context, owner, repo string, number int, commitSHA, path string, line int, body string) (int64, error)
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (int64, error)
}

// Logger records poster progress.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// Poster publishes new findings as review comments and always finishes with
// a summary comment, so a clean run is visible too.
type Poster struct {
	client CommentClient
	logger Logger
}

// NewPoster creates a Poster.
func NewPoster(client CommentClient, logger Logger) *Poster {
	return &Poster{client: client, logger: logger}
}

// PostRequest carries everything needed to publish one run's findings.
type PostRequest struct {
	Owner     string
	Repo      string
	Number    int
	CommitSHA string

	// Findings are the deduplicated new findings to publish.
	Findings []domain.Finding

	// Summary is the run summary; its counters for posted comments and post
	// failures are filled in by Post.
	Summary domain.RunSummary
}

// PostResult reports what was published.
type PostResult struct {
	InlinePosted  int
	PostFailures  int
	SummaryPosted bool
	Records       []domain.PostedCommentRecord
}

// ListPostedRecords re-reads the pull request's comments and recovers the
// findings published by earlier runs.
func (p *Poster) ListPostedRecords(ctx context.Context, owner, repo string, number int) ([]domain.PostedCommentRecord, error) {
	comments, err := p.client.ListComments(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("list existing comments: %w", err)
	}
	return github.RecordsFromComments(comments), nil
}

// Post publishes findings in (file, line) order. Findings with a file and
// line become inline review comments; the rest are folded into the summary
// comment. A failed inline comment is recorded and skipped, never fatal.
// The summary comment is posted even when there are no findings at all,
// except when this run posted nothing new and an earlier run already left a
// summary on the pull request, so re-running against an unchanged diff adds
// zero comments.
func (p *Poster) Post(ctx context.Context, req PostRequest) (*PostResult, error) {
	findings := make([]domain.Finding, len(req.Findings))
	copy(findings, req.Findings)
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})

	result := &PostResult{}
	var summaryFindings []domain.Finding

	for _, f := range findings {
		if !f.Inline() {
			summaryFindings = append(summaryFindings, f)
			continue
		}

		body := github.FormatFindingComment(f)
		id, err := p.client.CreateReviewComment(ctx, req.Owner, req.Repo, req.Number, req.CommitSHA, f.File, f.Line, body)
		if err != nil {
			result.PostFailures++
			p.logger.LogWarning(ctx, "failed to post review comment", map[string]interface{}{
				"file":  f.File,
				"line":  f.Line,
				"error": err.Error(),
			})
			continue
		}
		result.InlinePosted++
		result.Records = append(result.Records, domain.PostedCommentRecord{
			Fingerprint: f.Fingerprint(),
			CommentID:   id,
		})
	}

	summary := req.Summary
	summary.FindingsPosted = result.InlinePosted + len(summaryFindings)
	summary.PostFailures += result.PostFailures

	if result.InlinePosted == 0 && len(summaryFindings) == 0 && result.PostFailures == 0 {
		comments, err := p.client.ListComments(ctx, req.Owner, req.Repo, req.Number)
		if err == nil && github.HasSummaryComment(comments) {
			p.logger.LogInfo(ctx, "nothing new to report and a summary comment already exists, skipping", map[string]interface{}{
				"repo":   req.Owner + "/" + req.Repo,
				"number": req.Number,
			})
			return result, nil
		}
	}

	summaryBody := github.FormatSummaryComment(summary, summaryFindings)
	id, err := p.client.CreateIssueComment(ctx, req.Owner, req.Repo, req.Number, summaryBody)
	if err != nil {
		result.PostFailures++
		p.logger.LogWarning(ctx, "failed to post summary comment", map[string]interface{}{
			"error": err.Error(),
		})
		return result, nil
	}
	result.SummaryPosted = true
	for _, f := range summaryFindings {
		result.Records = append(result.Records, domain.PostedCommentRecord{
			Fingerprint: f.Fingerprint(),
			CommentID:   id,
		})
	}

	p.logger.LogInfo(ctx, "posted review comments", map[string]interface{}{
		"inline":   result.InlinePosted,
		"summary":  len(summaryFindings),
		"failures": result.PostFailures,
	})
	return result, nil
}
