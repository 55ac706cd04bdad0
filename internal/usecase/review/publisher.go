package review

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	githubadapter "github.com/bmartin/prguard/internal/adapter/github"
	"github.com/bmartin/prguard/internal/adapter/store/sqlite"
	"github.com/bmartin/prguard/internal/domain"
	usecasegithub "github.com/bmartin/prguard/internal/usecase/github"
)

// GitHubPublisher delivers findings to a pull request as review comments.
// Posted records are re-derived from the PR's own comments, so no local
// state is needed between CI runs.
type GitHubPublisher struct {
	poster *usecasegithub.Poster
}

// NewGitHubPublisher creates a publisher backed by the comment poster.
func NewGitHubPublisher(poster *usecasegithub.Poster) *GitHubPublisher {
	return &GitHubPublisher{poster: poster}
}

func (p *GitHubPublisher) Records(ctx context.Context, pr *domain.PullRequestContext) ([]domain.PostedCommentRecord, error) {
	return p.poster.ListPostedRecords(ctx, pr.Owner, pr.Repo, pr.Number)
}

func (p *GitHubPublisher) Publish(ctx context.Context, pr *domain.PullRequestContext, findings []domain.Finding, summary domain.RunSummary) (PublishResult, error) {
	result, err := p.poster.Post(ctx, usecasegithub.PostRequest{
		Owner:     pr.Owner,
		Repo:      pr.Repo,
		Number:    pr.Number,
		CommitSHA: pr.HeadSHA,
		Findings:  findings,
		Summary:   summary,
	})
	if err != nil {
		return PublishResult{}, err
	}
	return PublishResult{
		Posted:   len(result.Records),
		Failures: result.PostFailures,
		Records:  result.Records,
	}, nil
}

// LocalPublisher renders findings to a writer, for local runs with no pull
// request to comment on. An optional store remembers what was reported so
// re-running the same review stays quiet.
type LocalPublisher struct {
	out   io.Writer
	store *sqlite.Store
}

// NewLocalPublisher creates a publisher that writes to out. The store may
// be nil, in which case every run reports everything again.
func NewLocalPublisher(out io.Writer, store *sqlite.Store) *LocalPublisher {
	return &LocalPublisher{out: out, store: store}
}

func (p *LocalPublisher) Records(ctx context.Context, pr *domain.PullRequestContext) ([]domain.PostedCommentRecord, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.ListPostedRecords(ctx, pr.Repository())
}

func (p *LocalPublisher) Publish(ctx context.Context, pr *domain.PullRequestContext, findings []domain.Finding, summary domain.RunSummary) (PublishResult, error) {
	sorted := make([]domain.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].Line < sorted[j].Line
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", summary.Headline())
	for _, f := range sorted {
		location := f.File
		if f.Line > 0 {
			location = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if location == "" {
			location = "(general)"
		}
		fmt.Fprintf(&sb, "\n[%s] %s  %s\n  %s\n", strings.ToUpper(string(f.Severity)), f.Category, location, f.Message)
		if f.Suggestion != "" {
			fmt.Fprintf(&sb, "  suggestion: %s\n", f.Suggestion)
		}
	}
	if _, err := io.WriteString(p.out, sb.String()); err != nil {
		return PublishResult{}, fmt.Errorf("write findings: %w", err)
	}

	records := make([]domain.PostedCommentRecord, 0, len(sorted))
	for _, f := range sorted {
		records = append(records, domain.PostedCommentRecord{Fingerprint: f.Fingerprint()})
	}
	return PublishResult{Posted: len(sorted), Records: records}, nil
}

// StoreAdapter adapts the sqlite store to the RunStore port.
type StoreAdapter struct {
	store *sqlite.Store
}

// NewStoreAdapter wraps a sqlite store.
func NewStoreAdapter(store *sqlite.Store) *StoreAdapter {
	return &StoreAdapter{store: store}
}

func (a *StoreAdapter) RecordRun(ctx context.Context, pr *domain.PullRequestContext, summary domain.RunSummary) error {
	return a.store.RecordRun(ctx, sqlite.Run{
		Repository: pr.Repository(),
		BaseSHA:    pr.BaseSHA,
		HeadSHA:    pr.HeadSHA,
		Timestamp:  time.Now(),
		Summary:    summary,
	})
}

func (a *StoreAdapter) SaveRecords(ctx context.Context, pr *domain.PullRequestContext, records []domain.PostedCommentRecord) error {
	return a.store.SavePostedRecords(ctx, pr.Repository(), records)
}

// apiSource adapts the GitHub client to the DiffSource port for one PR.
type apiSource struct {
	client *githubadapter.Client
	event  githubadapter.EventContext
}

// NewAPISource builds a DiffSource that fetches the diff of the pull
// request named by the event context.
func NewAPISource(client *githubadapter.Client, event githubadapter.EventContext) DiffSource {
	return &apiSource{client: client, event: event}
}

func (s *apiSource) Fetch(ctx context.Context) (*domain.PullRequestContext, error) {
	pr, err := s.client.GetPullRequest(ctx, s.event.Owner, s.event.Repo, s.event.Number)
	if err != nil {
		return nil, fmt.Errorf("get pull request: %w", err)
	}

	raw, err := s.client.GetDiff(ctx, s.event.Owner, s.event.Repo, s.event.Number)
	if err != nil {
		return nil, fmt.Errorf("get diff: %w", err)
	}

	changed, err := s.client.ListChangedFiles(ctx, s.event.Owner, s.event.Repo, s.event.Number)
	if err != nil {
		return nil, fmt.Errorf("list changed files: %w", err)
	}
	names := make([]string, 0, len(changed))
	for _, f := range changed {
		names = append(names, f.Filename)
	}

	headSHA := pr.Head.SHA
	if headSHA == "" {
		headSHA = s.event.HeadSHA
	}
	baseSHA := pr.Base.SHA
	if baseSHA == "" {
		baseSHA = s.event.BaseSHA
	}

	return &domain.PullRequestContext{
		Owner:        s.event.Owner,
		Repo:         s.event.Repo,
		Number:       s.event.Number,
		BaseSHA:      baseSHA,
		HeadSHA:      headSHA,
		ChangedFiles: names,
		RawDiff:      raw,
	}, nil
}

// localSource adapts the git adapter to the DiffSource port for a ref pair.
type localSource struct {
	fetch func(ctx context.Context) (*domain.PullRequestContext, error)
}

// NewLocalSource builds a DiffSource over a fetch function bound to a
// repository and ref pair.
func NewLocalSource(fetch func(ctx context.Context) (*domain.PullRequestContext, error)) DiffSource {
	return &localSource{fetch: fetch}
}

func (s *localSource) Fetch(ctx context.Context) (*domain.PullRequestContext, error) {
	return s.fetch(ctx)
}
