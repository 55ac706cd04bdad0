// Package git produces pull-request-shaped diffs from a local repository,
// backed by go-git. It serves the local review mode, where no hosting
// provider is involved.
package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/bmartin/prguard/internal/diff"
	"github.com/bmartin/prguard/internal/domain"
)

// Source resolves diffs between two refs of a local repository.
type Source struct {
	repoDir string
}

// NewSource constructs a diff source for the provided repository directory.
func NewSource(repoDir string) *Source {
	return &Source{repoDir: repoDir}
}

// Fetch computes the unified diff between baseRef and headRef and wraps it
// in a pull request context, so the rest of the pipeline is agnostic to
// where a diff came from. The Number is zero for local runs.
func (s *Source) Fetch(ctx context.Context, baseRef, headRef string) (*domain.PullRequestContext, error) {
	repo, err := goGit.PlainOpenWithOptions(s.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return nil, fmt.Errorf("resolve base ref: %w", err)
	}
	headCommit, err := resolveCommit(repo, headRef)
	if err != nil {
		return nil, fmt.Errorf("resolve head ref: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	patch, err := baseCommit.Patch(headCommit)
	if err != nil {
		return nil, fmt.Errorf("compute patch: %w", err)
	}
	raw := patch.String()

	files, err := diff.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse local diff: %w", err)
	}
	changed := make([]string, 0, len(files))
	for _, f := range files {
		changed = append(changed, f.Path)
	}

	return &domain.PullRequestContext{
		Owner:        "local",
		Repo:         filepath.Base(s.repoDir),
		BaseSHA:      baseCommit.Hash.String(),
		HeadSHA:      headCommit.Hash.String(),
		ChangedFiles: changed,
		RawDiff:      raw,
	}, nil
}

// CurrentBranch returns the name of the checked-out branch.
func (s *Source) CurrentBranch() (string, error) {
	repo, err := goGit.PlainOpenWithOptions(s.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if name := head.Name(); name.IsBranch() {
		return name.Short(), nil
	}
	return "", fmt.Errorf("detached HEAD")
}

// resolveCommit tries the ref as written, then as a local branch, then as a
// remote-tracking branch.
func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", strings.TrimPrefix(ref, "origin/")),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	return nil, fmt.Errorf("unable to resolve ref %s: %w", ref, lastErr)
}
