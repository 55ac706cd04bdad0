package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// EventContext is the slice of a GitHub Actions pull_request event payload
// the reviewer needs to identify the PR under review.
type EventContext struct {
	Owner   string
	Repo    string
	Number  int
	BaseSHA string
	HeadSHA string
}

type eventPayload struct {
	Number      int `json:"number"`
	PullRequest struct {
		Number int `json:"number"`
		Base   struct {
			SHA  string `json:"sha"`
			Repo struct {
				FullName string `json:"full_name"`
			} `json:"repo"`
		} `json:"base"`
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// LoadEventContext reads the event payload at GITHUB_EVENT_PATH. It falls
// back to GITHUB_REPOSITORY for the repo name when the payload omits it.
func LoadEventContext() (EventContext, error) {
	path := os.Getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return EventContext{}, fmt.Errorf("GITHUB_EVENT_PATH is not set; not running in a GitHub Actions pull_request context")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return EventContext{}, fmt.Errorf("reading event payload: %w", err)
	}
	return ParseEventPayload(data)
}

// ParseEventPayload decodes a pull_request event payload into an EventContext.
func ParseEventPayload(data []byte) (EventContext, error) {
	var p eventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return EventContext{}, fmt.Errorf("parsing event payload: %w", err)
	}

	number := p.PullRequest.Number
	if number == 0 {
		number = p.Number
	}
	if number == 0 {
		return EventContext{}, fmt.Errorf("event payload has no pull request number")
	}

	fullName := p.PullRequest.Base.Repo.FullName
	if fullName == "" {
		fullName = p.Repository.FullName
	}
	if fullName == "" {
		fullName = os.Getenv("GITHUB_REPOSITORY")
	}
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return EventContext{}, err
	}

	return EventContext{
		Owner:   owner,
		Repo:    repo,
		Number:  number,
		BaseSHA: p.PullRequest.Base.SHA,
		HeadSHA: p.PullRequest.Head.SHA,
	}, nil
}

func splitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q, want owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
