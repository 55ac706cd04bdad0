// Package github talks to the version-control provider's REST API: fetching
// pull request context and diffs (DiffSource) and managing review comments
// (CommentPoster's transport).
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	llmhttp "github.com/bmartin/prguard/internal/adapter/llm/http"
)

const (
	defaultBaseURL        = "https://api.github.com"
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 2 * time.Second
	providerName          = "github"

	// maxPaginationPages bounds comment listing so a PR with thousands of
	// comments cannot stall the run.
	maxPaginationPages = 10

	// maxResponseSize bounds how much body we read from any response.
	maxResponseSize = 10 * 1024 * 1024
)

// Client is an HTTP client for the GitHub REST API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	retryConf  llmhttp.RetryConfig
}

// NewClient creates a GitHub API client. The token is a personal access
// token or the GITHUB_TOKEN provided by Actions.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf: llmhttp.RetryConfig{
			MaxRetries:     defaultMaxRetries,
			InitialBackoff: defaultInitialBackoff,
			MaxBackoff:     32 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// SetBaseURL sets a custom base URL (for testing or GitHub Enterprise).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetRetryConfig overrides the retry policy (for testing).
func (c *Client) SetRetryConfig(conf llmhttp.RetryConfig) {
	c.retryConf = conf
}

// GetPullRequest fetches pull request metadata.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)

	body, err := c.do(ctx, http.MethodGet, url, nil, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}

	var pr PullRequest
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("parse pull request: %w", err)
	}
	return &pr, nil
}

// GetDiff fetches the pull request's unified diff via the .diff media type.
func (c *Client) GetDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)

	body, err := c.do(ctx, http.MethodGet, url, nil, "application/vnd.github.diff")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ListChangedFiles fetches the file list of a pull request (first page is
// enough for the context summary; the diff itself is authoritative).
func (c *Client) ListChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=100", c.baseURL, owner, repo, number)

	body, err := c.do(ctx, http.MethodGet, url, nil, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}

	var files []ChangedFile
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("parse changed files: %w", err)
	}
	return files, nil
}

// ListComments returns both review (inline) and issue (conversation)
// comments on the pull request, paginated up to maxPaginationPages each.
// The deduplicator scans these for fingerprint markers.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	review, err := c.listPaginated(ctx,
		fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", c.baseURL, owner, repo, number))
	if err != nil {
		return nil, fmt.Errorf("list review comments: %w", err)
	}

	issue, err := c.listPaginated(ctx,
		fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, owner, repo, number))
	if err != nil {
		return nil, fmt.Errorf("list issue comments: %w", err)
	}

	return append(review, issue...), nil
}

// CreateReviewComment posts an inline comment on a diff line of the head
// commit. Returns the created comment's ID.
func (c *Client) CreateReviewComment(ctx context.Context, owner, repo string, number int, commitSHA, path string, line int, commentBody string) (int64, error) {
	reqBody := createReviewCommentRequest{
		Body:     commentBody,
		CommitID: commitSHA,
		Path:     path,
		Line:     line,
		Side:     "RIGHT",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", c.baseURL, owner, repo, number)
	respBody, err := c.do(ctx, http.MethodPost, url, jsonData, "application/vnd.github+json")
	if err != nil {
		return 0, err
	}

	var created Comment
	if err := json.Unmarshal(respBody, &created); err != nil {
		return 0, fmt.Errorf("parse created comment: %w", err)
	}
	return created.ID, nil
}

// CreateIssueComment posts a conversation-level comment (used for the run
// summary and for line-less findings). Returns the created comment's ID.
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, commentBody string) (int64, error) {
	jsonData, err := json.Marshal(createIssueCommentRequest{Body: commentBody})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, owner, repo, number)
	respBody, err := c.do(ctx, http.MethodPost, url, jsonData, "application/vnd.github+json")
	if err != nil {
		return 0, err
	}

	var created Comment
	if err := json.Unmarshal(respBody, &created); err != nil {
		return 0, fmt.Errorf("parse created comment: %w", err)
	}
	return created.ID, nil
}

// listPaginated fetches every page of a comment listing endpoint.
func (c *Client) listPaginated(ctx context.Context, baseURL string) ([]Comment, error) {
	var all []Comment

	for page := 1; page <= maxPaginationPages; page++ {
		url := fmt.Sprintf("%s?per_page=100&page=%d", baseURL, page)
		body, err := c.do(ctx, http.MethodGet, url, nil, "application/vnd.github+json")
		if err != nil {
			return nil, err
		}

		var comments []Comment
		if err := json.Unmarshal(body, &comments); err != nil {
			return nil, fmt.Errorf("parse comments page %d: %w", page, err)
		}
		all = append(all, comments...)

		if len(comments) < 100 {
			break
		}
	}
	return all, nil
}

// do executes one API call with retry, returning the response body.
func (c *Client) do(ctx context.Context, method, url string, reqBody []byte, accept string) ([]byte, error) {
	var respBody []byte

	operation := func(ctx context.Context) error {
		var reader io.Reader
		if reqBody != nil {
			reader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return llmhttp.NewNetworkError(providerName, err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return llmhttp.NewNetworkError(providerName, fmt.Sprintf("read response: %v", err))
		}

		if resp.StatusCode >= 400 {
			return mapHTTPError(resp.StatusCode, body)
		}

		respBody = body
		return nil
	}

	if err := llmhttp.RetryWithBackoff(ctx, operation, c.retryConf); err != nil {
		return nil, err
	}
	return respBody, nil
}

// mapHTTPError converts GitHub error responses to typed errors.
func mapHTTPError(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)
	var errResp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmhttp.NewAuthenticationError(providerName, message)
	case http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(providerName, message)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return llmhttp.NewInvalidRequestError(providerName, message)
	default:
		if statusCode >= 500 {
			return llmhttp.NewServiceUnavailableError(providerName, message)
		}
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	}
}
