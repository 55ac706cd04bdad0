package github

// PullRequest is the subset of the pulls API response the reviewer needs.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Base   Ref    `json:"base"`
	Head   Ref    `json:"head"`
}

// Ref is one side of a pull request.
type Ref struct {
	Ref  string `json:"ref"`
	SHA  string `json:"sha"`
	Repo struct {
		FullName string `json:"full_name"`
	} `json:"repo"`
}

// Comment is a PR comment, either a review (inline) comment or an issue
// (conversation) comment; issue comments have no Path/Line.
type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	Path string `json:"path,omitempty"`
	Line int    `json:"line,omitempty"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
}

// createReviewCommentRequest is the body for POST /pulls/{n}/comments.
type createReviewCommentRequest struct {
	Body     string `json:"body"`
	CommitID string `json:"commit_id"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Side     string `json:"side"`
}

// createIssueCommentRequest is the body for POST /issues/{n}/comments.
type createIssueCommentRequest struct {
	Body string `json:"body"`
}

// ChangedFile is an entry of the pulls files API.
type ChangedFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}
