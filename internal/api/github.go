package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/wesm/github-issue-link/internal/models"
	"golang.org/x/oauth2"
)

// GitHubClient performs issue operations for one GitHub App installation
type GitHubClient struct {
	installationID string
	organizationID int64
	tokens         TokenProvider

	client     *github.Client
	httpClient *http.Client
	graphqlURL string
	now        func() time.Time
	logger     *slog.Logger

	// mu guards token only. Two callers may both see a stale token and both
	// refresh; the last one stored wins.
	mu    sync.Mutex
	token *models.AccessToken
}

// NewGitHubClient creates a client bound to installationID. No token is fetched until the first call.
func NewGitHubClient(installationID string, organizationID int64, tokens TokenProvider, opts ...Option) (*GitHubClient, error) {
	o := buildOptions(opts)

	baseURL, err := parseBaseURL(o.baseURL)
	if err != nil {
		return nil, err
	}

	graphqlURL := o.graphqlURL
	if graphqlURL == "" {
		graphqlURL = defaultGraphQLURL(baseURL)
	}

	c := &GitHubClient{
		installationID: installationID,
		organizationID: organizationID,
		tokens:         tokens,
		graphqlURL:     graphqlURL,
		now:            o.now,
		logger: o.logger.With(
			slog.String("installation_id", installationID),
			slog.Int64("organization_id", organizationID),
		),
	}

	c.httpClient = &http.Client{
		Timeout: o.timeout,
		Transport: &hostTransport{
			host: baseURL.Host,
			next: &oauth2.Transport{
				Source: cachedTokenSource{c: c},
				Base:   o.transport,
			},
		},
	}
	c.client = github.NewClient(c.httpClient)
	c.client.BaseURL = baseURL

	return c, nil
}

// InstallationID returns the installation this client acts for
func (c *GitHubClient) InstallationID() string {
	return c.installationID
}

// ensureToken fetches a new access token when none is cached or the cached one has expired
func (c *GitHubClient) ensureToken(ctx context.Context) error {
	if tok := c.cachedToken(); tok != nil && !tok.ExpiredAt(c.now()) {
		return nil
	}

	fresh, err := c.tokens.GetAccessToken(ctx, c.installationID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = fresh
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "refreshed installation access token", slog.Time("expires_at", fresh.ExpiresAt))
	return nil
}

func (c *GitHubClient) cachedToken() *models.AccessToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// call sends one authenticated REST request and decodes the response into v
func (c *GitHubClient) call(ctx context.Context, method, path string, body, v interface{}) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	req, err := c.client.NewRequest(method, path, body)
	if err != nil {
		return err
	}

	if _, err := c.client.Do(ctx, req, v); err != nil {
		return toAPIError(err)
	}
	return nil
}

// GetAllowedAssignees lists users that can be assigned issues in repo, preceded by the "Unassigned" choice
func (c *GitHubClient) GetAllowedAssignees(ctx context.Context, repo string) ([]models.AssigneeChoice, error) {
	var users []*github.User
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("repos/%s/assignees", repo), nil, &users); err != nil {
		return nil, fmt.Errorf("failed to list assignees: %w", err)
	}
	// An empty or null body leaves the slice nil; "[]" does not
	if users == nil {
		return nil, &MalformedResponseError{Field: "assignees"}
	}

	choices := make([]models.AssigneeChoice, 0, len(users)+1)
	choices = append(choices, models.UnassignedChoice)
	for _, user := range users {
		login := user.GetLogin()
		if login == "" {
			return nil, &MalformedResponseError{Field: "login"}
		}
		choices = append(choices, models.AssigneeChoice{Login: login, DisplayName: login})
	}

	return choices, nil
}

// GetRepoIssues lists the open issues of repo as selectable choices
func (c *GitHubClient) GetRepoIssues(ctx context.Context, repo string) ([]models.IssueChoice, error) {
	var issues []*github.Issue
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("repos/%s/issues", repo), nil, &issues); err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	if issues == nil {
		return nil, &MalformedResponseError{Field: "issues"}
	}

	choices := make([]models.IssueChoice, 0, len(issues))
	for _, issue := range issues {
		if issue.Number == nil {
			return nil, &MalformedResponseError{Field: "number"}
		}
		if issue.Title == nil {
			return nil, &MalformedResponseError{Field: "title"}
		}
		choices = append(choices, issueChoice(issue.GetNumber(), issue.GetTitle()))
	}

	return choices, nil
}

// GetIssue fetches issue issueID from the repository named in data
func (c *GitHubClient) GetIssue(ctx context.Context, issueID string, data models.LinkIssueData) (*models.IssueRecord, error) {
	number, err := strconv.Atoi(issueID)
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("invalid issue number %q", issueID)
	}

	var issue github.Issue
	path := fmt.Sprintf("repos/%s/issues/%d", data.Repo, number)
	if err := c.call(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	return ConvertGitHubIssue(&issue, data.Repo, "")
}

// issueRequest is the create-issue payload. Assignee has no omitempty so
// that a nil assignee is sent as null.
type issueRequest struct {
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	Assignee *string `json:"assignee"`
}

// CreateIssue opens a new issue in form.Repo
func (c *GitHubClient) CreateIssue(ctx context.Context, form models.CreateIssueForm) (*models.IssueRecord, error) {
	payload := &issueRequest{
		Title:    form.Title,
		Body:     form.Description,
		Assignee: form.Assignee,
	}

	var issue github.Issue
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("repos/%s/issues", form.Repo), payload, &issue); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	return ConvertGitHubIssue(&issue, form.Repo, form.Description)
}

type commentRequest struct {
	Body string `json:"body"`
}

// AfterLinkIssue posts data.Comment on the GitHub issue referenced by the link record.
// Nothing is sent when the comment is empty.
func (c *GitHubClient) AfterLinkIssue(ctx context.Context, externalIssue *models.ExternalIssue, data models.LinkIssueData) error {
	if data.Comment == "" {
		return nil
	}
	if externalIssue == nil {
		return errors.New("external issue is required")
	}

	repo, number, err := ParseExternalKey(externalIssue.Key)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("repos/%s/issues/%d/comments", repo, number)
	if err := c.call(ctx, http.MethodPost, path, &commentRequest{Body: data.Comment}, nil); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

// GetRepositories lists the repositories the installation can access
func (c *GitHubClient) GetRepositories(ctx context.Context) ([]models.RepositoryChoice, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	result, _, err := c.client.Apps.ListRepos(ctx, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", toAPIError(err))
	}
	if result == nil || result.Repositories == nil {
		return nil, &MalformedResponseError{Field: "repositories"}
	}

	choices := make([]models.RepositoryChoice, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		if repo.GetFullName() == "" {
			return nil, &MalformedResponseError{Field: "full_name"}
		}
		choices = append(choices, models.RepositoryChoice{
			FullName: repo.GetFullName(),
			Name:     repo.GetName(),
		})
	}

	return choices, nil
}

// ConvertGitHubIssue converts a GitHub issue to a normalized record.
// fallbackDescription is used when the response carries no body.
func ConvertGitHubIssue(issue *github.Issue, repo, fallbackDescription string) (*models.IssueRecord, error) {
	if issue.Number == nil {
		return nil, &MalformedResponseError{Field: "number"}
	}
	if issue.Title == nil {
		return nil, &MalformedResponseError{Field: "title"}
	}

	description := fallbackDescription
	if issue.Body != nil {
		description = issue.GetBody()
	}

	return &models.IssueRecord{
		Key:         issue.GetNumber(),
		Title:       issue.GetTitle(),
		Description: description,
		Repo:        repo,
	}, nil
}

// defaultGraphQLURL derives the GraphQL endpoint from the REST root.
// GitHub Enterprise serves REST under /api/v3/ and GraphQL at /api/graphql.
func defaultGraphQLURL(baseURL *url.URL) string {
	u := *baseURL
	if strings.HasSuffix(u.Path, "/api/v3/") {
		u.Path = strings.TrimSuffix(u.Path, "v3/") + "graphql"
		return u.String()
	}
	u.Path += "graphql"
	return u.String()
}

func issueChoice(number int, title string) models.IssueChoice {
	return models.IssueChoice{Number: number, Label: fmt.Sprintf("#%d %s", number, title)}
}

// cachedTokenSource hands the client's current access token to oauth2.Transport.
// The "token" type makes the header read "Authorization: token <value>".
type cachedTokenSource struct {
	c *GitHubClient
}

func (s cachedTokenSource) Token() (*oauth2.Token, error) {
	tok := s.c.cachedToken()
	if tok == nil {
		return nil, errors.New("no installation access token")
	}
	return &oauth2.Token{
		AccessToken: tok.Token,
		TokenType:   "token",
		Expiry:      tok.ExpiresAt,
	}, nil
}

// hostTransport refuses requests to any host other than the API host so the
// access token never leaves it, including across redirects.
type hostTransport struct {
	host string
	next http.RoundTripper
}

func (t *hostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != t.host {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, fmt.Errorf("refusing to send installation token to %s", req.URL.Host)
	}
	return t.next.RoundTrip(req)
}
