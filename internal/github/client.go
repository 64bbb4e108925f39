// Package github wraps the code-hosting API used by the repository processor:
// repository creation, a by-name existence check, README upload, and issue
// creation. The access token is resolved through the secret provider on first
// use, not at startup, and is invalidated when the API rejects it.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	gogithub "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/haasonsaas/scribe/internal/errkind"
	"github.com/haasonsaas/scribe/internal/observability"
	"github.com/haasonsaas/scribe/internal/secrets"
)

// ErrNameExists reports a repository name collision.
var ErrNameExists = errors.New("github: repository name already exists")

// ErrNotFound reports a missing repository on the by-name check.
var ErrNotFound = errors.New("github: repository not found")

// Repo is the subset of repository metadata the processor records.
type Repo struct {
	Name  string
	Owner string
	URL   string
}

// Client is the operation set the repository processor needs.
type Client interface {
	// CreateRepository creates a repository under the authenticated user.
	// Returns ErrNameExists on a name collision.
	CreateRepository(ctx context.Context, name, description string, private bool) (Repo, error)

	// GetRepository looks up a repository by name under the authenticated
	// user. Returns ErrNotFound when absent.
	GetRepository(ctx context.Context, name string) (Repo, error)

	// CreateFile commits a new file to the repository's default branch.
	CreateFile(ctx context.Context, repo, path, message string, content []byte) error

	// CreateIssue opens an issue on the repository.
	CreateIssue(ctx context.Context, repo, title, body string) error
}

type invalidator interface {
	Invalidate(name string)
}

// RESTClient implements Client against the GitHub REST API.
type RESTClient struct {
	tokens    secrets.Provider
	tokenName string
	logger    *observability.Logger

	// baseURL overrides the API endpoint; tests point it at a local server.
	baseURL *url.URL

	mu    sync.Mutex
	gh    *gogithub.Client
	owner string
}

// NewRESTClient creates a lazily-authenticating client. The token is fetched
// from the secret provider at first call.
func NewRESTClient(tokens secrets.Provider, tokenName string, logger *observability.Logger) *RESTClient {
	return &RESTClient{tokens: tokens, tokenName: tokenName, logger: logger}
}

// ensure resolves the token and authenticates on first use. The mutex is not
// held across token resolution or the authentication probe: mapError takes it
// again through reset on a rejected token. Concurrent first calls may both
// probe; the first writer wins.
func (c *RESTClient) ensure(ctx context.Context) (*gogithub.Client, string, error) {
	c.mu.Lock()
	if c.gh != nil {
		gh, owner := c.gh, c.owner
		c.mu.Unlock()
		return gh, owner, nil
	}
	c.mu.Unlock()

	token, err := c.tokens.Fetch(ctx, c.tokenName)
	if err != nil {
		return nil, "", err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := gogithub.NewClient(oauth2.NewClient(ctx, ts))
	if c.baseURL != nil {
		gh.BaseURL = c.baseURL
	}

	user, _, err := gh.Users.Get(ctx, "")
	if err != nil {
		return nil, "", c.mapError(err, "authenticate")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gh == nil {
		c.gh = gh
		c.owner = user.GetLogin()
	}
	return c.gh, c.owner, nil
}

// reset drops the cached client and invalidates the token so the next call
// re-resolves both.
func (c *RESTClient) reset() {
	c.mu.Lock()
	c.gh = nil
	c.owner = ""
	c.mu.Unlock()
	if inv, ok := c.tokens.(invalidator); ok {
		inv.Invalidate(c.tokenName)
	}
}

func (c *RESTClient) CreateRepository(ctx context.Context, name, description string, private bool) (Repo, error) {
	gh, owner, err := c.ensure(ctx)
	if err != nil {
		return Repo{}, err
	}

	created, _, err := gh.Repositories.Create(ctx, "", &gogithub.Repository{
		Name:        gogithub.String(name),
		Description: gogithub.String(description),
		Private:     gogithub.Bool(private),
	})
	if err != nil {
		if isNameCollision(err) {
			return Repo{}, ErrNameExists
		}
		return Repo{}, c.mapError(err, "create repository")
	}
	return Repo{
		Name:  created.GetName(),
		Owner: owner,
		URL:   created.GetHTMLURL(),
	}, nil
}

func (c *RESTClient) GetRepository(ctx context.Context, name string) (Repo, error) {
	gh, owner, err := c.ensure(ctx)
	if err != nil {
		return Repo{}, err
	}

	repo, resp, err := gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return Repo{}, ErrNotFound
		}
		return Repo{}, c.mapError(err, "get repository")
	}
	return Repo{
		Name:  repo.GetName(),
		Owner: owner,
		URL:   repo.GetHTMLURL(),
	}, nil
}

func (c *RESTClient) CreateFile(ctx context.Context, repo, path, message string, content []byte) error {
	gh, owner, err := c.ensure(ctx)
	if err != nil {
		return err
	}

	_, _, err = gh.Repositories.CreateFile(ctx, owner, repo, path, &gogithub.RepositoryContentFileOptions{
		Message: gogithub.String(message),
		Content: content,
	})
	if err != nil {
		return c.mapError(err, "create file")
	}
	return nil
}

func (c *RESTClient) CreateIssue(ctx context.Context, repo, title, body string) error {
	gh, owner, err := c.ensure(ctx)
	if err != nil {
		return err
	}

	_, _, err = gh.Issues.Create(ctx, owner, repo, &gogithub.IssueRequest{
		Title: gogithub.String(title),
		Body:  gogithub.String(body),
	})
	if err != nil {
		return c.mapError(err, "create issue")
	}
	return nil
}

// mapError folds API failures into the error taxonomy. An auth rejection also
// invalidates the cached token.
func (c *RESTClient) mapError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errkind.Wrap(errkind.Timeout, fmt.Errorf("github %s: %w", op, err))
	}

	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case 401, 403:
			c.reset()
			return errkind.Wrap(errkind.Auth, fmt.Errorf("github %s: %w", op, err))
		}
	}
	return errkind.Wrap(errkind.External, fmt.Errorf("github %s: %w", op, err))
}

func isNameCollision(err error) bool {
	var ghErr *gogithub.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil || ghErr.Response.StatusCode != 422 {
		return false
	}
	for _, e := range ghErr.Errors {
		if strings.Contains(strings.ToLower(e.Message), "already exists") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(ghErr.Message), "already exists")
}
