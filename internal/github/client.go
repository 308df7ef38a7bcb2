// Package github fetches repository metadata from the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/model"
)

// Client wraps the go-github client.
type Client struct {
	client *gh.Client
}

// NewClient returns a client authenticated with token. An empty token makes
// anonymous requests, which GitHub rate limits to 60 per hour.
func NewClient(token string) *Client {
	var tc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc = oauth2.NewClient(context.Background(), ts)
	}
	return &Client{client: gh.NewClient(tc)}
}

// NewClientWithBaseURL points the client at another API root, such as a
// GitHub Enterprise host or a test server. baseURL must end in a slash.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("github: parsing base URL: %w", err)
	}
	c := NewClient(token)
	c.client.BaseURL = u
	return c, nil
}

// FetchRepository returns the metadata of owner/name. The returned
// Repository has no ID, UserID or ProjectID; the caller assigns those.
// A repository GitHub does not know yields apperror.ErrNotFound.
func (c *Client) FetchRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		var respErr *gh.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
			return nil, apperror.NotFound("github repository", owner+"/"+name)
		}
		return nil, fmt.Errorf("github: getting repository %s/%s: %w", owner, name, err)
	}

	return &model.Repository{
		ExternalID: repo.GetID(),
		Name:       repo.GetName(),
		Owner:      repo.GetOwner().GetLogin(),
		FullName:   repo.GetFullName(),
		URL:        repo.GetHTMLURL(),
		Stars:      repo.GetStargazersCount(),
		Forks:      repo.GetForksCount(),
	}, nil
}
