// Package github is the content-fetch collaborator: it turns an
// owner/repo/target triple into the raw unified diff plus the API's
// metadata object. Retries and client-side rate limiting live here; the
// review pipeline only ever sees a result or a terminal *FetchError.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/diffreview/internal/retry"
	"github.com/diffreview/pkg/models"
)

const (
	defaultBaseURL = "https://api.github.com"

	acceptJSON = "application/vnd.github.v3+json"
	acceptDiff = "application/vnd.github.v3.diff"
)

// FetchError is the terminal failure of a fetch: a non-2xx response or a
// network error that survived the retry budget.
type FetchError struct {
	StatusCode int
	Message    string
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Client fetches PR and commit data from the GitHub REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config
	logger     zerolog.Logger
}

// NewClient creates a client. An empty token is allowed but the
// unauthenticated rate budget is small, so we self-throttle well under it.
func NewClient(token string, logger zerolog.Logger) *Client {
	if token == "" {
		logger.Warn().Msg("no GitHub token provided, API rate limits may apply")
	}
	return &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		retryCfg:   retry.DefaultConfig(),
		logger:     logger,
	}
}

// WithBaseURL overrides the API base URL. Used by tests and GitHub
// Enterprise installs.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// FetchPullRequest returns metadata and diff for a pull request.
func (c *Client) FetchPullRequest(ctx context.Context, owner, repo string, number int) (*models.FetchResult, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)
	return c.fetchBoth(ctx, url)
}

// FetchCommit returns metadata and diff for a single commit.
func (c *Client) FetchCommit(ctx context.Context, owner, repo, sha string) (*models.FetchResult, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.baseURL, owner, repo, sha)
	return c.fetchBoth(ctx, url)
}

// fetchBoth performs the two GETs every target needs: one for the JSON
// metadata, one for the diff representation of the same resource.
func (c *Client) fetchBoth(ctx context.Context, url string) (*models.FetchResult, error) {
	metaBody, err := c.get(ctx, url, acceptJSON)
	if err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{}
	if err := json.Unmarshal(metaBody, &metadata); err != nil {
		return nil, &FetchError{Message: fmt.Sprintf("failed to decode metadata response: %v", err)}
	}

	diffBody, err := c.get(ctx, url, acceptDiff)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("url", url).Int("diff_bytes", len(diffBody)).Msg("fetched target content")

	return &models.FetchResult{Metadata: metadata, Diff: string(diffBody)}, nil
}

// get performs one GET with rate limiting and retry, returning the body.
func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	var body []byte

	err := retry.Do(ctx, c.retryCfg, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", accept)
		if c.token != "" {
			req.Header.Set("Authorization", "token "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &FetchError{StatusCode: resp.StatusCode, Message: truncate(string(data), 512)}
		}

		body = data
		return nil
	})
	if err != nil {
		if fe, ok := err.(*FetchError); ok {
			return nil, fe
		}
		return nil, &FetchError{Message: err.Error()}
	}

	return body, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
