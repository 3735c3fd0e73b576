// Package github reads repositories from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Priya8975/marketplace/internal/domain"
)

// rateLimitKey is shared by every process calling GitHub with the same token.
const rateLimitKey = "github"

// Limiter throttles outgoing calls across processes.
type Limiter interface {
	Wait(ctx context.Context, key string, limit int) error
}

type Owner struct {
	Login string `json:"login"`
}

// Repo is the subset of a GitHub repository the marketplace keeps.
type Repo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Owner       Owner     `json:"owner"`
	Description *string   `json:"description"`
	Stars       int       `json:"stargazers_count"`
	HTMLURL     string    `json:"html_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    Limiter
	limit      int
	logger     *slog.Logger
}

// NewClient builds a client for baseURL. limit is the number of calls per
// limiter window; zero disables throttling.
func NewClient(baseURL, token string, limiter Limiter, limit int, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		limit:      limit,
		logger:     logger,
	}
}

// GetRepo fetches a repository by numeric id. A repository GitHub does not
// know is a NotFound error; any other failure is Infrastructure.
func (c *Client) GetRepo(ctx context.Context, id domain.GithubRepoID) (*Repo, error) {
	var repo Repo
	if err := c.get(ctx, fmt.Sprintf("/repositories/%d", int64(id)), &repo); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.NotFound(fmt.Errorf("github repo %s does not exist", id))
		}
		return nil, err
	}
	return &repo, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rateLimitKey, c.limit); err != nil {
			return domain.Infrastructure(fmt.Errorf("waiting for github rate limit: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.Internal(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Infrastructure(fmt.Errorf("calling github: %w", err))
	}
	defer resp.Body.Close()

	c.logger.Debug("github request",
		"path", path,
		"status_code", resp.StatusCode,
		"response_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NotFound(fmt.Errorf("github %s: not found", path))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Infrastructure(fmt.Errorf("github %s: status %d: %s", path, resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Infrastructure(fmt.Errorf("decoding github response: %w", err))
	}
	return nil
}
