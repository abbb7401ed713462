// Package hosting talks to a GitHub compatible code-hosting API.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
)

// ErrNoToken means repository creation is disabled.
var ErrNoToken = errors.New("hosting token is not configured")

type CreateRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

type Repo struct {
	Name     string `json:"name"`
	CloneURL string `json:"clone_url"`
	// Existed is true when the API reported the name as taken and the URL was
	// derived instead of returned.
	Existed bool `json:"-"`
}

type Client struct {
	log    *zap.SugaredLogger
	http   *http.Client
	apiURL string
	webURL string
	owner  string
	token  string
}

func NewClient(log *zap.SugaredLogger, cfg *config.Config) *Client {
	timeout := cfg.Hosting.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		log:    log,
		http:   &http.Client{Timeout: timeout},
		apiURL: strings.TrimRight(cfg.Hosting.APIURL, "/"),
		webURL: strings.TrimRight(cfg.Hosting.WebURL, "/"),
		owner:  cfg.Hosting.Owner,
		token:  cfg.Hosting.Token,
	}
}

// Enabled reports whether a token is configured.
func (c *Client) Enabled() bool {
	return c.token != ""
}

// RepoURL is the clone URL a repository named name has under the owner.
func (c *Client) RepoURL(name string) string {
	return fmt.Sprintf("%s/%s/%s.git", c.webURL, c.owner, name)
}

// Token is embedded into push URLs by the publisher.
func (c *Client) Token() string {
	return c.token
}

// CreateRepo creates a repository for the authenticated user. A 422 answer
// (name already taken) is treated as success and the deterministic URL is
// returned, so reruns converge.
func (c *Client) CreateRepo(ctx context.Context, req CreateRepoRequest) (*Repo, error) {
	if !c.Enabled() {
		return nil, ErrNoToken
	}
	log := logctx.FromCtx(ctx, c.log).With("repo", req.Name)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode repo request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/user/repos", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Repository(err, "failed to build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept", "application/vnd.github+json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, apperr.Timeout(err, "hosting API did not answer")
		}
		return nil, apperr.Repository(err, "hosting API request failed")
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusCreated:
		var repo Repo
		if err := json.Unmarshal(raw, &repo); err != nil {
			return nil, apperr.Repository(err, "failed to decode hosting response")
		}
		if repo.CloneURL == "" {
			repo.CloneURL = c.RepoURL(req.Name)
		}
		log.Infow("repository created", "url", repo.CloneURL)
		return &repo, nil
	case http.StatusUnprocessableEntity:
		url := c.RepoURL(req.Name)
		log.Infow("repository already exists", "url", url)
		return &Repo{Name: req.Name, CloneURL: url, Existed: true}, nil
	default:
		log.Warnw("repository creation rejected", "status", resp.StatusCode, "body", string(raw))
		return nil, apperr.Repository(nil, "hosting API answered %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
