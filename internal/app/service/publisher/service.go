// Package publisher turns a directory into a git repository and pushes it to
// a private remote on the code-hosting service.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/internal/platform/command"
	"github.com/fatflowers/tenantmaster/internal/platform/hosting"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
	"github.com/fatflowers/tenantmaster/pkg/manifest"
)

// RepoHost creates remote repositories.
type RepoHost interface {
	Enabled() bool
	Token() string
	CreateRepo(ctx context.Context, req hosting.CreateRepoRequest) (*hosting.Repo, error)
}

type Request struct {
	Dir           string
	RepoName      string
	Description   string
	CommitMessage string
}

type Result struct {
	RepoURL string `json:"repo_url"`
	// Skipped is set when no hosting token is configured; the local
	// repository is still committed.
	Skipped bool `json:"skipped"`
	Existed bool `json:"existed"`
}

type Service struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	runner command.Runner
	host   RepoHost
	fs     afero.Fs
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, runner command.Runner, host *hosting.Client, fs afero.Fs) *Service {
	return New(cfg, log, runner, host, fs)
}

// New is NewService for callers holding any RepoHost.
func New(cfg *config.Config, log *zap.SugaredLogger, runner command.Runner, host RepoHost, fs afero.Fs) *Service {
	return &Service{cfg: cfg, log: log, runner: runner, host: host, fs: fs}
}

func (s *Service) git(ctx context.Context, dir string, args ...string) error {
	cmd := command.Command{Name: s.cfg.Git.Binary, Args: args, Dir: dir, Secrets: []string{s.host.Token()}}
	if cmd.Name == "" {
		cmd.Name = "git"
	}
	_, err := s.runner.Run(ctx, cmd)
	return err
}

func (s *Service) branch() string {
	if s.cfg.Git.Branch == "" {
		return "main"
	}
	return s.cfg.Git.Branch
}

// Commit initializes the repository in dir when needed and commits
// everything in it.
func (s *Service) Commit(ctx context.Context, dir, message string) error {
	if ok, _ := afero.DirExists(s.fs, dir); !ok {
		return apperr.Repository(nil, "directory %s does not exist", dir)
	}
	gitignore := filepath.Join(dir, ".gitignore")
	if ok, _ := afero.Exists(s.fs, gitignore); !ok {
		if err := afero.WriteFile(s.fs, gitignore, []byte(manifest.Gitignore), 0o644); err != nil {
			return apperr.Repository(err, "failed to write .gitignore")
		}
	}
	if message == "" {
		message = "Initial commit"
	}
	steps := [][]string{
		{"init"},
		{"config", "user.name", s.cfg.Git.AuthorName},
		{"config", "user.email", s.cfg.Git.AuthorEmail},
		{"add", "."},
		{"commit", "--allow-empty", "-m", message},
		{"branch", "-M", s.branch()},
	}
	for _, args := range steps {
		if err := s.git(ctx, dir, args...); err != nil {
			return wrap(err, "git %s failed", args[0])
		}
	}
	return nil
}

// Publish commits dir, creates (or reuses) the private remote and pushes the
// branch. Without a hosting token the remote part is skipped with a warning.
func (s *Service) Publish(ctx context.Context, req *Request) (*Result, error) {
	log := logctx.FromCtx(ctx, s.log).With("dir", req.Dir, "repo", req.RepoName)
	if err := s.Commit(ctx, req.Dir, req.CommitMessage); err != nil {
		return nil, err
	}
	log.Infow("local repository committed")

	if !s.host.Enabled() {
		log.Warnw("hosting token not configured, skipping remote repository")
		return &Result{Skipped: true}, nil
	}
	repo, err := s.host.CreateRepo(ctx, hosting.CreateRepoRequest{
		Name:        req.RepoName,
		Description: req.Description,
		Private:     true,
		AutoInit:    false,
	})
	if err != nil {
		return nil, wrap(err, "failed to create remote repository %s", req.RepoName)
	}

	if err := s.git(ctx, req.Dir, "remote", "add", "origin", repo.CloneURL); err != nil {
		if err := s.git(ctx, req.Dir, "remote", "set-url", "origin", repo.CloneURL); err != nil {
			return nil, wrap(err, "failed to configure remote")
		}
	}
	if err := s.git(ctx, req.Dir, "push", "--force", pushURL(repo.CloneURL, s.host.Token()), "HEAD:"+s.branch()); err != nil {
		return nil, wrap(err, "push to %s failed", repo.CloneURL)
	}
	log.Infow("repository pushed", "url", repo.CloneURL, "existed", repo.Existed)
	return &Result{RepoURL: repo.CloneURL, Existed: repo.Existed}, nil
}

// pushURL embeds the token as basic auth for https remotes.
func pushURL(remote, token string) string {
	u, err := url.Parse(remote)
	if err != nil || u.Scheme != "https" || token == "" {
		return remote
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String()
}

func wrap(err error, format string, args ...any) error {
	if errors.Is(err, apperr.ErrTimeout) || errors.Is(err, apperr.ErrRepository) {
		return err
	}
	return apperr.Repository(err, "%s", fmt.Sprintf(format, args...))
}

var Module = fx.Options(
	fx.Provide(NewService),
)
