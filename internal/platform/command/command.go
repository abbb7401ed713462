// Package command runs external programs (git, pg_dump, pg_restore) with a
// bounded runtime and a structured result.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
)

// DefaultTimeout applies when neither the command nor the runner sets one.
const DefaultTimeout = 5 * time.Minute

// Command is one program invocation. Args are passed verbatim; nothing goes
// through a shell.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current process environment.
	Env     []string
	Timeout time.Duration
	// Secrets are masked in logs and error messages.
	Secrets []string
}

func (c Command) String() string {
	return c.mask(strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " ")))
}

func (c Command) mask(s string) string {
	for _, secret := range c.Secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "****")
		}
	}
	return s
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError is returned when the program ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, msg)
}

type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

type ExecRunner struct {
	log     *zap.SugaredLogger
	timeout time.Duration
}

func NewRunner(log *zap.SugaredLogger, cfg *config.Config) Runner {
	timeout := cfg.Commands.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{log: log, timeout: timeout}
}

// Run executes cmd. A run that exceeds its timeout returns an apperr timeout
// error; a non-zero exit returns *ExitError alongside the populated Result.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   cmd.mask(stderr.String()),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	log := logctx.FromCtx(ctx, r.log).With("cmd", cmd.String(), "dir", cmd.Dir, "elapsed_ms", res.Duration.Milliseconds())
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warnw("command timed out", "timeout", timeout.String())
		return res, apperr.Timeout(ctx.Err(), "%s did not finish within %s", cmd.String(), timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Warnw("command failed", "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
			return res, &ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		log.Warnw("command could not start", "err", err)
		return res, fmt.Errorf("failed to run %s: %w", cmd.String(), err)
	}
	log.Debugw("command finished")
	return res, nil
}

var Module = fx.Options(
	fx.Provide(NewRunner),
)
