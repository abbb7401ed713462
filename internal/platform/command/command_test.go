package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/config"
)

func newTestRunner() Runner {
	return NewRunner(zap.NewNop().Sugar(), &config.Config{})
}

func TestRun_CapturesOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644))

	res, err := newTestRunner().Run(context.Background(), Command{Name: "ls", Dir: dir})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Stdout, "hello.txt")
}

func TestRun_PassesEnv(t *testing.T) {
	res, err := newTestRunner().Run(context.Background(), Command{
		Name: "sh", Args: []string{"-c", "printf %s \"$TM_VALUE\""},
		Env: []string{"TM_VALUE=42"},
	})
	require.NoError(t, err)
	require.Equal(t, "42", res.Stdout)
}

func TestRun_NonZeroExit(t *testing.T) {
	res, err := newTestRunner().Run(context.Background(), Command{
		Name: "sh", Args: []string{"-c", "echo boom s3cret >&2; exit 3"},
		Secrets: []string{"s3cret"},
	})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.ExitCode)
	require.Equal(t, 3, res.ExitCode)
	require.Contains(t, err.Error(), "boom ****")
	require.NotContains(t, err.Error(), "s3cret")
}

func TestRun_Timeout(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), Command{
		Name: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond,
	})
	require.ErrorIs(t, err, apperr.ErrTimeout)
}

func TestRun_MissingBinary(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), Command{Name: "definitely-not-a-binary-xyz"})
	require.Error(t, err)
	require.NotErrorIs(t, err, apperr.ErrTimeout)
}

func TestCommand_StringMasksSecrets(t *testing.T) {
	c := Command{Name: "git", Args: []string{"push", "https://tok123@example.com/r.git"}, Secrets: []string{"tok123"}}
	require.Equal(t, "git push https://****@example.com/r.git", c.String())
}
