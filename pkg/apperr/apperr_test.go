package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("provision shop/acme: %w", PortExhaustion("no free port in %d-%d", 8301, 8350))

	require.True(t, errors.Is(err, ErrPortExhaustion))
	require.False(t, errors.Is(err, ErrValidation))
	require.Equal(t, KindPortExhaustion, KindOf(err))
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Provisioning(cause, "create role %s", "user_shop_acme").WithStep("database_ready")

	require.ErrorIs(t, err, cause)
	require.Equal(t, "database_ready", StepOf(err))
	require.Contains(t, err.Error(), "provisioning at database_ready: create role user_shop_acme: connection refused")
}

func TestKindOf_PlainError(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
}
