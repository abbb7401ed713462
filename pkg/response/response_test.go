package response

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/tenantmaster/pkg/apperr"
)

func TestCodeOf(t *testing.T) {
	require.Equal(t, APIResponseCodeOK, CodeOf(nil))
	require.Equal(t, APIResponseCodeBadRequest, CodeOf(apperr.Validation("bad subdomain")))
	require.Equal(t, APIResponseCodePortExhaustion, CodeOf(apperr.PortExhaustion("range full")))
	require.Equal(t, APIResponseCodeRepository, CodeOf(fmt.Errorf("wrapped: %w", apperr.Repository(errors.New("403"), "create"))))
	require.Equal(t, APIResponseCodeError, CodeOf(errors.New("boom")))
}

func TestErr_KnownErrors(t *testing.T) {
	notFound := errors.New("workspace not found")
	res := Err(fmt.Errorf("get: %w", notFound), map[error]APIResponseCode{notFound: APIResponseCodeNotFound})
	require.Equal(t, APIResponseCodeNotFound, res.Code)
	require.Equal(t, "not found", res.Message)
	require.Equal(t, "get: workspace not found", res.Data)

	res = Err(apperr.Timeout(errors.New("deadline"), "pg_dump"), nil)
	require.Equal(t, APIResponseCodeTimeout, res.Code)
}
