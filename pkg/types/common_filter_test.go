package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommonFilter_Validate(t *testing.T) {
	allowed := []string{"plan", "status"}

	require.NoError(t, (&CommonFilter{Field: "plan", Operator: CommonFilterOperatorEq, Values: []any{"free"}}).Validate(allowed))
	require.Error(t, (&CommonFilter{Field: "db_password", Operator: CommonFilterOperatorEq, Values: []any{"x"}}).Validate(allowed))
	require.Error(t, (&CommonFilter{Field: "plan", Operator: CommonFilterOperatorEq}).Validate(allowed))
}
