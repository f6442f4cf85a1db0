package shared_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawnmoon/charon/internal/shared"
)

func TestIsValidPermCode(t *testing.T) {
	valid := []string{"USER:VIEW", "USER:FORCE_LOGOUT", "A:B", "AUDIT_LOG:EXPORT"}
	for _, code := range valid {
		require.True(t, shared.IsValidPermCode(code), code)
	}

	invalid := []string{"", "USER", "USER:", ":VIEW", "user:view", "USER:VIEW:ALL", "USER VIEW", "USER-1:VIEW"}
	for _, code := range invalid {
		require.False(t, shared.IsValidPermCode(code), code)
	}
}

func TestJoinAndSplitPermCode(t *testing.T) {
	code := shared.JoinPermCode("report", "export")
	require.Equal(t, "REPORT:EXPORT", code)

	module, action, err := shared.SplitPermCode(code)
	require.NoError(t, err)
	require.Equal(t, "REPORT", module)
	require.Equal(t, "EXPORT", action)

	_, _, err = shared.SplitPermCode("not a code")
	require.Error(t, err)
}
