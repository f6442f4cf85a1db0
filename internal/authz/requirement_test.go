package authz_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawnmoon/charon/internal/authz"
)

func TestRequirementSatisfiedBy(t *testing.T) {
	granted := []string{"DOC:VIEW", "DOC:EDIT", "USER:VIEW"}

	cases := []struct {
		name string
		req  authz.Requirement
		want bool
	}{
		{"empty requirement always passes", authz.Requirement{}, true},
		{"nil requirement always passes", nil, true},
		{"and all held", authz.All("DOC:VIEW", "DOC:EDIT"), true},
		{"and one missing", authz.All("DOC:VIEW", "DOC:DELETE"), false},
		{"or one held", authz.Any("DOC:DELETE", "USER:VIEW"), true},
		{"or none held", authz.Any("DOC:DELETE", "USER:DELETE"), false},
		{"single code and", authz.All("DOC:EDIT"), true},
		{"clauses combine with and", authz.All("DOC:VIEW").AndAny("USER:VIEW", "USER:EDIT"), true},
		{"second clause fails whole requirement", authz.All("DOC:VIEW").AndAll("USER:DELETE"), false},
		{"first clause fails whole requirement", authz.Any("ROLE:VIEW").AndAll("DOC:VIEW"), false},
		{"three clauses", authz.All("DOC:VIEW").AndAny("DOC:EDIT", "DOC:DELETE").AndAll("USER:VIEW"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.req.SatisfiedBy(granted))
		})
	}
}

func TestRequirementAgainstNoGrants(t *testing.T) {
	require.True(t, authz.Requirement{}.SatisfiedBy(nil))
	require.False(t, authz.All("DOC:VIEW").SatisfiedBy(nil))
	require.False(t, authz.Any("DOC:VIEW").SatisfiedBy(nil))
}
