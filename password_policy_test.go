package membership_test

import (
	"testing"

	"github.com/goliatone/go-membership"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordPolicy(t *testing.T) {
	policy := membership.DefaultPasswordPolicy()

	tests := []struct {
		name       string
		password   string
		attributes []string
		weak       bool
		contains   string
	}{
		{name: "strong password", password: "Xk7!rmQ2pL"},
		{name: "too short", password: "aB3$x", weak: true, contains: "at least 8"},
		{name: "numeric only", password: "8734519203", weak: true, contains: "entirely numeric"},
		{name: "common", password: "password123", weak: true, contains: "too common"},
		{name: "common case insensitive", password: "PassWord123", weak: true, contains: "too common"},
		{name: "equals username", password: "carolinemx", attributes: []string{"carolinemx"}, weak: true, contains: "similar"},
		{name: "empty attributes ignored", password: "Xk7!rmQ2pL", attributes: []string{"", "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.password, tt.attributes...)
			if !tt.weak {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, membership.HasTextCode(err, membership.TextCodeWeakPassword))

			fields := membership.ValidationFields(err)
			require.Contains(t, fields, "password")
			assert.Contains(t, fields["password"], tt.contains)
		})
	}
}

func TestPasswordPolicyReportsEveryProblem(t *testing.T) {
	policy := membership.DefaultPasswordPolicy()

	problems := policy.Problems("1234")
	assert.Len(t, problems, 3)
}

func TestPasswordPolicyExtraEntries(t *testing.T) {
	policy := membership.NewPasswordPolicy(10, "carpooling2024")

	assert.True(t, policy.IsCommon("Carpooling2024"))
	assert.Equal(t, 10, policy.MinLength)
	assert.Error(t, policy.Validate("carpooling2024"))
}
