package auth_test

import (
	"testing"

	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampusPolicy_EmailAllowed(t *testing.T) {
	policy := auth.NewCampusPolicy(testAuthConfig())

	tests := []struct {
		name  string
		role  domain.UserRole
		email string
		want  bool
	}{
		{"student roll number", domain.RoleStudent, "22r01a0501@cmrithyderabad.edu.in", true},
		{"student upper-case input", domain.RoleStudent, "22R01A0501@CMRITHYDERABAD.EDU.IN", true},
		{"student with dot rejected", domain.RoleStudent, "asha.rao@cmrithyderabad.edu.in", false},
		{"student on faculty domain", domain.RoleStudent, "22r01a0501@cmritonline.ac.in", false},
		{"student on public mail", domain.RoleStudent, "asha@gmail.com", false},
		{"faculty with dot", domain.RoleFaculty, "k.sharma@cmritonline.ac.in", true},
		{"faculty on student domain", domain.RoleFaculty, "ksharma@cmrithyderabad.edu.in", false},
		{"lookalike domain", domain.RoleFaculty, "ksharma@cmritonlinexac.in", false},
		{"unknown role", domain.UserRole("ADMIN"), "ksharma@cmritonline.ac.in", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.EmailAllowed(tt.role, tt.email))
		})
	}
}

func TestCampusPolicy_PhoneAllowed(t *testing.T) {
	policy := auth.NewCampusPolicy(testAuthConfig())

	assert.True(t, policy.PhoneAllowed("9876543210"))
	assert.True(t, policy.PhoneAllowed("+91 98765-43210"))
	assert.False(t, policy.PhoneAllowed("98765"))
	assert.False(t, policy.PhoneAllowed("98765abcde"))
}

func TestCampusPolicy_EmailRuleMessage(t *testing.T) {
	policy := auth.NewCampusPolicy(testAuthConfig())

	assert.Contains(t, policy.EmailRuleMessage(domain.RoleStudent), "@cmrithyderabad.edu.in")
	assert.Contains(t, policy.EmailRuleMessage(domain.RoleFaculty), "@cmritonline.ac.in")
}

func TestCampusID(t *testing.T) {
	assert.Equal(t, "22R01A0501", auth.CampusID("22r01a0501@cmrithyderabad.edu.in"))
	assert.Equal(t, "K.SHARMA", auth.CampusID(" K.Sharma@cmritonline.ac.in "))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, auth.CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, auth.CheckPassword(hash, "wrong"), auth.ErrPasswordMismatch)
}
