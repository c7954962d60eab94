package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPrincipalAttachesScope(t *testing.T) {
	p, err := NewPrincipal(RoleAccountant, "u1", "B1")
	require.NoError(t, err)
	require.Equal(t, "B1", p.Branch.BranchID)
	require.Nil(t, p.Staff)

	p, err = NewPrincipal(RoleHR, "u2", "")
	require.NoError(t, err)
	require.Nil(t, p.Branch)

	p, err = NewPrincipal(RoleEmployee, "u3", "E1")
	require.NoError(t, err)
	require.Equal(t, "E1", p.Staff.EmployeeID)

	_, err = NewPrincipal(RoleEmployee, "u3", "")
	require.ErrorIs(t, err, ErrValidation)
	_, err = NewPrincipal(RoleClient, "u4", "")
	require.ErrorIs(t, err, ErrValidation)
	_, err = NewPrincipal("auditor", "u5", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestPrincipalBranchVisibility(t *testing.T) {
	mustPrincipal := func(role Role, scope string) Principal {
		p, err := NewPrincipal(role, "u", scope)
		require.NoError(t, err)
		return p
	}
	cases := []struct {
		name        string
		p           Principal
		seesB1      bool
		seesB2      bool
		companyWide bool
	}{
		{"admin", mustPrincipal(RoleAdmin, ""), true, true, true},
		{"manager of B1", mustPrincipal(RoleBranchManager, "B1"), true, false, false},
		{"accountant of B2", mustPrincipal(RoleAccountant, "B2"), false, true, false},
		{"unscoped hr", mustPrincipal(RoleHR, ""), true, true, true},
		{"hr of B1", mustPrincipal(RoleHR, "B1"), true, false, false},
		{"employee", mustPrincipal(RoleEmployee, "E1"), false, false, false},
		{"client", mustPrincipal(RoleClient, "C1"), false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.seesB1, tc.p.CanSeeBranch("B1"))
			require.Equal(t, tc.seesB2, tc.p.CanSeeBranch("B2"))
			require.Equal(t, tc.companyWide, tc.p.CompanyWide())
		})
	}
}

func TestPrincipalCan(t *testing.T) {
	admin := Principal{Role: RoleAdmin}
	require.True(t, admin.Can(RoleHR))
	require.True(t, admin.Can())

	hr := Principal{Role: RoleHR}
	require.True(t, hr.Can(RoleAccountant, RoleHR))
	require.False(t, hr.Can(RoleAccountant))
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithPrincipal(context.Background(), Principal{Role: RoleClient, UserID: "c"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "c", p.UserID)
}
