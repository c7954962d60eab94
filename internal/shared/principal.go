package shared

import "context"

// Role tags the Principal variant.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleBranchManager Role = "branch_manager"
	RoleAccountant    Role = "accountant"
	RoleHR            Role = "hr"
	RoleEmployee      Role = "employee"
	RoleClient        Role = "client"
)

// Principal is the authenticated caller. Only the variant payload matching Role is set.
type Principal struct {
	Role   Role
	UserID string
	Branch *BranchScope
	Staff  *StaffScope
	Client *ClientScope
}

// BranchScope carries branch-bound roles (branch manager, accountant, HR).
type BranchScope struct {
	BranchID string
}

// StaffScope carries the employee record behind an Employee principal.
type StaffScope struct {
	EmployeeID string
}

// ClientScope carries the client record behind a Client principal.
type ClientScope struct {
	ClientID string
}

// NewPrincipal builds a Principal, attaching only the scope the role needs.
func NewPrincipal(role Role, userID, scopeID string) (Principal, error) {
	p := Principal{Role: role, UserID: userID}
	switch role {
	case RoleAdmin:
	case RoleBranchManager, RoleAccountant, RoleHR:
		if scopeID != "" {
			p.Branch = &BranchScope{BranchID: scopeID}
		}
	case RoleEmployee:
		if scopeID == "" {
			return Principal{}, NewValidationError("employeeId", "required for employee principals")
		}
		p.Staff = &StaffScope{EmployeeID: scopeID}
	case RoleClient:
		if scopeID == "" {
			return Principal{}, NewValidationError("clientId", "required for client principals")
		}
		p.Client = &ClientScope{ClientID: scopeID}
	default:
		return Principal{}, NewValidationError("role", "unknown role %q", role)
	}
	return p, nil
}

// Can reports whether the principal holds one of the roles.
func (p Principal) Can(roles ...Role) bool {
	if p.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// CanSeeBranch reports whether branch-scoped data is visible to the principal.
func (p Principal) CanSeeBranch(branchID string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleBranchManager, RoleAccountant, RoleHR:
		return p.Branch == nil || p.Branch.BranchID == branchID
	default:
		return false
	}
}

// CompanyWide reports whether the principal acts on every branch at once: admins,
// and branch roles issued without a branch scope.
func (p Principal) CompanyWide() bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleBranchManager, RoleAccountant, RoleHR:
		return p.Branch == nil
	default:
		return false
	}
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
