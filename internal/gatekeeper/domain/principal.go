package domain

import "slices"

// WildcardPermission grants every permission.
const WildcardPermission = "*"

const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// Principal is the identity a request runs as.
type Principal struct {
	ID          string   `json:"id"`
	Account     string   `json:"account,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Active      bool     `json:"active"`
	IsService   bool     `json:"isService"`
}

// HasPermission reports whether p holds perm directly or through "*".
func (p Principal) HasPermission(perm string) bool {
	return slices.Contains(p.Permissions, WildcardPermission) || slices.Contains(p.Permissions, perm)
}

// ServicePrincipal is the synthetic identity for trusted internal callers.
func ServicePrincipal() Principal {
	return Principal{
		ID:          "service",
		Role:        RoleService,
		Permissions: []string{WildcardPermission},
		Active:      true,
		IsService:   true,
	}
}

// Credential is what the credential store keeps for password login.
type Credential struct {
	PrincipalID  string
	Account      string
	PasswordHash string // argon2id PHC string
}
