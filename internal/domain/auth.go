package domain

// Caller is the authenticated identity supplied per request by the
// session gateway. The engine never reads ambient session state.
type Caller struct {
	ID    string
	Role  Role
	Email string
}

// IsAdmin reports whether the caller holds the ADMIN capability.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Authenticated reports whether the caller carries a usable identity.
func (c Caller) Authenticated() bool {
	return c.ID != "" && c.Role.Valid()
}
