package auth

// Roles understood by the core. Tokens are minted by the external auth
// service; the core only reads them.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Actor is the identity behind a mutating operation. Every transition
// takes one explicitly; the core never reads an ambient current user.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsStaff reports whether the actor may perform staff-gated transitions.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// System is the actor recorded for automated jobs.
var System = Actor{ID: "system", Role: RoleStaff}
