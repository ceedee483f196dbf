package domain

import "time"

// Role is the capability set a caller acts under.
type Role string

const (
	RoleCitizen  Role = "CITIZEN"
	RoleEngineer Role = "ENGINEER"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleEngineer, RoleAdmin:
		return true
	}
	return false
}

// User is a directory entry. Engineers form the assignment pool and admins
// receive role broadcasts.
type User struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Role      Role      `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}
