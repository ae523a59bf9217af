package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           uint       `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"pw"` // Never expose in JSON
	Role         Role       `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// Role is the fixed category assigned to an authenticated user. It is the
// sole input to permission derivation and never changes within a session.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleAuditor  Role = "auditor"
	RoleViewer   Role = "viewer"
)

// roleLevels assigns a strictly ordered privilege level to every role.
// Higher level means more privileged. Minimum-role checks depend on this
// table being total over the role set.
var roleLevels = map[Role]int{
	RoleAdmin:    100,
	RoleOperator: 75,
	RoleAuditor:  50,
	RoleViewer:   25,
}

// Roles lists the closed set of known roles, most privileged first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleOperator, RoleAuditor, RoleViewer}
}

// Level returns the privilege level for the role, or 0 for an unknown role.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
