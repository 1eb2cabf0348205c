package model

import "time"

// Roles recognised by the API. They mirror the `role` enum of the
// `utilisateurs` table. SUPERADMIN manages everything including meters and
// reading corrections; ADMIN manages accounts; AGENT records readings in the
// field; USER is a subscriber who owns meters and can only consult their own
// data.
const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleUser       = "USER"
	RoleAgent      = "AGENT"
)

// ValidRole reports whether s is one of the four recognised roles.
func ValidRole(s string) bool {
	switch s {
	case RoleSuperAdmin, RoleAdmin, RoleUser, RoleAgent:
		return true
	}
	return false
}

// User represents an account record as stored in the `utilisateurs` table.
// Passwords are stored as bcrypt hashes and never serialized; handlers
// expose a trimmed view without the hash.
//
// Fields:
//  ID           – primary key identifier.
//  LastName     – family name (column nom).
//  FirstName    – given name (column prenom).
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password (column mot_de_passe).
//  Role         – one of SUPERADMIN, ADMIN, USER, AGENT.
//  Active       – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`
	LastName     string    `json:"nom"`
	FirstName    string    `json:"prenom"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSummary is the reduced account view embedded in reading and meter
// responses (the agent who recorded a reading, the subscriber who owns a
// meter).
type UserSummary struct {
	ID        uint64 `json:"id"`
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
}
