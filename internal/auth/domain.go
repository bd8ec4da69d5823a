package auth

import "time"

// User represents an account reachable through either login path. Email is
// the reconciliation key between the two: a Google login whose email matches
// an existing local account attaches to that record instead of creating a
// second one.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string // empty for accounts created purely via Google login
	GoogleID     string // empty for local-only accounts
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanAuthenticate reports whether the record holds at least one credential.
// A row with neither is unreachable through any login path and indicates a
// data-integrity problem.
func (u *User) CanAuthenticate() bool {
	return u.PasswordHash != "" || u.GoogleID != ""
}
