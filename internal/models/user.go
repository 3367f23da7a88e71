package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	RefreshToken string    `json:"-"` // Latest issued refresh token, empty when logged out
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns a copy of the user with credentials stripped.
func (u User) Public() User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	return u
}
