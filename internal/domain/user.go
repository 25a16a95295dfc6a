package domain

import "time"

// User is an account that can log in and act on tickets.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
