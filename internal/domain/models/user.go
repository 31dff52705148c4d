package models

import "time"

// Role constants for workflow participants
const (
	RoleAdmin      = "ADMIN"
	RoleUploader   = "UPLOADER"
	RolePreparator = "PREPARATOR"
	RoleReviewer   = "REVIEWER"
)

// User is a locally persisted participant account.
// The external user directory is the source for names and roles;
// local rows exist so login works without the directory being reachable.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DirectoryUser is an identity resolved from the external user directory
type DirectoryUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
