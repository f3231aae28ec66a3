// internal/models/user.go
package models

// User is owned by the identity service; the lifecycle core only reads it to
// resolve applicant/inspector references.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"` // "applicant" or "inspector"
}
