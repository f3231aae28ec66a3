// internal/models/application.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the licence category applied for.
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
	CategoryC Category = "C"
	CategoryD Category = "D"
	CategoryE Category = "E"
)

var categories = map[Category]bool{
	CategoryA: true, CategoryB: true, CategoryC: true, CategoryD: true, CategoryE: true,
}

func (c Category) Valid() bool {
	return categories[c]
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a category, case-insensitively.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("allowed categories: A, B, C, D, E")
	}
	return c, nil
}

// Application is the central entity of the lifecycle coordinator. Immutable
// after creation except through status transitions.
type Application struct {
	ID                   string     `json:"id"`
	ApplicantID          string     `json:"applicantId"`
	Iin                  string     `json:"iin"`
	FullName             string     `json:"fullName"`
	Category             Category   `json:"category"`
	Status               Status     `json:"status"`
	InspectorID          *string    `json:"inspectorId,omitempty"`
	RejectionReason      *string    `json:"rejectionReason,omitempty"`
	AuthorityCheckPassed *bool      `json:"authorityCheckPassed,omitempty"`
	MedicalCheckPassed   *bool      `json:"medicalCheckPassed,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            *time.Time `json:"updatedAt,omitempty"`

	// Resolved relations, populated only by detail reads.
	Applicant   *User        `json:"applicant,omitempty"`
	Inspector   *User        `json:"inspector,omitempty"`
	LicenceCard *LicenceCard `json:"licenceCard,omitempty"`
}

// LicenceCard is the issued credential, created exactly once at the printed
// transition and never mutated afterward.
type LicenceCard struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	CardNumber    string    `json:"cardNumber"`
	Category      Category  `json:"category"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// PagedResult is the shape of paginated listings.
type PagedResult struct {
	Items      []*Application `json:"items"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
}
