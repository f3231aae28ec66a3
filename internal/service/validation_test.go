// internal/service/validation_test.go
package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// iinFor builds a syntactically valid identity code embedding the birth date.
func iinFor(birth time.Time) string {
	var centuryDigit int
	switch {
	case birth.Year() < 1900:
		centuryDigit = 1
	case birth.Year() < 2000:
		centuryDigit = 3
	default:
		centuryDigit = 5
	}
	return fmt.Sprintf("%02d%02d%02d%d12345",
		birth.Year()%100, int(birth.Month()), birth.Day(), centuryDigit)
}

func validCreateRequest() CreateApplicationRequest {
	return CreateApplicationRequest{
		ApplicantID: "user-001",
		Iin:         iinFor(time.Now().UTC().AddDate(-30, 0, 0)),
		FullName:    "Aidar Bekov",
		Category:    "B",
	}
}

func TestCreateApplicationRequest_Validate_Success(t *testing.T) {
	req := validCreateRequest()
	assert.NoError(t, req.Validate())
}

func TestCreateApplicationRequest_Validate_Iin(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		iin     string
		wantErr string
	}{
		{"too short", "12345678901", "12 digits"},
		{"too long", "1234567890123", "12 digits"},
		{"non numeric", "12345678901a", "12 digits"},
		{"century digit zero", "9001010" + "12345", "century digit"},
		{"century digit seven", "9001017" + "12345", "century digit"},
		{"month thirteen", "901301" + "312345", "birth month"},
		{"month zero", "900001" + "312345", "birth month"},
		{"day zero", "900100" + "312345", "birth day"},
		{"day thirty two", "900132" + "312345", "birth day"},
		{"february thirtieth", "000230" + "512345", "calendar date"},
		{"day thirty one in june", "900631" + "312345", "calendar date"},
		{"february twenty ninth in a non-leap year", "990229" + "312345", "calendar date"},
		{"seventeen years old", iinFor(now.AddDate(-17, 0, 0)), "at least 18"},
		{"eighteen tomorrow", iinFor(now.AddDate(-18, 0, 1)), "at least 18"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			req.Iin = tt.iin
			err := req.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateApplicationRequest_Validate_LeapDayBirthDate(t *testing.T) {
	req := validCreateRequest()
	req.Iin = "000229" + "512345" // 2000-02-29
	assert.NoError(t, req.Validate())
}

func TestCreateApplicationRequest_Validate_EighteenthBirthdayToday(t *testing.T) {
	req := validCreateRequest()
	req.Iin = iinFor(time.Now().UTC().AddDate(-18, 0, 0))
	assert.NoError(t, req.Validate())
}

func TestCreateApplicationRequest_Validate_Fields(t *testing.T) {
	req := validCreateRequest()
	req.FullName = ""
	assert.Error(t, req.Validate())

	req = validCreateRequest()
	req.Category = "Z"
	assert.Error(t, req.Validate())

	req = validCreateRequest()
	req.ApplicantID = ""
	assert.Error(t, req.Validate())

	// Category parsing is case-insensitive.
	req = validCreateRequest()
	req.Category = "c"
	assert.NoError(t, req.Validate())
}

func TestReviewRequest_Validate(t *testing.T) {
	reason := "incomplete driving record"
	empty := ""

	assert.NoError(t, ReviewRequest{Approved: true}.Validate())
	assert.NoError(t, ReviewRequest{Approved: false, RejectionReason: &reason}.Validate())

	assert.Error(t, ReviewRequest{Approved: false}.Validate())
	assert.Error(t, ReviewRequest{Approved: false, RejectionReason: &empty}.Validate())
	assert.Error(t, ReviewRequest{Approved: true, RejectionReason: &reason}.Validate())
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 18, age(time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 17, age(time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 18, age(time.Date(2007, 12, 31, 0, 0, 0, 0, time.UTC), now))
}
