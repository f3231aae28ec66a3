// internal/service/validation.go
package service

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"licence-service/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const minApplicantAge = 18

var iinPattern = regexp.MustCompile(`^\d{12}$`)

// CreateApplicationRequest is the submission payload.
type CreateApplicationRequest struct {
	ApplicantID string `json:"applicantId"`
	Iin         string `json:"iin"`
	FullName    string `json:"fullName"`
	Category    string `json:"category"`
}

func (r CreateApplicationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ApplicantID, validation.Required),
		validation.Field(&r.Iin,
			validation.Required,
			validation.Match(iinPattern).Error("IIN must be exactly 12 digits"),
			validation.By(checkIinBirthDate),
		),
		validation.Field(&r.FullName, validation.Required, validation.Length(3, 200)),
		validation.Field(&r.Category, validation.Required, validation.By(checkCategory)),
	)
}

// ReviewRequest is the inspector's decision payload. A rejection must carry a
// reason; an approval must not.
type ReviewRequest struct {
	Approved        bool    `json:"approved"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
}

func (r ReviewRequest) Validate() error {
	if r.Approved {
		if r.RejectionReason != nil && *r.RejectionReason != "" {
			return fmt.Errorf("rejection reason is not allowed on approval")
		}
		return nil
	}
	if r.RejectionReason == nil || *r.RejectionReason == "" {
		return fmt.Errorf("rejection reason is required on rejection")
	}
	if len(*r.RejectionReason) > 1000 {
		return fmt.Errorf("rejection reason must be at most 1000 characters")
	}
	return nil
}

func checkCategory(value interface{}) error {
	raw, _ := value.(string)
	_, err := models.ParseCategory(raw)
	return err
}

// checkIinBirthDate validates the identity code's embedded birth date. The
// first six digits are yymmdd; the seventh encodes century and sex: 1,2 for
// the 1800s, 3,4 for the 1900s, 5,6 for the 2000s.
func checkIinBirthDate(value interface{}) error {
	iin, _ := value.(string)
	if !iinPattern.MatchString(iin) {
		// The pattern rule already reported this.
		return nil
	}

	yy, _ := strconv.Atoi(iin[0:2])
	month, _ := strconv.Atoi(iin[2:4])
	day, _ := strconv.Atoi(iin[4:6])
	centuryDigit, _ := strconv.Atoi(iin[6:7])

	var century int
	switch centuryDigit {
	case 1, 2:
		century = 1800
	case 3, 4:
		century = 1900
	case 5, 6:
		century = 2000
	default:
		return fmt.Errorf("IIN century digit must be between 1 and 6")
	}

	if month < 1 || month > 12 {
		return fmt.Errorf("IIN birth month is out of range")
	}
	if day < 1 || day > 31 {
		return fmt.Errorf("IIN birth day is out of range")
	}

	birthDate := time.Date(century+yy, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 becomes Mar 1), so a shifted
	// result means the encoded date does not exist.
	if birthDate.Month() != time.Month(month) || birthDate.Day() != day {
		return fmt.Errorf("IIN birth date is not a valid calendar date")
	}
	if age(birthDate, time.Now().UTC()) < minApplicantAge {
		return fmt.Errorf("applicant must be at least %d years old", minApplicantAge)
	}
	return nil
}

// age computes full years elapsed between birth and now.
func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	anniversary := birth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
