package booking

import (
	"strings"
	"time"

	"eventcircle/internal/models"
)

// AgeAt returns the number of whole years between dob and now, or false when
// dob is missing or in the future.
func AgeAt(dob *time.Time, now time.Time) (int, bool) {
	if dob == nil || dob.IsZero() {
		return 0, false
	}
	birth := dob.UTC()
	now = now.UTC()
	if birth.After(now) {
		return 0, false
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, true
}

// ageDenied reports whether age falls inside the restricted bucket.
func ageDenied(bucket string, age int) bool {
	switch strings.TrimSpace(bucket) {
	case models.AgeUnder18:
		return age < 18
	case models.Age18To29:
		return age >= 18 && age <= 29
	case models.Age30To39:
		return age >= 30 && age <= 39
	case models.AgeUnder40:
		return age < 40
	default:
		return false
	}
}

// CheckEligibility returns nil when user may book event, otherwise the
// reason: ErrSoldOut, ErrAgeRestricted or ErrGenderRestricted, checked in
// that order. A user without a usable date of birth skips the age check,
// and one without a gender skips the gender check.
func CheckEligibility(user *models.User, event *models.Event, now time.Time) error {
	if event.MaxCapacity <= 0 {
		return ErrSoldOut
	}

	if len(event.AgeRestriction) > 0 {
		if age, ok := AgeAt(user.DateOfBirth, now); ok {
			for _, bucket := range event.AgeRestriction {
				if ageDenied(bucket, age) {
					return ErrAgeRestricted
				}
			}
		}
	}

	if user.Gender != "" && event.GenderRestriction.Contains(user.Gender) {
		return ErrGenderRestricted
	}
	return nil
}
