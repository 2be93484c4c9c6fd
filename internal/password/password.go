package password

import (
	"errors"
	"strings"
	"unicode"
)

const specialChars = "!@#$%^&*()-_+="

var (
	ErrTooShort  = errors.New("password must be at least 8 characters long")
	ErrNoDigit   = errors.New("password must contain at least one digit")
	ErrNoUpper   = errors.New("password must contain at least one uppercase letter")
	ErrNoLower   = errors.New("password must contain at least one lowercase letter")
	ErrNoSpecial = errors.New("password must contain at least one special character")
	ErrHasSpace  = errors.New("password must not contain spaces")
)

// Validate checks the password policy and reports every violated rule,
// joined into a single error.
func Validate(pw string) error {
	var violations []error

	if len(pw) < 8 {
		violations = append(violations, ErrTooShort)
	}
	if !strings.ContainsFunc(pw, unicode.IsDigit) {
		violations = append(violations, ErrNoDigit)
	}
	if !strings.ContainsFunc(pw, unicode.IsUpper) {
		violations = append(violations, ErrNoUpper)
	}
	if !strings.ContainsFunc(pw, unicode.IsLower) {
		violations = append(violations, ErrNoLower)
	}
	if !strings.ContainsAny(pw, specialChars) {
		violations = append(violations, ErrNoSpecial)
	}
	if strings.ContainsFunc(pw, unicode.IsSpace) {
		violations = append(violations, ErrHasSpace)
	}

	return errors.Join(violations...)
}
