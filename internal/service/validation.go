package service

import (
	"regexp"
	"strings"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 128
	maxNameLength     = 100
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

func validateEmail(v *ValidationError, email string) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		v.Add("email", "can't be blank")
	case !emailRegex.MatchString(email):
		v.Add("email", "is invalid")
	}
}

// validatePassword checks length and, when confirmation is non-nil, that it matches.
func validatePassword(v *ValidationError, password string, confirmation *string) {
	switch {
	case password == "":
		v.Add("password", "can't be blank")
	case len(password) < minPasswordLength:
		v.Add("password", "is too short (minimum is 6 characters)")
	case len(password) > maxPasswordLength:
		v.Add("password", "is too long (maximum is 128 characters)")
	}
	if confirmation != nil && *confirmation != password {
		v.Add("password_confirmation", "doesn't match Password")
	}
}

func validateRequired(v *ValidationError, field, value string) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		v.Add(field, "can't be blank")
	case len(value) > maxNameLength:
		v.Add(field, "is too long")
	}
}

// trimmedPtr returns a copy of *p without surrounding whitespace.
func trimmedPtr(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(*p)
	return &t
}

// validateOptionalRequired validates value only when it is being set.
func validateOptionalRequired(v *ValidationError, field string, value *string) {
	if value != nil {
		validateRequired(v, field, *value)
	}
}
