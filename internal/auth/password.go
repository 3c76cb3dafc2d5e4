// Package auth implements the credential lifecycle: the password policy,
// bcrypt hashing, JWT session tokens and the gin middleware that gates
// protected routes.
package auth

import (
	"unicode"
	"unicode/utf8"
)

const minPasswordLength = 8

// PasswordPolicyMessage describes the password rule to end users.
const PasswordPolicyMessage = "password must be at least 8 characters long and contain " +
	"at least one lowercase letter, one uppercase letter and one special character"

// ValidatePassword reports whether password satisfies the policy: at least 8
// characters, one lowercase letter, one uppercase letter and one character
// that is neither a letter nor a digit. There is no upper bound.
func ValidatePassword(password string) bool {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return false
	}

	var lower, upper, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			special = true
		}
	}

	return lower && upper && special
}
