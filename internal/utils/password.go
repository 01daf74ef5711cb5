package utils

import (
	"errors"
	"fmt"
	"unicode"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordPolicy describes the strength rules a new password has to meet.
type PasswordPolicy struct {
	MinLength int
	MixedCase bool
	Numbers   bool
	Symbols   bool
}

// DefaultPasswordPolicy only enforces a minimum length of 8.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8}
}

// Check returns nil when password satisfies the policy, otherwise an error
// describing the first rule it breaks.
func (p PasswordPolicy) Check(password string) error {
	if len([]rune(password)) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not be longer than %d bytes", MaxPasswordBytes)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
		hasSymbol bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSymbol = true
		}
	}

	if p.MixedCase && !(hasUpper && hasLower) {
		return errors.New("password must contain at least one uppercase and one lowercase letter")
	}
	if p.Numbers && !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if p.Symbols && !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
