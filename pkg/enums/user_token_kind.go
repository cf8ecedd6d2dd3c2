package enums

import "fmt"

// UserTokenKind distinguishes the purposes a one-time user token can serve.
type UserTokenKind string

const (
	UserTokenKindEmailVerification UserTokenKind = "email_verification"
	UserTokenKindPasswordReset     UserTokenKind = "password_reset"
)

var validUserTokenKinds = []UserTokenKind{
	UserTokenKindEmailVerification,
	UserTokenKindPasswordReset,
}

// String implements fmt.Stringer.
func (k UserTokenKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known UserTokenKind.
func (k UserTokenKind) IsValid() bool {
	for _, candidate := range validUserTokenKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseUserTokenKind converts raw input into a UserTokenKind.
func ParseUserTokenKind(value string) (UserTokenKind, error) {
	for _, candidate := range validUserTokenKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user token kind %q", value)
}
