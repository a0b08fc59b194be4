// Package otp implements email verification by one-time code: the
// candidate-side Flow state machine and the server-side Service that issues
// and checks codes.
package otp

import (
	"errors"
	"regexp"
	"strings"
)

// State of an email address in the verification flow.
type State int

const (
	Unverified State = iota
	CodeSent
	Verified
)

func (s State) String() string {
	switch s {
	case Unverified:
		return "UNVERIFIED"
	case CodeSent:
		return "CODE_SENT"
	case Verified:
		return "VERIFIED"
	}
	return "UNKNOWN"
}

// CodeLength is the number of digits in a code.
const CodeLength = 6

// TokenPurpose is the purpose claim of a verification token.
const TokenPurpose = "email_verification"

var (
	ErrCodeOutstanding = errors.New("a verification code was already sent")
	ErrCodeMismatch    = errors.New("verification code does not match")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrInvalidCode     = errors.New("verification code must be 6 digits")
	ErrNoEmail         = errors.New("email is required")
	ErrNotRequested    = errors.New("no verification code was requested")
	ErrAlreadyVerified = errors.New("email is already verified")
	ErrEmailChanged    = errors.New("email changed during verification")
	ErrInvalidToken    = errors.New("invalid verification token")
)

var codeRE = regexp.MustCompile(`^[0-9]{6}$`)

// ValidCode reports whether code has the expected shape.
func ValidCode(code string) bool {
	return codeRE.MatchString(code)
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
