// Package passcode digests and verifies the kiosk administrator passcode.
package passcode

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "timeclock/pkg/domain-errors"
)

const (
	minLength = 4
	maxLength = 12
)

// Validate requires 4 to 12 ASCII digits.
func Validate(code string) error {
	if len(code) < minLength || len(code) > maxLength {
		return dErrors.New(dErrors.CodeValidation, "passcode must be 4 to 12 digits")
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return dErrors.New(dErrors.CodeValidation, "passcode must contain digits only")
		}
	}
	return nil
}

// Hash returns the bcrypt digest of code. The call blocks until the digest is
// computed so callers never observe a document without one.
func Hash(code string) (string, error) {
	if code == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "passcode cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("could not hash passcode: %w", err)
	}
	return string(hashed), nil
}

// Verify compares code against a stored digest.
func Verify(code, hash string) error {
	if hash == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "no passcode configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid passcode")
		}
		return fmt.Errorf("could not verify passcode: %w", err)
	}
	return nil
}
