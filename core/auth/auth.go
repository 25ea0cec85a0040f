// Package auth signs users in and up against an identity provider and
// translates provider failures into messages fit for end users.
package auth

import (
	"context"
	"fmt"

	"github.com/trezcool/tutorly/core/user"
)

// Provider error codes
const (
	CodeInvalidEmail          = "auth/invalid-email"
	CodeEmailAlreadyInUse     = "auth/email-already-in-use"
	CodeWeakPassword          = "auth/weak-password"
	CodeUserNotFound          = "auth/user-not-found"
	CodeWrongPassword         = "auth/wrong-password"
	CodeNetworkRequestFailed  = "auth/network-request-failed"
	CodeTooManyRequests       = "auth/too-many-requests"
	CodeInvalidCredential     = "auth/invalid-credential"
	CodeOperationNotAllowed   = "auth/operation-not-allowed"
	CodeUserDisabled          = "auth/user-disabled"
	unexpectedErrorMessage    = "An unexpected error occurred. Please try again."
	unknownCodeMessagePattern = "Authentication error: %s"
)

var messages = map[string]string{
	CodeInvalidEmail:         "Invalid email address format.",
	CodeEmailAlreadyInUse:    "This email is already registered.",
	CodeWeakPassword:         "Password should be at least 6 characters.",
	CodeUserNotFound:         "No account found with this email.",
	CodeWrongPassword:        "Incorrect password.",
	CodeNetworkRequestFailed: "Network error. Please check your connection.",
	CodeTooManyRequests:      "Too many attempts. Please try again later.",
	CodeInvalidCredential:    "Invalid login credentials.",
	CodeOperationNotAllowed:  "This login method is not enabled.",
}

type (
	// ProviderError is a failure reported by an identity provider.
	ProviderError struct {
		Code string
		Err  error
	}

	// Provider is an identity provider.
	Provider interface {
		SignIn(ctx context.Context, email, password string) (user.User, error)
		SignUp(ctx context.Context, nu user.NewUser) (user.User, error)
		SignOut(ctx context.Context, userID string) error
	}
)

func (err *ProviderError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%s: %v", err.Code, err.Err)
	}
	return err.Code
}

func (err *ProviderError) Unwrap() error { return err.Err }

// ErrorMessage returns the user-facing message for a provider error code.
func ErrorMessage(code string) string {
	if code == "" {
		return unexpectedErrorMessage
	}
	if msg, ok := messages[code]; ok {
		return msg
	}
	return fmt.Sprintf(unknownCodeMessagePattern, code)
}
