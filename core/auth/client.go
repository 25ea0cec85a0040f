package auth

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/user"
)

var (
	ErrMissingCredentials = errors.New("Email and password are required.")
	ErrInvalidEmail       = errors.New("Please enter a valid email address.")
	ErrWeakPassword       = errors.New("Password must be at least 6 characters long.")
	ErrRoleNotAllowed     = errors.New("invalid roles")
)

// Client is the entry point of the authentication flows.
// Every error it returns is either a *core.ValidationError raised before reaching the provider,
// or a *core.AuthError carrying a user-facing message.
type Client struct {
	provider Provider
	logger   core.Logger
}

func NewClient(provider Provider, logger core.Logger) *Client {
	vala.BeginValidation().Validate(
		vala.IsNotNil(provider, "provider"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &Client{provider: provider, logger: logger}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (user.User, error) {
	if core.CleanString(email) == "" || password == "" {
		return user.User{}, core.NewValidationError(ErrMissingCredentials)
	}
	usr, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return user.User{}, c.translate("sign in", err)
	}
	return usr, nil
}

// SignUp checks the credentials locally before handing them to the provider.
// Only public roles may be requested.
func (c *Client) SignUp(ctx context.Context, nu user.NewUser) (user.User, error) {
	nu.Clean()
	if nu.Email == "" || nu.Password == "" {
		return user.User{}, core.NewValidationError(ErrMissingCredentials)
	}
	if !emailRgx.MatchString(nu.Email) {
		return user.User{}, core.NewValidationError(
			ErrInvalidEmail,
			core.FieldError{Field: "email", Error: ErrInvalidEmail.Error()},
		)
	}
	if len(nu.Password) < minPasswordLength {
		return user.User{}, core.NewValidationError(
			ErrWeakPassword,
			core.FieldError{Field: "password", Error: ErrWeakPassword.Error()},
		)
	}
	for _, role := range nu.Roles {
		if role != user.RoleStudent && role != user.RoleTutor {
			return user.User{}, core.NewValidationError(
				ErrRoleNotAllowed,
				core.FieldError{Field: "role", Error: ErrRoleNotAllowed.Error()},
			)
		}
	}

	usr, err := c.provider.SignUp(ctx, nu)
	if err != nil {
		return user.User{}, c.translate("sign up", err)
	}
	return usr, nil
}

func (c *Client) SignOut(ctx context.Context, userID string) error {
	if err := c.provider.SignOut(ctx, userID); err != nil {
		return c.translate("sign out", err)
	}
	return nil
}

func (c *Client) translate(op string, err error) error {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return &core.AuthError{Code: pErr.Code, Message: ErrorMessage(pErr.Code)}
	}
	c.logger.Error(fmt.Sprintf("auth: %s: %v", op, err), err)
	return &core.AuthError{Message: ErrorMessage("")}
}
