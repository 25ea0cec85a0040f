package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/auth"
	"github.com/trezcool/tutorly/core/document"
	"github.com/trezcool/tutorly/core/payment"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/review"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func errPaymentIntent(err error) *echo.HTTPError {
	return &echo.HTTPError{Code: http.StatusInternalServerError, Message: "Error creating payment intent", Internal: err}
}

// notFoundMessage names the kind of record that was not found.
func notFoundMessage(err error) string {
	for _, nf := range []error{user.ErrNotFound, session.ErrNotFound, document.ErrNotFound, review.ErrNotFound} {
		if errors.Is(err, nf) {
			return nf.Error()
		}
	}
	return record.ErrNotFound.Error()
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr  *echo.HTTPError
			fldErrs  validator.ValidationErrors
			valErr   *core.ValidationError
			authErr  *core.AuthError
			internal = false
		)
		switch {
		case errors.As(err, &httpErr):
			if httpErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = httpErr.Message
				break
			}
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
			internal = code >= http.StatusInternalServerError
		case errors.As(err, &fldErrs):
			msgs := make(map[string]string, len(fldErrs))
			for _, vErr := range fldErrs {
				msgs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = msgs
		case errors.As(err, &valErr):
			if len(valErr.Fields) > 0 {
				msgs := make(map[string]string, len(valErr.Fields))
				for _, fErr := range valErr.Fields {
					msgs[fErr.Field] = fErr.Error
				}
				message = msgs
			} else {
				message = valErr.Error()
			}
			code = http.StatusBadRequest
		case errors.As(err, &authErr):
			code = http.StatusBadRequest
			if authErr.Code == auth.CodeTooManyRequests {
				code = http.StatusTooManyRequests
			}
			message = authErr.Message
		case errors.Is(err, record.ErrNotFound):
			code = http.StatusNotFound
			message = notFoundMessage(err)
		case errors.Is(err, session.ErrNotAllowed), errors.Is(err, document.ErrNotAllowed):
			code = http.StatusForbidden
			message = errors.Cause(err).Error()
		case errors.Is(err, payment.ErrInvalidSignature):
			code = http.StatusBadRequest
			message = payment.ErrInvalidSignature.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			internal = true
		}

		if internal {
			msg := http.StatusText(http.StatusInternalServerError)
			var usr user.User
			if u, uErr := getContextUser(ctx); uErr == nil {
				usr = u
			} else if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Name = claims.Name
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && internal {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
