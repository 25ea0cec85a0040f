package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/auth"
	"github.com/trezcool/tutorly/core/review"
	"github.com/trezcool/tutorly/core/user"
)

type userApi struct {
	conf      *core.Config
	svc       user.Service
	client    *auth.Client
	reviewSvc review.Service
	validate  *validator.Validate
}

func registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := newUserApi(deps)
	limit := rateLimitMiddleware(rate.Limit(deps.Conf.Auth.RateLimit), deps.Conf.Auth.RateBurst)

	ag := g.Group("/auth")
	ag.POST("/signup", api.signUp, limit)
	ag.POST("/signin", api.signIn, limit)
	ag.POST("/signout", api.signOut, authed...)
	ag.POST("/token-refresh", api.refreshToken, authed...)
}

func registerUserAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := newUserApi(deps)

	ug := g.Group("/users", authed...)
	ug.GET("/me", api.me)
	ug.PUT("/me", api.updateMe)
	ug.PUT("/me/payment-details", api.updatePaymentDetails)
	ug.GET("/:id", api.retrieve)

	tg := g.Group("/tutors", authed...)
	tg.GET("", api.queryTutors)
	tg.GET("/:id/reviews", api.tutorReviews)
}

func newUserApi(deps ServerDeps) *userApi {
	return &userApi{
		conf:      deps.Conf,
		svc:       deps.UserSvc,
		client:    deps.AuthClient,
		reviewSvc: deps.ReviewSvc,
		validate:  deps.Validate,
	}
}

// Handlers

func (api *userApi) signUp(ctx echo.Context) error {
	var data SignUpRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignUpRequest")
	}
	nu := user.NewUser{Name: data.Name, Email: data.Email, Password: data.Password}
	if data.Role != "" {
		nu.Roles = []string{data.Role}
	}
	// credentials are checked by the auth client, with its own messages
	nu.Clean()
	if err := api.validate.StructPartial(nu, "Name"); err != nil {
		return err
	}

	usr, err := api.client.SignUp(ctx.Request().Context(), nu)
	if err != nil {
		return err
	}
	token, err := newToken(api.conf, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, AuthResponse{Token: token, User: usr})
}

func (api *userApi) signIn(ctx echo.Context) error {
	var data SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}

	usr, err := api.client.SignIn(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	token, err := newToken(api.conf, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: token, User: usr})
}

func (api *userApi) signOut(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.client.SignOut(ctx.Request().Context(), usr.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updatePaymentDetails(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.PaymentDetails
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentDetails")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.UpdatePaymentDetails(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating payment details")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, usr.Public())
}

func (api *userApi) queryTutors(ctx echo.Context) error {
	tutors, err := api.svc.QueryTutors(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying tutors")
	}
	return ctx.JSON(http.StatusOK, tutors)
}

func (api *userApi) tutorReviews(ctx echo.Context) error {
	reviews, err := api.reviewSvc.ListByTutor(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing tutor reviews")
	}
	if reviews == nil {
		reviews = []review.Review{}
	}
	return ctx.JSON(http.StatusOK, reviews)
}

type (
	SignUpRequest struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	SignInRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	AuthResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)
