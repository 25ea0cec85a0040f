package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/review"
	"github.com/trezcool/tutorly/core/user"
)

type reviewApi struct {
	svc      review.Service
	validate *validator.Validate
}

func registerReviewAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := reviewApi{svc: deps.ReviewSvc, validate: deps.Validate}

	rg := g.Group("/reviews", authed...)
	rg.POST("", api.create, roleMiddleware(user.RoleStudent))
}

func (api *reviewApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data review.NewReview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, r)
}
