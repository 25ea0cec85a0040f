package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/dashboard"
	"github.com/trezcool/tutorly/core/user"
)

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := dashboardApi{svc: deps.DashboardSvc}

	dg := g.Group("/dashboard", authed...)
	dg.GET("/tutor", api.tutor, roleMiddleware(user.RoleTutor))
	dg.GET("/student", api.student, roleMiddleware(user.RoleStudent))
}

func (api *dashboardApi) tutor(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.Tutor(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building tutor dashboard")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *dashboardApi) student(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.Student(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return ctx.JSON(http.StatusOK, summary)
}
