package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core/dashboard"
)

type dashboardApi struct {
	svc dashboard.ServiceInterface
}

func registerDashboardAPI(g *echo.Group, authed echo.MiddlewareFunc, svc dashboard.ServiceInterface) {
	api := dashboardApi{svc: svc}
	g.GET("/me/dashboard", api.retrieve, authed)
}

func (api *dashboardApi) retrieve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}
