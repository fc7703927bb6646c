package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core/course"
)

type progressApi struct {
	svc course.ServiceInterface
}

func registerProgressAPI(g *echo.Group, authed echo.MiddlewareFunc, svc course.ServiceInterface) {
	api := progressApi{svc: svc}

	pg := g.Group("/progress", authed)
	pg.GET("/:courseId", api.retrieveOwn)
	pg.GET("/:courseId/users/:userId", api.retrieve)
}

func (api *progressApi) retrieveOwn(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.GetProgress(ctx.Request().Context(), id, id.UserID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.GetProgress(ctx.Request().Context(), id, ctx.Param("userId"), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}
