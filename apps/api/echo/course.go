package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/user"
)

type courseApi struct {
	svc course.ServiceInterface
}

func registerCourseAPI(g *echo.Group, authed echo.MiddlewareFunc, svc course.ServiceInterface) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses", authed)
	cg.GET("", api.query)
	cg.POST("", api.create, roleMiddleware(user.RoleInstructor, user.RoleAdmin))
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/enroll", api.enroll)
	cg.GET("/:id/lessons", api.queryLessons)
	cg.POST("/:id/lessons", api.createLesson)

	lg := g.Group("/lessons", authed)
	lg.GET("/:id", api.retrieveLesson)
	lg.POST("/:id/view", api.viewLesson)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter, err := bindCourseFilter(ctx)
	if err != nil {
		return err
	}

	courses, err := api.svc.Query(ctx.Request().Context(), id, filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}

	c, err := api.svc.Create(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetByID(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *courseApi) queryLessons(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	lessons, err := api.svc.ListLessons(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *courseApi) createLesson(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data course.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}

	l, err := api.svc.AddLesson(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *courseApi) retrieveLesson(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	l, err := api.svc.GetLesson(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *courseApi) viewLesson(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.ViewLesson(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "viewing lesson")
	}
	return ctx.JSON(http.StatusOK, rec)
}
