package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core/quiz"
)

type quizApi struct {
	svc quiz.ServiceInterface
}

func registerQuizAPI(g *echo.Group, authed echo.MiddlewareFunc, svc quiz.ServiceInterface) {
	api := quizApi{svc: svc}

	g.GET("/courses/:id/quizzes", api.query, authed)
	g.POST("/courses/:id/quizzes", api.create, authed)

	qg := g.Group("/quizzes", authed)
	qg.GET("/:id", api.retrieve)
	qg.POST("/:id/publish", api.publish)
	qg.POST("/:id/start", api.start)
	qg.GET("/:id/status", api.status)
	qg.GET("/:id/submissions", api.querySubmissions)

	g.POST("/quiz/submit", api.submit, authed)
}

// Handlers

func (api *quizApi) query(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	quizzes, err := api.svc.List(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) create(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data quiz.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}

	qz, err := api.svc.Create(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	qz, err := api.svc.Get(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) publish(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	qz, err := api.svc.Publish(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) start(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	att, err := api.svc.StartAttempt(ctx.Request().Context(), id.UserID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *quizApi) status(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.Status(ctx.Request().Context(), id.UserID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz status")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *quizApi) querySubmissions(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *quizApi) submit(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data quiz.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}

	res, err := api.svc.SubmitQuiz(ctx.Request().Context(), id.UserID, data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}
