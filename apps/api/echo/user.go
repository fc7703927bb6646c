package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/user"
)

type authApi struct {
	tokens   TokenProvider
	svc      user.ServiceInterface
	validate *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	authed echo.MiddlewareFunc,
	tokens TokenProvider,
	svc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := authApi{
		tokens:   tokens,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)

	// authed endpoints
	ag.GET("/profile", api.profile, authed)
	ag.POST("/token-refresh", api.refreshToken, authed)
	ag.GET("/roles", api.queryRoles, authed)
}

// Handlers

func (api *authApi) signup(ctx echo.Context) error {
	var data SignupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupRequest")
	}
	nu := data.NewUser()
	if err := nu.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), nu)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.tokens.Issue(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) profile(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	token, err := api.tokens.Refresh(id, usr)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	// SignupRequest only allows the roles anyone may pick.
	SignupRequest struct {
		Name            string    `json:"name"`
		Email           string    `json:"email"`
		Password        string    `json:"password"`
		PasswordConfirm string    `json:"passwordConfirm"`
		Role            user.Role `json:"role"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (sr SignupRequest) NewUser() user.NewUser {
	return user.NewUser{
		Name:            sr.Name,
		Email:           sr.Email,
		Password:        sr.Password,
		PasswordConfirm: sr.PasswordConfirm,
		Role:            sr.Role,
		SelfSignup:      true,
	}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
