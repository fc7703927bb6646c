package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/user"
)

var contextIdentityKey = "identity"

// authMiddleware verifies the bearer token with provider and stores the caller's identity in the context.
func authMiddleware(provider auth.IdentityProvider) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		Validator: func(token string, ctx echo.Context) (bool, error) {
			id, err := provider.Verify(ctx.Request().Context(), token)
			if err != nil {
				return false, err
			}
			ctx.Set(contextIdentityKey, id)
			return true, nil
		},
		// missing, malformed and rejected tokens all read as unauthenticated
		ErrorHandler: func(_ error, _ echo.Context) error {
			return auth.ErrUnauthorized
		},
	})
}

// roleMiddleware lets through callers holding one of roles.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if id.Role == role {
					return next(ctx)
				}
			}
			return course.ErrForbidden
		}
	}
}

func getContextIdentity(ctx echo.Context) (auth.Identity, error) {
	if id, ok := ctx.Get(contextIdentityKey).(auth.Identity); ok {
		return id, nil
	}
	return auth.Identity{}, auth.ErrUnauthorized
}
