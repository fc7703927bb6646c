package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/quiz"
	"github.com/learnhub/backend/core/user"
)

// errorCodes maps domain errors to their HTTP status.
var errorCodes = map[error]int{
	auth.ErrUnauthorized:   http.StatusUnauthorized,
	auth.ErrRefreshExpired: http.StatusForbidden,

	user.ErrNotFound:           http.StatusNotFound,
	user.ErrInvalidCredentials: http.StatusBadRequest,
	user.ErrAccountDeactivated: http.StatusForbidden,

	course.ErrNotFound:       http.StatusNotFound,
	course.ErrLessonNotFound: http.StatusNotFound,
	course.ErrForbidden:      http.StatusForbidden,
	course.ErrNotEnrolled:    http.StatusForbidden,

	quiz.ErrNotFound:             http.StatusNotFound,
	quiz.ErrAttemptNotFound:      http.StatusNotFound,
	quiz.ErrAttemptLimitExceeded: http.StatusConflict,

	progress.ErrNotFound: http.StatusNotFound,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Server and store failures are reported to the logger.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if c, ok := domainErrorCode(cause); ok {
			code = c
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				code = http.StatusBadRequest
				message = core.TranslateValidationErrors(origErr, translator)
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			case *core.PersistenceError:
				code = http.StatusServiceUnavailable
				message = "service temporarily unavailable, please retry"
				logger.Error(message.(string), err, contextIdentity(ctx))
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), contextIdentity(ctx))
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
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

// domainErrorCode looks cause up in errorCodes. Some errors are not hashable, hence no map index.
func domainErrorCode(cause error) (int, bool) {
	for e, code := range errorCodes {
		if cause == e {
			return code, true
		}
	}
	return 0, false
}

// contextIdentity is the caller, zero for anonymous requests.
func contextIdentity(ctx echo.Context) auth.Identity {
	id, _ := getContextIdentity(ctx)
	return id
}
