package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/dashboard"
	"github.com/learnhub/backend/core/quiz"
	"github.com/learnhub/backend/core/user"
)

type (
	// TokenProvider verifies the bearer tokens it issues.
	TokenProvider interface {
		auth.IdentityProvider
		Issue(usr user.User, origIat ...time.Time) (string, error)
		Refresh(id auth.Identity, usr user.User) (string, error)
	}

	Deps struct {
		Validate     *validator.Validate
		Translator   ut.Translator
		Tokens       TokenProvider
		UserSvc      user.ServiceInterface
		CourseSvc    course.ServiceInterface
		QuizSvc      quiz.ServiceInterface
		DashboardSvc dashboard.ServiceInterface
	}

	Server struct {
		conf     *core.Config
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(logger, deps.Translator)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.app.Use(middleware.BodyLimit("2M"))

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	authed := authMiddleware(deps.Tokens)

	registerAuthAPI(v1, authed, deps.Tokens, deps.UserSvc, deps.Validate)
	registerCourseAPI(v1, authed, deps.CourseSvc)
	registerQuizAPI(v1, authed, deps.QuizSvc)
	registerProgressAPI(v1, authed, deps.CourseSvc)
	registerDashboardAPI(v1, authed, deps.DashboardSvc)

	return s
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that made the server stop listening.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT and SIGTERM.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
