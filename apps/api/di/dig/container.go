package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/learnhub/backend/apps/api/echo"
	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/dashboard"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/quiz"
	"github.com/learnhub/backend/core/user"
	emailsvc "github.com/learnhub/backend/services/email"
	logsvc "github.com/learnhub/backend/services/logger"
	"github.com/learnhub/backend/storage/database"
	sqlxrepos "github.com/learnhub/backend/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	Tokens       *auth.JWTProvider
	UserSvc      user.ServiceInterface
	CourseSvc    course.ServiceInterface
	QuizSvc      quiz.ServiceInterface
	DashboardSvc dashboard.ServiceInterface
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

// newValidator returns a validator with the app-wide and domain validators registered.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Logger, &echoapi.Deps{
		Validate:     p.Validate,
		Translator:   p.Translator,
		Tokens:       p.Tokens,
		UserSvc:      p.UserSvc,
		CourseSvc:    p.CourseSvc,
		QuizSvc:      p.QuizSvc,
		DashboardSvc: p.DashboardSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(auth.NewJWTProvider))

	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewCourseRepository, dig.As(new(course.Repository))))
	must(c.Provide(sqlxrepos.NewQuizRepository, dig.As(new(quiz.Repository))))
	must(c.Provide(sqlxrepos.NewProgressRepository, dig.As(new(progress.Repository))))

	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(progress.NewService, dig.As(new(progress.ServiceInterface))))
	must(c.Provide(course.NewService, dig.As(new(course.ServiceInterface))))
	must(c.Provide(quiz.NewService, dig.As(new(quiz.ServiceInterface))))
	must(c.Provide(dashboard.NewService, dig.As(new(dashboard.ServiceInterface))))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
