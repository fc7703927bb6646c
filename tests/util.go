package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/dashboard"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/quiz"
	"github.com/learnhub/backend/core/user"
	emailsvc "github.com/learnhub/backend/services/email"
	"github.com/learnhub/backend/storage/database"
	sqlxrepos "github.com/learnhub/backend/storage/database/sqlx"
)

// Env holds a migrated SQLite database and every service wired on top of it.
type Env struct {
	Conf       *core.Config
	DB         *sqlx.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock
	Tokens     *auth.JWTProvider

	UserRepo     user.Repository
	CourseRepo   course.Repository
	QuizRepo     quiz.Repository
	ProgressRepo progress.Repository

	UserSvc      *user.Service
	ProgressSvc  *progress.Service
	CourseSvc    *course.Service
	QuizSvc      *quiz.Service
	DashboardSvc *dashboard.Service
}

// NewConfig returns the app config pointed at a throwaway SQLite file.
func NewConfig(t *testing.T) *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.RollbarToken = ""
	conf.SendgridAPIKey = ""
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = filepath.Join(t.TempDir(), "test.db")
	conf.Quiz.PassingThreshold = 60
	conf.Quiz.DefaultMaxAttempts = 3
	conf.Quiz.CASRetries = 8
	return conf
}

// PrepareDB opens and migrates the configured database; it is closed when the test ends.
func PrepareDB(t *testing.T, conf *core.Config) *sqlx.DB {
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Ping(context.Background(), db); err != nil {
		t.Fatalf("database.Ping() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}

// NewValidator returns a validator with every app validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv(t *testing.T) *Env {
	conf := NewConfig(t)
	db := PrepareDB(t, conf)
	validate, translator := NewValidator()

	env := &Env{
		Conf:         conf,
		DB:           db,
		Validate:     validate,
		Translator:   translator,
		Mail:         emailsvc.NewConsoleServiceMock(conf),
		Tokens:       auth.NewJWTProvider(conf),
		UserRepo:     sqlxrepos.NewUserRepository(db),
		CourseRepo:   sqlxrepos.NewCourseRepository(db),
		QuizRepo:     sqlxrepos.NewQuizRepository(db),
		ProgressRepo: sqlxrepos.NewProgressRepository(db),
	}
	env.wireServices()
	return env
}

func (env *Env) wireServices() {
	env.UserSvc = user.NewService(env.UserRepo, env.Mail, env.Conf)
	env.ProgressSvc = progress.NewService(env.DB, env.ProgressRepo, env.Conf)
	env.CourseSvc = course.NewService(env.DB, env.CourseRepo, env.ProgressSvc, env.Validate)
	env.QuizSvc = quiz.NewService(env.DB, env.QuizRepo, env.CourseSvc, env.ProgressSvc, env.UserSvc, env.Mail, nil, env.Validate, env.Conf)
	env.DashboardSvc = dashboard.NewService(env.CourseSvc, env.QuizSvc, env.ProgressSvc)
}

// UseProgressRepo rewires every service on top of repo, usually a wrapper of env.ProgressRepo.
func (env *Env) UseProgressRepo(repo progress.Repository) {
	env.ProgressRepo = repo
	env.wireServices()
}

// CountRows returns the number of rows of table.
func (env *Env) CountRows(t *testing.T, table string) int {
	var n int
	if err := env.DB.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("countRows(%s) failed: %v", table, err)
	}
	return n
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, instructorID, title string, published bool) course.Course {
	now := time.Now().UTC()
	c, err := repo.CreateCourse(context.Background(), course.Course{
		InstructorID: instructorID,
		Title:        title,
		IsPublished:  published,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return c
}

func CreateLesson(t *testing.T, repo course.Repository, courseID, title string, position int) course.Lesson {
	l, err := repo.CreateLesson(context.Background(), course.Lesson{
		CourseID:  courseID,
		Title:     title,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createLesson() failed: %v", err)
	}
	return l
}

// Enroll enrolls userID and opens their progress record.
func (env *Env) Enroll(t *testing.T, userID, courseID string) {
	ctx := context.Background()
	now := time.Now().UTC()
	if err := env.CourseRepo.CreateEnrollment(ctx, course.Enrollment{UserID: userID, CourseID: courseID, CreatedAt: now}); err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	if err := env.ProgressRepo.EnsureRecord(ctx, userID, courseID, now); err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
}

// CreateQuiz stores a quiz of courseID with qs as its questions.
// MaxAttempts and PassingScore default to 3 and 60; weights default to 1.
func CreateQuiz(t *testing.T, repo quiz.Repository, courseID string, qz quiz.Quiz, published bool, qs ...quiz.Question) quiz.Quiz {
	ctx := context.Background()
	qz.CourseID = courseID
	if qz.Title == "" {
		qz.Title = "Quiz"
	}
	if qz.MaxAttempts == 0 {
		qz.MaxAttempts = 3
	}
	if qz.PassingScore == 0 {
		qz.PassingScore = 60
	}
	qz.CreatedAt = time.Now().UTC()
	qz.Questions = nil
	for i, q := range qs {
		q.Position = i
		if q.Weight == 0 {
			q.Weight = 1
		}
		qz.Questions = append(qz.Questions, q)
	}

	qz, err := repo.CreateQuiz(ctx, qz)
	if err != nil {
		t.Fatalf("createQuiz() failed: %v", err)
	}
	if published {
		now := time.Now().UTC()
		if err = repo.PublishQuiz(ctx, qz.ID, now); err != nil {
			t.Fatalf("publishQuiz() failed: %v", err)
		}
		qz.IsPublished = true
		qz.PublishedAt = now
	}
	return qz
}

// ChoiceQuestion returns a multiple choice question with choices "a" to "d" answered by answer.
func ChoiceQuestion(prompt, answer string, weight ...int) quiz.Question {
	q := quiz.Question{
		Prompt: prompt,
		Kind:   quiz.MultipleChoice,
		Choices: []quiz.Choice{
			{Key: "a", Text: "A"},
			{Key: "b", Text: "B"},
			{Key: "c", Text: "C"},
			{Key: "d", Text: "D"},
		},
		Answer: answer,
	}
	if len(weight) > 0 {
		q.Weight = weight[0]
	}
	return q
}

func TextQuestion(prompt, answer string, weight ...int) quiz.Question {
	q := quiz.Question{Prompt: prompt, Kind: quiz.FreeText, Answer: answer}
	if len(weight) > 0 {
		q.Weight = weight[0]
	}
	return q
}

func Identity(usr user.User) auth.Identity {
	return auth.Identity{UserID: usr.ID, Role: usr.Role}
}
