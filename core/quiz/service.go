package quiz

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/user"
)

var (
	// errors
	ErrNotFound             = errors.New("quiz not found")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrForbidden            = course.ErrForbidden
	ErrNotEnrolled          = course.ErrNotEnrolled

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateQuiz stores qz and its questions.
		CreateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuizByID(ctx context.Context, id string, exec ...core.DBExecutor) (Quiz, error)
		ListQuizzes(ctx context.Context, courseID string, publishedOnly bool, exec ...core.DBExecutor) ([]Quiz, error)
		PublishQuiz(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		// PassingScores maps the published quizzes of courseID to their passing score.
		PassingScores(ctx context.Context, courseID string, exec ...core.DBExecutor) (map[string]int, error)

		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (Attempt, error)
		GetOpenAttempt(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) (Attempt, error)
		// CloseAttempt marks a running attempt graded. It returns progress.ErrVersionConflict
		// when the attempt is no longer running.
		CloseAttempt(ctx context.Context, attemptID, submissionID string, exec ...core.DBExecutor) error

		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		// ListSubmissions lists the submissions of quizID, only userID's when userID is set.
		ListSubmissions(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) ([]Submission, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, id auth.Identity, courseID string, nq NewQuiz) (Quiz, error)
		Get(ctx context.Context, id auth.Identity, quizID string) (Quiz, error)
		List(ctx context.Context, id auth.Identity, courseID string) ([]Quiz, error)
		Publish(ctx context.Context, id auth.Identity, quizID string) (Quiz, error)
		ListSubmissions(ctx context.Context, id auth.Identity, quizID string) ([]Submission, error)

		StartAttempt(ctx context.Context, userID, quizID string) (Attempt, error)
		Status(ctx context.Context, userID, quizID string) (Status, error)
		SubmitQuiz(ctx context.Context, userID string, ns NewSubmission) (SubmissionResult, error)
	}

	Service struct {
		db          core.DB
		repo        Repository
		courseSvc   course.ServiceInterface
		progressSvc progress.ServiceInterface
		userSvc     user.ServiceInterface
		mailSvc     core.EmailService
		logger      core.Logger
		validate    *validator.Validate
		conf        *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	courseSvc course.ServiceInterface,
	progressSvc progress.ServiceInterface,
	userSvc user.ServiceInterface,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		db:          db,
		repo:        repo,
		courseSvc:   courseSvc,
		progressSvc: progressSvc,
		userSvc:     userSvc,
		mailSvc:     mailSvc,
		logger:      logger,
		validate:    validate,
		conf:        conf,
	}
}

func (svc *Service) Create(ctx context.Context, id auth.Identity, courseID string, nq NewQuiz) (Quiz, error) {
	c, err := svc.courseSvc.GetByID(ctx, id, courseID)
	if err != nil {
		return Quiz{}, err
	}
	if !svc.courseSvc.CanManage(id, c) {
		return Quiz{}, ErrForbidden
	}
	if err = nq.Validate(svc.validate); err != nil {
		return Quiz{}, err
	}

	qz := Quiz{
		CourseID:     c.ID,
		Title:        nq.Title,
		MaxAttempts:  nq.MaxAttempts,
		TimeLimit:    nq.TimeLimit,
		PassingScore: svc.conf.Quiz.PassingThreshold,
		CreatedAt:    nowFunc().UTC(),
	}
	if qz.MaxAttempts == 0 {
		qz.MaxAttempts = svc.conf.Quiz.DefaultMaxAttempts
	}
	if nq.PassingScore != nil {
		qz.PassingScore = *nq.PassingScore
	}
	for i, nqs := range nq.Questions {
		q := Question{
			Prompt:   nqs.Prompt,
			Kind:     nqs.Kind,
			Answer:   nqs.Answer,
			Weight:   nqs.Weight,
			Position: i,
		}
		if q.Kind == MultipleChoice {
			q.Choices = nqs.Choices
		}
		if q.Weight == 0 {
			q.Weight = 1
		}
		qz.Questions = append(qz.Questions, q)
	}

	err = core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		qz, err = svc.repo.CreateQuiz(ctx, qz, exec)
		return storeErr(err, "creating quiz")
	})
	if err != nil {
		return Quiz{}, err
	}
	return qz, nil
}

// Get returns the quiz. Drafts and answer keys are only shown to whoever manages the course.
func (svc *Service) Get(ctx context.Context, id auth.Identity, quizID string) (Quiz, error) {
	qz, manage, err := svc.getQuiz(ctx, id, quizID)
	if err != nil {
		return Quiz{}, err
	}
	if !manage {
		return qz.WithoutAnswers(), nil
	}
	return qz, nil
}

func (svc *Service) List(ctx context.Context, id auth.Identity, courseID string) ([]Quiz, error) {
	c, err := svc.courseSvc.GetByID(ctx, id, courseID)
	if err != nil {
		return nil, err
	}
	manage := svc.courseSvc.CanManage(id, c)

	quizzes, err := svc.repo.ListQuizzes(ctx, c.ID, !manage)
	if err != nil {
		return nil, storeErr(err, "listing quizzes")
	}
	if !manage {
		for i := range quizzes {
			quizzes[i] = quizzes[i].WithoutAnswers()
		}
	}
	return quizzes, nil
}

// Publish makes a draft quiz visible to students. Publishing twice is a no-op.
func (svc *Service) Publish(ctx context.Context, id auth.Identity, quizID string) (Quiz, error) {
	qz, manage, err := svc.getQuiz(ctx, id, quizID)
	if err != nil {
		return Quiz{}, err
	}
	if !manage {
		return Quiz{}, ErrForbidden
	}
	if qz.IsPublished {
		return qz, nil
	}

	now := nowFunc().UTC()
	if err = svc.repo.PublishQuiz(ctx, qz.ID, now); err != nil {
		return Quiz{}, storeErr(err, "publishing quiz")
	}
	qz.IsPublished = true
	qz.PublishedAt = now
	return qz, nil
}

// ListSubmissions returns the caller's submissions, or all of them for whoever manages the course.
func (svc *Service) ListSubmissions(ctx context.Context, id auth.Identity, quizID string) ([]Submission, error) {
	qz, manage, err := svc.getQuiz(ctx, id, quizID)
	if err != nil {
		return nil, err
	}
	userID := id.UserID
	if manage {
		userID = ""
	}
	subs, err := svc.repo.ListSubmissions(ctx, qz.ID, userID)
	if err != nil {
		return nil, storeErr(err, "listing submissions")
	}
	return subs, nil
}

// getQuiz loads quizID and reports whether the caller manages its course.
// Drafts are reported as not found to everyone else.
func (svc *Service) getQuiz(ctx context.Context, id auth.Identity, quizID string) (Quiz, bool, error) {
	qz, err := svc.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return Quiz{}, false, storeErr(err, "getting quiz")
	}
	c, err := svc.courseSvc.GetByID(ctx, id, qz.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return Quiz{}, false, ErrNotFound
		}
		return Quiz{}, false, err
	}
	manage := svc.courseSvc.CanManage(id, c)
	if !qz.IsPublished && !manage {
		return Quiz{}, false, ErrNotFound
	}
	return qz, manage, nil
}

// storeErr keeps the package's sentinel errors and wraps anything else into a core.PersistenceError.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	switch errors.Cause(err) {
	case ErrNotFound, ErrAttemptNotFound, progress.ErrVersionConflict:
		return err
	}
	if core.IsPersistence(err) {
		return err
	}
	return core.NewPersistenceError(errors.Wrap(err, msg))
}
