package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrForbidden      = errors.New("permission denied")
	ErrNotEnrolled    = errors.New("not enrolled in this course")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)

		CreateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		GetLessonByID(ctx context.Context, id string, exec ...core.DBExecutor) (Lesson, error)
		ListLessons(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Lesson, error)

		// CreateEnrollment is a no-op when the enrollment exists.
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) error
		GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Enrollment, error)
		ListEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Enrollment, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, id auth.Identity, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id auth.Identity, courseID string) (Course, error)
		Query(ctx context.Context, id auth.Identity, filter QueryFilter) ([]Course, error)
		CanManage(id auth.Identity, c Course) bool

		AddLesson(ctx context.Context, id auth.Identity, courseID string, nl NewLesson) (Lesson, error)
		ListLessons(ctx context.Context, id auth.Identity, courseID string) ([]Lesson, error)
		GetLesson(ctx context.Context, id auth.Identity, lessonID string) (Lesson, error)
		ViewLesson(ctx context.Context, id auth.Identity, lessonID string) (progress.Record, error)

		Enroll(ctx context.Context, id auth.Identity, courseID string) (Enrollment, error)
		IsEnrolled(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error)
		ListEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
		GetProgress(ctx context.Context, id auth.Identity, userID, courseID string) (progress.Record, error)
	}

	Service struct {
		db          core.DB
		repo        Repository
		progressSvc progress.ServiceInterface
		validate    *validator.Validate
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, progressSvc progress.ServiceInterface, validate *validator.Validate) *Service {
	return &Service{
		db:          db,
		repo:        repo,
		progressSvc: progressSvc,
		validate:    validate,
	}
}

// CanManage reports whether the caller owns c or is an admin.
func (svc *Service) CanManage(id auth.Identity, c Course) bool {
	return id.Role == user.RoleAdmin || (id.UserID != "" && c.InstructorID == id.UserID)
}

func (svc *Service) Create(ctx context.Context, id auth.Identity, nc NewCourse) (Course, error) {
	if id.Role != user.RoleInstructor && id.Role != user.RoleAdmin {
		return Course{}, ErrForbidden
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}

	now := nowFunc().UTC()
	c, err := svc.repo.CreateCourse(ctx, Course{
		InstructorID: id.UserID,
		Title:        nc.Title,
		Description:  nc.Description,
		Price:        nc.Price,
		IsPublished:  nc.Publish,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Course{}, core.NewPersistenceError(errors.Wrap(err, "creating course"))
	}
	return c, nil
}

// GetByID returns the course; drafts are only visible to whoever can manage them.
func (svc *Service) GetByID(ctx context.Context, id auth.Identity, courseID string) (Course, error) {
	c, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Course{}, storeErr(err, "getting course")
	}
	if !c.IsPublished && !svc.CanManage(id, c) {
		return Course{}, ErrNotFound
	}
	return c, nil
}

// Query lists published courses, plus the caller's own drafts when filtering by their instructor id.
func (svc *Service) Query(ctx context.Context, id auth.Identity, filter QueryFilter) ([]Course, error) {
	filter.Search = core.CleanString(filter.Search)
	for _, ord := range filter.Ordering {
		if _, ok := OrderingFields[ord.Field]; !ok {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "cannot order by " + ord.Field})
		}
	}
	filter.PublishedOnly = !(id.Role == user.RoleAdmin || (filter.InstructorID != "" && filter.InstructorID == id.UserID))
	courses, err := svc.repo.QueryCourses(ctx, filter)
	if err != nil {
		return nil, core.NewPersistenceError(errors.Wrap(err, "querying courses"))
	}
	return courses, nil
}

func (svc *Service) AddLesson(ctx context.Context, id auth.Identity, courseID string, nl NewLesson) (Lesson, error) {
	c, err := svc.GetByID(ctx, id, courseID)
	if err != nil {
		return Lesson{}, err
	}
	if !svc.CanManage(id, c) {
		return Lesson{}, ErrForbidden
	}
	if err = nl.Validate(svc.validate); err != nil {
		return Lesson{}, err
	}

	var l Lesson
	err = core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		position := 0
		if nl.Position != nil {
			position = *nl.Position
		} else {
			lessons, err := svc.repo.ListLessons(ctx, c.ID, exec)
			if err != nil {
				return core.NewPersistenceError(errors.Wrap(err, "listing lessons"))
			}
			if n := len(lessons); n > 0 {
				position = lessons[n-1].Position + 1
			}
		}

		var err error
		l, err = svc.repo.CreateLesson(ctx, Lesson{
			CourseID:  c.ID,
			Title:     nl.Title,
			Content:   nl.Content,
			Position:  position,
			CreatedAt: nowFunc().UTC(),
		}, exec)
		if err != nil {
			return core.NewPersistenceError(errors.Wrap(err, "creating lesson"))
		}
		return nil
	})
	return l, err
}

func (svc *Service) ListLessons(ctx context.Context, id auth.Identity, courseID string) ([]Lesson, error) {
	c, err := svc.GetByID(ctx, id, courseID)
	if err != nil {
		return nil, err
	}
	lessons, err := svc.repo.ListLessons(ctx, c.ID)
	if err != nil {
		return nil, core.NewPersistenceError(errors.Wrap(err, "listing lessons"))
	}
	return lessons, nil
}

func (svc *Service) GetLesson(ctx context.Context, id auth.Identity, lessonID string) (Lesson, error) {
	l, err := svc.repo.GetLessonByID(ctx, lessonID)
	if err != nil {
		return Lesson{}, storeErr(err, "getting lesson")
	}
	if _, err = svc.GetByID(ctx, id, l.CourseID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Lesson{}, ErrLessonNotFound
		}
		return Lesson{}, err
	}
	return l, nil
}

// ViewLesson records lessonID as the caller's last accessed lesson of its course.
func (svc *Service) ViewLesson(ctx context.Context, id auth.Identity, lessonID string) (progress.Record, error) {
	l, err := svc.GetLesson(ctx, id, lessonID)
	if err != nil {
		return progress.Record{}, err
	}
	enrolled, err := svc.IsEnrolled(ctx, id.UserID, l.CourseID)
	if err != nil {
		return progress.Record{}, err
	}
	if !enrolled {
		return progress.Record{}, ErrNotEnrolled
	}

	return svc.progressSvc.Mutate(ctx, id.UserID, l.CourseID, func(_ core.DBExecutor, rec *progress.Record) error {
		rec.LastLessonID = l.ID
		return nil
	})
}

// Enroll enrolls the caller in a published course and opens their progress record.
// Enrolling twice returns the existing enrollment.
func (svc *Service) Enroll(ctx context.Context, id auth.Identity, courseID string) (Enrollment, error) {
	c, err := svc.GetByID(ctx, id, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.IsPublished {
		return Enrollment{}, core.NewValidationError(errors.New("course is not published"))
	}

	var e Enrollment
	err = core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
		err := svc.repo.CreateEnrollment(ctx, Enrollment{UserID: id.UserID, CourseID: c.ID, CreatedAt: nowFunc().UTC()}, exec)
		if err != nil {
			return core.NewPersistenceError(errors.Wrap(err, "creating enrollment"))
		}
		if err = svc.progressSvc.Ensure(ctx, id.UserID, c.ID, exec); err != nil {
			return err
		}
		e, err = svc.repo.GetEnrollment(ctx, id.UserID, c.ID, exec)
		return storeErr(err, "getting enrollment")
	})
	return e, err
}

func (svc *Service) IsEnrolled(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, userID, courseID, exec...); err != nil {
		if errors.Cause(err) == ErrNotEnrolled {
			return false, nil
		}
		return false, core.NewPersistenceError(errors.Wrap(err, "getting enrollment"))
	}
	return true, nil
}

func (svc *Service) ListEnrollments(ctx context.Context, userID string) ([]Enrollment, error) {
	enrollments, err := svc.repo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, core.NewPersistenceError(errors.Wrap(err, "listing enrollments"))
	}
	return enrollments, nil
}

// GetProgress returns userID's record for courseID. Callers may read their own records;
// course owners and admins may read anyone's.
func (svc *Service) GetProgress(ctx context.Context, id auth.Identity, userID, courseID string) (progress.Record, error) {
	c, err := svc.GetByID(ctx, id, courseID)
	if err != nil {
		return progress.Record{}, err
	}
	if userID != id.UserID && !svc.CanManage(id, c) {
		return progress.Record{}, ErrForbidden
	}
	return svc.progressSvc.Get(ctx, userID, c.ID)
}

// storeErr keeps the package's not found errors and wraps anything else into a core.PersistenceError.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	switch errors.Cause(err) {
	case ErrNotFound, ErrLessonNotFound, ErrNotEnrolled:
		return err
	default:
		return core.NewPersistenceError(errors.Wrap(err, msg))
	}
}
