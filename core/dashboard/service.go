package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/quiz"
	"github.com/learnhub/backend/core/user"
)

type (
	// EnrolledCourse is a student dashboard entry.
	EnrolledCourse struct {
		Course   course.Course   `json:"course"`
		Progress progress.Record `json:"progress"`
	}

	// TaughtCourse is an instructor or admin dashboard entry.
	TaughtCourse struct {
		Course           course.Course `json:"course"`
		PublishedQuizzes int           `json:"publishedQuizzes"`
		DraftQuizzes     int           `json:"draftQuizzes"`
	}

	Dashboard struct {
		View     user.DashboardView `json:"view"`
		Enrolled []EnrolledCourse   `json:"enrolled,omitempty"`
		Courses  []TaughtCourse     `json:"courses,omitempty"`
	}

	ServiceInterface interface {
		Get(ctx context.Context, id auth.Identity) (Dashboard, error)
	}

	Service struct {
		courseSvc   course.ServiceInterface
		quizSvc     quiz.ServiceInterface
		progressSvc progress.ServiceInterface
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(courseSvc course.ServiceInterface, quizSvc quiz.ServiceInterface, progressSvc progress.ServiceInterface) *Service {
	return &Service{
		courseSvc:   courseSvc,
		quizSvc:     quizSvc,
		progressSvc: progressSvc,
	}
}

// Get builds the dashboard view picked for the caller's role.
func (svc *Service) Get(ctx context.Context, id auth.Identity) (Dashboard, error) {
	d := Dashboard{View: user.DashboardFor(id.Role)}

	var err error
	switch d.View {
	case user.StudentDashboard:
		d.Enrolled, err = svc.enrolled(ctx, id)
	case user.InstructorDashboard:
		d.Courses, err = svc.taught(ctx, id, course.QueryFilter{InstructorID: id.UserID})
	case user.AdminDashboard:
		d.Courses, err = svc.taught(ctx, id, course.QueryFilter{})
	}
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func (svc *Service) enrolled(ctx context.Context, id auth.Identity) ([]EnrolledCourse, error) {
	enrollments, err := svc.courseSvc.ListEnrollments(ctx, id.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	records, err := svc.progressSvc.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "listing progress records")
	}
	byCourse := make(map[string]progress.Record, len(records))
	for _, rec := range records {
		byCourse[rec.CourseID] = rec
	}

	entries := make([]EnrolledCourse, 0, len(enrollments))
	for _, e := range enrollments {
		c, err := svc.courseSvc.GetByID(ctx, id, e.CourseID)
		if err != nil {
			if errors.Cause(err) == course.ErrNotFound { // unpublished since
				continue
			}
			return nil, errors.Wrap(err, "getting course")
		}
		rec, ok := byCourse[c.ID]
		if !ok {
			rec = progress.Record{UserID: id.UserID, CourseID: c.ID}
		}
		entries = append(entries, EnrolledCourse{Course: c, Progress: rec})
	}
	return entries, nil
}

func (svc *Service) taught(ctx context.Context, id auth.Identity, filter course.QueryFilter) ([]TaughtCourse, error) {
	courses, err := svc.courseSvc.Query(ctx, id, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	entries := make([]TaughtCourse, 0, len(courses))
	for _, c := range courses {
		quizzes, err := svc.quizSvc.List(ctx, id, c.ID)
		if err != nil {
			return nil, errors.Wrap(err, "listing quizzes")
		}
		entry := TaughtCourse{Course: c}
		for _, qz := range quizzes {
			if qz.IsPublished {
				entry.PublishedQuizzes++
			} else {
				entry.DraftQuizzes++
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
