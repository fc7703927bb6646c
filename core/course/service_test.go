package course_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/user"
	"github.com/learnhub/backend/tests"
)

type fixture struct {
	env        *testutil.Env
	instructor auth.Identity
	other      auth.Identity
	student    auth.Identity
	admin      auth.Identity
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	return fixture{
		env:        env,
		instructor: testutil.Identity(testutil.CreateUser(t, env.UserRepo, "Instructor", "instructor@test.cd", "", user.RoleInstructor, true)),
		other:      testutil.Identity(testutil.CreateUser(t, env.UserRepo, "Other", "other@test.cd", "", user.RoleInstructor, true)),
		student:    testutil.Identity(testutil.CreateUser(t, env.UserRepo, "Student", "student@test.cd", "", user.RoleStudent, true)),
		admin:      testutil.Identity(testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)),
	}
}

func titles(courses []course.Course) []string {
	ts := make([]string, 0, len(courses))
	for _, c := range courses {
		ts = append(ts, c.Title)
	}
	return ts
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.env.CourseSvc.Create(ctx, f.student, course.NewCourse{Title: "Nope"})
	assert.Equal(t, course.ErrForbidden, errors.Cause(err))

	_, err = f.env.CourseSvc.Create(ctx, f.instructor, course.NewCourse{Title: "   "})
	_, ok := err.(validator.ValidationErrors)
	assert.True(t, ok, "got %v", err)

	_, err = f.env.CourseSvc.Create(ctx, f.instructor, course.NewCourse{Title: "Priced", Price: -1})
	_, ok = err.(validator.ValidationErrors)
	assert.True(t, ok, "got %v", err)

	c, err := f.env.CourseSvc.Create(ctx, f.instructor, course.NewCourse{Title: " Go 101 ", Description: "basics", Price: 1500})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Go 101", c.Title)
	assert.Equal(t, f.instructor.UserID, c.InstructorID)
	assert.False(t, c.IsPublished)

	// drafts are only visible to their owner and admins
	for _, id := range []auth.Identity{f.instructor, f.admin} {
		_, err = f.env.CourseSvc.GetByID(ctx, id, c.ID)
		assert.NoError(t, err)
	}
	for _, id := range []auth.Identity{f.other, f.student} {
		_, err = f.env.CourseSvc.GetByID(ctx, id, c.ID)
		assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	}
	_, err = f.env.CourseSvc.GetByID(ctx, f.admin, "nope")
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, nc := range []struct {
		owner     string
		title     string
		price     int
		published bool
	}{
		{f.instructor.UserID, "Go Basics", 1000, true},
		{f.instructor.UserID, "Advanced Go", 3000, true},
		{f.instructor.UserID, "Go Draft", 500, false},
		{f.other.UserID, "Rust Basics", 2000, true},
	} {
		_, err := f.env.CourseRepo.CreateCourse(ctx, course.Course{
			InstructorID: nc.owner, Title: nc.title, Price: nc.price, IsPublished: nc.published, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}
	byTitle := []core.DBOrdering{{Field: "title", Ascending: true}}

	tests := []struct {
		name    string
		id      auth.Identity
		filter  course.QueryFilter
		want    []string
		wantErr bool
	}{
		{name: "students see published", id: f.student, filter: course.QueryFilter{Ordering: byTitle}, want: []string{"Advanced Go", "Go Basics", "Rust Basics"}},
		{name: "admins see all", id: f.admin, filter: course.QueryFilter{Ordering: byTitle}, want: []string{"Advanced Go", "Go Basics", "Go Draft", "Rust Basics"}},
		{name: "owner sees own drafts", id: f.instructor, filter: course.QueryFilter{InstructorID: f.instructor.UserID, Ordering: byTitle}, want: []string{"Advanced Go", "Go Basics", "Go Draft"}},
		{name: "others drafts stay hidden", id: f.other, filter: course.QueryFilter{InstructorID: f.instructor.UserID, Ordering: byTitle}, want: []string{"Advanced Go", "Go Basics"}},
		{name: "search", id: f.student, filter: course.QueryFilter{Search: " BASICS ", Ordering: byTitle}, want: []string{"Go Basics", "Rust Basics"}},
		{name: "price descending", id: f.student, filter: course.QueryFilter{Ordering: []core.DBOrdering{{Field: "price"}}}, want: []string{"Advanced Go", "Rust Basics", "Go Basics"}},
		{name: "unknown ordering", id: f.student, filter: course.QueryFilter{Ordering: []core.DBOrdering{{Field: "password"}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := f.env.CourseSvc.Query(ctx, tt.id, tt.filter)
			if tt.wantErr {
				_, ok := errors.Cause(err).(*core.ValidationError)
				assert.True(t, ok, "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(courses))
		})
	}
}

func TestService_Lessons(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := testutil.CreateCourse(t, f.env.CourseRepo, f.instructor.UserID, "Go 101", true)

	_, err := f.env.CourseSvc.AddLesson(ctx, f.other, c.ID, course.NewLesson{Title: "Intruder"})
	assert.Equal(t, course.ErrForbidden, errors.Cause(err))

	first, err := f.env.CourseSvc.AddLesson(ctx, f.instructor, c.ID, course.NewLesson{Title: "Setup"})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)
	second, err := f.env.CourseSvc.AddLesson(ctx, f.instructor, c.ID, course.NewLesson{Title: "Types"})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)
	zero := 0
	intro, err := f.env.CourseSvc.AddLesson(ctx, f.admin, c.ID, course.NewLesson{Title: "Intro", Position: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0, intro.Position)

	lessons, err := f.env.CourseSvc.ListLessons(ctx, f.student, c.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 3)
	assert.Equal(t, "Types", lessons[2].Title)

	got, err := f.env.CourseSvc.GetLesson(ctx, f.student, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Types", got.Title)
	_, err = f.env.CourseSvc.GetLesson(ctx, f.student, "nope")
	assert.Equal(t, course.ErrLessonNotFound, errors.Cause(err))

	// viewing needs an enrollment and records the last lesson
	_, err = f.env.CourseSvc.ViewLesson(ctx, f.student, second.ID)
	assert.Equal(t, course.ErrNotEnrolled, errors.Cause(err))
	f.env.Enroll(t, f.student.UserID, c.ID)
	rec, err := f.env.CourseSvc.ViewLesson(ctx, f.student, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, rec.LastLessonID)

	// lessons of drafts are hidden
	draft := testutil.CreateCourse(t, f.env.CourseRepo, f.instructor.UserID, "Draft", false)
	hidden := testutil.CreateLesson(t, f.env.CourseRepo, draft.ID, "Secret", 0)
	_, err = f.env.CourseSvc.GetLesson(ctx, f.student, hidden.ID)
	assert.Equal(t, course.ErrLessonNotFound, errors.Cause(err))
}

func TestService_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := testutil.CreateCourse(t, f.env.CourseRepo, f.instructor.UserID, "Go 101", true)
	draft := testutil.CreateCourse(t, f.env.CourseRepo, f.instructor.UserID, "Draft", false)

	_, err := f.env.CourseSvc.Enroll(ctx, f.student, draft.ID)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))

	// owners see their drafts but cannot enroll in them
	_, err = f.env.CourseSvc.Enroll(ctx, f.instructor, draft.ID)
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok, "got %v", err)

	enrolled, err := f.env.CourseSvc.IsEnrolled(ctx, f.student.UserID, c.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	e, err := f.env.CourseSvc.Enroll(ctx, f.student, c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.student.UserID, e.UserID)
	again, err := f.env.CourseSvc.Enroll(ctx, f.student, c.ID)
	require.NoError(t, err)
	assert.True(t, e.CreatedAt.Equal(again.CreatedAt))

	enrolled, err = f.env.CourseSvc.IsEnrolled(ctx, f.student.UserID, c.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	enrollments, err := f.env.CourseSvc.ListEnrollments(ctx, f.student.UserID)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, c.ID, enrollments[0].CourseID)

	// enrolling opens the progress record
	rec, err := f.env.CourseSvc.GetProgress(ctx, f.student, f.student.UserID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CompletionPercent)

	_, err = f.env.CourseSvc.GetProgress(ctx, f.other, f.student.UserID, c.ID)
	assert.Equal(t, course.ErrForbidden, errors.Cause(err))
	_, err = f.env.CourseSvc.GetProgress(ctx, f.instructor, f.student.UserID, c.ID)
	assert.NoError(t, err)
	_, err = f.env.CourseSvc.GetProgress(ctx, f.admin, f.admin.UserID, c.ID)
	assert.Equal(t, progress.ErrNotFound, errors.Cause(err))
}
