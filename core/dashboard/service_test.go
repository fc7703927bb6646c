package dashboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/core/quiz"
	"github.com/learnhub/backend/core/user"
	"github.com/learnhub/backend/tests"
)

func TestService_Get(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	instructor := testutil.CreateUser(t, env.UserRepo, "Instructor", "instructor@test.cd", "", user.RoleInstructor, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other@test.cd", "", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.cd", "", user.RoleStudent, true)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)

	goCourse := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Go 101", true)
	draft := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Go Draft", false)
	rust := testutil.CreateCourse(t, env.CourseRepo, other.ID, "Rust 101", true)
	testutil.CreateQuiz(t, env.QuizRepo, goCourse.ID, quiz.Quiz{Title: "One"}, true, testutil.ChoiceQuestion("q1", "a"))
	testutil.CreateQuiz(t, env.QuizRepo, goCourse.ID, quiz.Quiz{Title: "Two"}, false, testutil.ChoiceQuestion("q1", "a"))
	env.Enroll(t, student.ID, goCourse.ID)

	t.Run("student", func(t *testing.T) {
		d, err := env.DashboardSvc.Get(ctx, testutil.Identity(student))
		require.NoError(t, err)
		assert.Equal(t, user.StudentDashboard, d.View)
		assert.Empty(t, d.Courses)
		require.Len(t, d.Enrolled, 1)
		assert.Equal(t, goCourse.ID, d.Enrolled[0].Course.ID)
		assert.Equal(t, student.ID, d.Enrolled[0].Progress.UserID)
	})

	t.Run("instructor", func(t *testing.T) {
		d, err := env.DashboardSvc.Get(ctx, testutil.Identity(instructor))
		require.NoError(t, err)
		assert.Equal(t, user.InstructorDashboard, d.View)
		assert.Empty(t, d.Enrolled)
		require.Len(t, d.Courses, 2)
		counts := map[string][2]int{}
		for _, c := range d.Courses {
			counts[c.Course.ID] = [2]int{c.PublishedQuizzes, c.DraftQuizzes}
		}
		assert.Equal(t, map[string][2]int{goCourse.ID: {1, 1}, draft.ID: {0, 0}}, counts)
	})

	t.Run("admin", func(t *testing.T) {
		d, err := env.DashboardSvc.Get(ctx, testutil.Identity(admin))
		require.NoError(t, err)
		assert.Equal(t, user.AdminDashboard, d.View)
		ids := make([]string, 0, len(d.Courses))
		for _, c := range d.Courses {
			ids = append(ids, c.Course.ID)
		}
		assert.ElementsMatch(t, []string{goCourse.ID, draft.ID, rust.ID}, ids)
	})
}
