package progress_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/quiz"
	"github.com/learnhub/backend/core/user"
	"github.com/learnhub/backend/tests"
)

// conflictingRepo loses the first `conflicts` swaps.
type conflictingRepo struct {
	progress.Repository
	conflicts int
	updates   int
}

func (repo *conflictingRepo) UpdateRecord(ctx context.Context, rec progress.Record, exec ...core.DBExecutor) (progress.Record, error) {
	repo.updates++
	if repo.updates <= repo.conflicts {
		return progress.Record{}, progress.ErrVersionConflict
	}
	return repo.Repository.UpdateRecord(ctx, rec, exec...)
}

type fixture struct {
	env      *testutil.Env
	userID   string
	courseID string
	quiz1    string
	quiz2    string
	lessonID string
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.cd", "", user.RoleStudent, true)
	instructor := testutil.CreateUser(t, env.UserRepo, "Instructor", "instructor@test.cd", "", user.RoleInstructor, true)
	c := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Go 101", true)
	return fixture{
		env:      env,
		userID:   usr.ID,
		courseID: c.ID,
		quiz1:    testutil.CreateQuiz(t, env.QuizRepo, c.ID, quiz.Quiz{Title: "One"}, true, testutil.ChoiceQuestion("q1", "a")).ID,
		quiz2:    testutil.CreateQuiz(t, env.QuizRepo, c.ID, quiz.Quiz{Title: "Two"}, true, testutil.ChoiceQuestion("q1", "a")).ID,
		lessonID: testutil.CreateLesson(t, env.CourseRepo, c.ID, "Intro", 0).ID,
	}
}

func TestService_EnsureAndGet(t *testing.T) {
	f := setup(t)
	env, userID, courseID := f.env, f.userID, f.courseID
	ctx := context.Background()

	_, err := env.ProgressSvc.Get(ctx, userID, courseID)
	assert.Equal(t, progress.ErrNotFound, errors.Cause(err))

	require.NoError(t, env.ProgressSvc.Ensure(ctx, userID, courseID))
	require.NoError(t, env.ProgressSvc.Ensure(ctx, userID, courseID))

	rec, err := env.ProgressSvc.Get(ctx, userID, courseID)
	require.NoError(t, err)
	assert.Equal(t, userID, rec.UserID)
	assert.Equal(t, courseID, rec.CourseID)
	assert.Equal(t, 0, rec.CompletionPercent)
	assert.Empty(t, rec.Quizzes)

	recs, err := env.ProgressSvc.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, courseID, recs[0].CourseID)
}

func TestService_Mutate(t *testing.T) {
	f := setup(t)
	env, userID, courseID := f.env, f.userID, f.courseID
	ctx := context.Background()

	// creates the record when missing
	rec, err := env.ProgressSvc.Mutate(ctx, userID, courseID, func(_ core.DBExecutor, rec *progress.Record) error {
		rec.SetStat(f.quiz1, progress.QuizStat{Attempts: 1, BestScore: 40})
		rec.CompletionPercent = 50
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)

	rec, err = env.ProgressSvc.Mutate(ctx, userID, courseID, func(_ core.DBExecutor, rec *progress.Record) error {
		stat := rec.Stat(f.quiz1)
		stat.Attempts++
		rec.SetStat(f.quiz1, stat)
		rec.SetStat(f.quiz2, progress.QuizStat{Attempts: 1, BestScore: 100})
		rec.LastLessonID = f.lessonID
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)

	got, err := env.ProgressSvc.Get(ctx, userID, courseID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.CompletionPercent)
	assert.Equal(t, f.lessonID, got.LastLessonID)
	assert.Equal(t, map[string]progress.QuizStat{
		f.quiz1: {Attempts: 2, BestScore: 40},
		f.quiz2: {Attempts: 1, BestScore: 100},
	}, got.Quizzes)

	// errors abort without writing
	errBoom := errors.New("boom")
	_, err = env.ProgressSvc.Mutate(ctx, userID, courseID, func(_ core.DBExecutor, rec *progress.Record) error {
		rec.CompletionPercent = 100
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	got, err = env.ProgressSvc.Get(ctx, userID, courseID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.CompletionPercent)
}

func TestService_Mutate_Retries(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantCalls int
		wantErr   bool
	}{
		{name: "no conflict", conflicts: 0, wantCalls: 1},
		{name: "retried", conflicts: 3, wantCalls: 4},
		{name: "retries exhausted", conflicts: 100, wantCalls: 8, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			env, userID, courseID := f.env, f.userID, f.courseID
			ctx := context.Background()
			repo := &conflictingRepo{Repository: env.ProgressRepo, conflicts: tt.conflicts}
			svc := progress.NewService(env.DB, repo, env.Conf)

			var calls int
			_, err := svc.Mutate(ctx, userID, courseID, func(_ core.DBExecutor, rec *progress.Record) error {
				calls++
				stat := rec.Stat(f.quiz1)
				stat.Attempts++
				rec.SetStat(f.quiz1, stat)
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)

			got, getErr := env.ProgressSvc.Get(ctx, userID, courseID)
			if tt.wantErr {
				assert.True(t, core.IsPersistence(err), "got %v", err)
				// every lost swap was rolled back, the record included
				assert.Equal(t, progress.ErrNotFound, errors.Cause(getErr))
				return
			}
			require.NoError(t, err)
			require.NoError(t, getErr)
			assert.Equal(t, 1, got.Stat(f.quiz1).Attempts)
		})
	}
}
