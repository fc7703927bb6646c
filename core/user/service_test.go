package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/user"
	"github.com/learnhub/backend/tests"
)

const pwd = "Gr8-lesson-plan"

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	usr, err := env.UserSvc.Create(ctx, user.NewUser{Name: "Ama", Email: "ama@test.cd", Password: pwd, Role: user.RoleInstructor})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.Equal(t, user.RoleInstructor, usr.Role)
	assert.NoError(t, usr.CheckPassword(pwd))

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Welcome aboard", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Hi Ama,")
	assert.Contains(t, sent[0].HTMLContent, env.Conf.FrontendBaseURL+"/courses")

	err = env.UserSvc.CheckUniqueness(ctx, "ama@test.cd")
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "email", vErr.Fields[0].Field)
	assert.NoError(t, env.UserSvc.CheckUniqueness(ctx, "ama@test.cd", usr))
	assert.NoError(t, env.UserSvc.CheckUniqueness(ctx, "kofi@test.cd"))

	got, err := env.UserSvc.GetByEmail(ctx, " AMA@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	_, err = env.UserSvc.GetByID(ctx, "nope")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	active := testutil.CreateUser(t, env.UserRepo, "Ama", "ama@test.cd", pwd, user.RoleStudent, true)
	testutil.CreateUser(t, env.UserRepo, "Kofi", "kofi@test.cd", pwd, user.RoleStudent, false)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "nope@test.cd", pwd: pwd, wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", email: "ama@test.cd", pwd: "wrong", wantErr: user.ErrInvalidCredentials},
		{name: "deactivated", email: "kofi@test.cd", pwd: pwd, wantErr: user.ErrAccountDeactivated},
		{name: "ok", email: " Ama@test.cd", pwd: pwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := env.UserSvc.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, usr.ID)
			assert.False(t, usr.LastLogin.IsZero())
		})
	}
}

func TestService_SetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "Ama", "ama@test.cd", pwd, user.RoleStudent, true)

	_, err := env.UserSvc.SetPassword(ctx, user.SetUserPassword{Email: "nope@test.cd", Password: "N3w-lesson-plan"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	updated, err := env.UserSvc.SetPassword(ctx, user.SetUserPassword{Email: usr.Email, Password: "N3w-lesson-plan"})
	require.NoError(t, err)
	assert.NotEqual(t, usr.PasswordHash, updated.PasswordHash)

	_, err = env.UserSvc.Authenticate(ctx, usr.Email, "N3w-lesson-plan")
	assert.NoError(t, err)
	_, err = env.UserSvc.Authenticate(ctx, usr.Email, pwd)
	assert.Equal(t, user.ErrInvalidCredentials, errors.Cause(err))
}
