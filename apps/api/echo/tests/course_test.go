package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/learnhub/backend/core/course"
	"github.com/learnhub/backend/core/dashboard"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/user"
	testutil "github.com/learnhub/backend/tests"
)

func Test_courseApi_create(t *testing.T) {
	app, env := setup(t)

	instructor := testutil.CreateUser(t, env.UserRepo, "Instructor", "instructor@test.cd", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.cd", pwd, user.RoleStudent, true)

	tests := []httpTest{
		{name: "auth required", body: marchallObj(t, course.NewCourse{Title: "Go"}), wantCode: http.StatusUnauthorized},
		{
			name: "students cannot teach", token: getToken(t, env, student), body: marchallObj(t, course.NewCourse{Title: "Go"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: course.ErrForbidden.Error()}),
		},
		{
			name: "blank title", token: getToken(t, env, instructor), body: marchallObj(t, course.NewCourse{Title: " "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{name: "ok", token: getToken(t, env, instructor), body: marchallObj(t, course.NewCourse{Title: "Go", Price: 1500, Publish: true}), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/courses", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)
			if rec.Code == http.StatusCreated {
				var got course.Course
				unmarshallObj(t, rec.Body.Bytes(), &got)
				assert.Equal(t, instructor.ID, got.InstructorID)
				assert.Equal(t, 1500, got.Price)
				assert.True(t, got.IsPublished)
			}
		})
	}
}

func Test_courseApi_query(t *testing.T) {
	app, env := setup(t)

	instructor := testutil.CreateUser(t, env.UserRepo, "Instructor", "instructor@test.cd", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.cd", pwd, user.RoleStudent, true)
	goCourse := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Go 101", true)
	sqlCourse := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "SQL 101", true)
	testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Rust 101", false)

	studentToken := getToken(t, env, student)
	tests := []httpTest{
		{name: "auth required", path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "published only", path: "/v1/courses?ordering=title", token: studentToken, extra: []string{goCourse.ID, sqlCourse.ID}},
		{name: "search", path: "/v1/courses?search=sql", token: studentToken, extra: []string{sqlCourse.ID}},
		{name: "ordering", path: "/v1/courses?ordering=-title", token: studentToken, extra: []string{sqlCourse.ID, goCourse.ID}},
		{name: "owner sees drafts", path: "/v1/courses?instructor=" + instructor.ID, token: getToken(t, env, instructor), extra: 3},
		{name: "drafts hidden from others", path: "/v1/courses?instructor=" + instructor.ID, token: studentToken, extra: 2},
		{name: "two-field ordering", path: "/v1/courses?ordering=-price,title", token: studentToken, extra: []string{goCourse.ID, sqlCourse.ID}},
		{
			name: "blank ordering field", path: "/v1/courses?ordering=title,,-price", token: studentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"ordering": `invalid ordering "title,,-price"`}),
		},
		{
			name: "unknown ordering field", path: "/v1/courses?ordering=id", token: studentToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"ordering": "cannot order by id"}),
		},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)

			var got []course.Course
			unmarshallObj(t, rec.Body.Bytes(), &got)
			switch want := tt.extra.(type) {
			case []string:
				ids := make([]string, 0, len(got))
				for _, c := range got {
					ids = append(ids, c.ID)
				}
				assert.Equal(t, want, ids)
			case int:
				assert.Len(t, got, want)
			}
		})
	}
}

func Test_courseApi_enrollAndProgress(t *testing.T) {
	app, env := setup(t)

	instructor := testutil.CreateUser(t, env.UserRepo, "Instructor", "instructor@test.cd", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.cd", pwd, user.RoleStudent, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other@test.cd", pwd, user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Go 101", true)
	draft := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Draft", false)
	lesson := testutil.CreateLesson(t, env.CourseRepo, crs.ID, "Intro", 0)

	studentToken := getToken(t, env, student)
	do := func(method, path, token string) int {
		req, rec := newAuthRequest(method, path, token)
		app.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/v1/lessons/"+lesson.ID+"/view", studentToken))
	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/v1/courses/"+draft.ID+"/enroll", studentToken))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", studentToken))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/v1/lessons/"+lesson.ID+"/view", studentToken))

	req, rec := newAuthRequest(http.MethodGet, "/v1/progress/"+crs.ID, studentToken)
	app.ServeHTTP(rec, req)
	checkCode(t, httpTest{wantCode: http.StatusOK}, rec)
	var rec1 progress.Record
	unmarshallObj(t, rec.Body.Bytes(), &rec1)
	assert.Equal(t, student.ID, rec1.UserID)
	assert.Equal(t, lesson.ID, rec1.LastLessonID)

	path := "/v1/progress/" + crs.ID + "/users/" + student.ID
	assert.Equal(t, http.StatusOK, do(http.MethodGet, path, getToken(t, env, instructor)))
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, path, getToken(t, env, other)))
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/v1/progress/"+crs.ID, getToken(t, env, other)))
}

func Test_dashboardApi_retrieve(t *testing.T) {
	app, env := setup(t)

	instructor := testutil.CreateUser(t, env.UserRepo, "Instructor", "instructor@test.cd", pwd, user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.cd", pwd, user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.CourseRepo, instructor.ID, "Go 101", true)
	env.Enroll(t, student.ID, crs.ID)

	tests := []struct {
		name     string
		usr      user.User
		wantView user.DashboardView
	}{
		{name: "student", usr: student, wantView: user.StudentDashboard},
		{name: "instructor", usr: instructor, wantView: user.InstructorDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/me/dashboard", getToken(t, env, tt.usr))
			app.ServeHTTP(rec, req)
			checkCode(t, httpTest{wantCode: http.StatusOK}, rec)

			var got dashboard.Dashboard
			unmarshallObj(t, rec.Body.Bytes(), &got)
			assert.Equal(t, tt.wantView, got.View)
			if tt.wantView == user.StudentDashboard {
				if assert.Len(t, got.Enrolled, 1) {
					assert.Equal(t, crs.ID, got.Enrolled[0].Course.ID)
				}
			} else if assert.Len(t, got.Courses, 1) {
				assert.Equal(t, crs.ID, got.Courses[0].Course.ID)
			}
		})
	}
}
