package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/course"
)

const (
	courseColumns = "id, instructor_id, title, description, price, is_published, created_at, updated_at"
	lessonColumns = "id, course_id, title, content, position, created_at"
)

var courseOrderColumns = map[string]string{
	"title":     "title",
	"price":     "price",
	"createdAt": "created_at",
}

type courseRow struct {
	ID           string    `db:"id"`
	InstructorID string    `db:"instructor_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Price        int       `db:"price"`
	IsPublished  bool      `db:"is_published"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row courseRow) course() course.Course {
	return course.Course{
		ID:           row.ID,
		InstructorID: row.InstructorID,
		Title:        row.Title,
		Description:  row.Description,
		Price:        row.Price,
		IsPublished:  row.IsPublished,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type lessonRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
}

func (row lessonRow) lesson() course.Lesson {
	return course.Lesson{
		ID:        row.ID,
		CourseID:  row.CourseID,
		Title:     row.Title,
		Content:   row.Content,
		Position:  row.Position,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type enrollmentRow struct {
	UserID    string    `db:"user_id"`
	CourseID  string    `db:"course_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (row enrollmentRow) enrollment() course.Enrollment {
	return course.Enrollment{UserID: row.UserID, CourseID: row.CourseID, CreatedAt: row.CreatedAt.UTC()}
}

type courseRepository struct {
	baseRepository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{baseRepository{exec: exec}}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	c.ID = uuid.New().String()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	q := exe.Rebind("INSERT INTO courses (" + courseColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := exe.ExecContext(ctx, q,
		c.ID, c.InstructorID, c.Title, c.Description, c.Price, c.IsPublished, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	var row courseRow
	q := exe.Rebind("SELECT " + courseColumns + " FROM courses WHERE id = ?")
	if err := sqlx.GetContext(ctx, exe, &row, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	exe := repo.getExec(exec)

	var (
		where []string
		args  []interface{}
	)
	if filter.Search != "" {
		val := "%" + strings.ToLower(filter.Search) + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, val, val)
	}
	if filter.InstructorID != "" {
		where = append(where, "instructor_id = ?")
		args = append(args, filter.InstructorID)
	}
	if filter.PublishedOnly {
		where = append(where, "is_published = ?")
		args = append(args, true)
	}

	q := "SELECT " + courseColumns + " FROM courses"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	orderList := make([]string, 0, len(filter.Ordering)+1)
	for _, ord := range filter.Ordering {
		if col, ok := courseOrderColumns[ord.Field]; ok {
			ord.Field = col
			orderList = append(orderList, ord.String())
		}
	}
	orderList = append(orderList, "created_at DESC", "id")
	q += " ORDER BY " + strings.Join(orderList, ", ")

	var rows []courseRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo courseRepository) CreateLesson(ctx context.Context, l course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	exe := repo.getExec(exec)
	l.ID = uuid.New().String()
	l.CreatedAt = l.CreatedAt.UTC()

	q := exe.Rebind("INSERT INTO lessons (" + lessonColumns + ") VALUES (?, ?, ?, ?, ?, ?)")
	if _, err := exe.ExecContext(ctx, q, l.ID, l.CourseID, l.Title, l.Content, l.Position, l.CreatedAt); err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo courseRepository) GetLessonByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Lesson, error) {
	exe := repo.getExec(exec)
	var row lessonRow
	q := exe.Rebind("SELECT " + lessonColumns + " FROM lessons WHERE id = ?")
	if err := sqlx.GetContext(ctx, exe, &row, q, id); err != nil {
		return course.Lesson{}, trapNoRowsErr(err, course.ErrLessonNotFound, "getting lesson")
	}
	return row.lesson(), nil
}

func (repo courseRepository) ListLessons(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Lesson, error) {
	exe := repo.getExec(exec)
	var rows []lessonRow
	q := exe.Rebind("SELECT " + lessonColumns + " FROM lessons WHERE course_id = ? ORDER BY position, created_at, id")
	if err := sqlx.SelectContext(ctx, exe, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "listing lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.lesson())
	}
	return lessons, nil
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO enrollments (user_id, course_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, course_id) DO NOTHING`)
	if _, err := exe.ExecContext(ctx, q, e.UserID, e.CourseID, e.CreatedAt.UTC()); err != nil {
		return errors.Wrap(err, "inserting enrollment")
	}
	return nil
}

func (repo courseRepository) GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	exe := repo.getExec(exec)
	var row enrollmentRow
	q := exe.Rebind("SELECT user_id, course_id, created_at FROM enrollments WHERE user_id = ? AND course_id = ?")
	if err := sqlx.GetContext(ctx, exe, &row, q, userID, courseID); err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrNotEnrolled, "getting enrollment")
	}
	return row.enrollment(), nil
}

func (repo courseRepository) ListEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	exe := repo.getExec(exec)
	var rows []enrollmentRow
	q := exe.Rebind("SELECT user_id, course_id, created_at FROM enrollments WHERE user_id = ? ORDER BY created_at DESC, course_id")
	if err := sqlx.SelectContext(ctx, exe, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.enrollment())
	}
	return enrollments, nil
}
