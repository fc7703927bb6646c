package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnhub/backend/core"
)

type Course struct {
	ID           string    `json:"id"`
	InstructorID string    `json:"instructorId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        int       `json:"price"` // cents
	IsPublished  bool      `json:"isPublished"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
}

type Lesson struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

type Enrollment struct {
	UserID    string    `json:"userId"`
	CourseID  string    `json:"courseId"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

// OrderingFields are the fields courses can be ordered by.
var OrderingFields = map[string]struct{}{
	"title":     {},
	"price":     {},
	"createdAt": {},
}

// QueryFilter narrows ListCourses. Zero values do not filter.
type QueryFilter struct {
	Search        string
	InstructorID  string
	PublishedOnly bool
	Ordering      []core.DBOrdering
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description"`
	Price       int    `json:"price" validate:"gte=0"`
	Publish     bool   `json:"publish"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// NewLesson contains information needed to add a Lesson to a Course.
type NewLesson struct {
	Title    string `json:"title" validate:"required,notblank,max=200"`
	Content  string `json:"content"`
	Position *int   `json:"position" validate:"omitempty,gte=0"` // appended when missing
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}
