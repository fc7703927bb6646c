package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/course"
)

const orderingParam = "ordering"

// bindCourseFilter reads ?search=, ?instructor= and ?ordering= into a course.QueryFilter.
// Which fields courses may be ordered by is left to course.Service.Query.
func bindCourseFilter(ctx echo.Context) (course.QueryFilter, error) {
	var filter course.QueryFilter
	var ordering string
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("instructor", &filter.InstructorID).
		String(orderingParam, &ordering).
		BindError()
	if err != nil {
		return course.QueryFilter{}, err
	}
	filter.Ordering, err = parseOrdering(ordering)
	if err != nil {
		return course.QueryFilter{}, err
	}
	return filter, nil
}

// parseOrdering turns "title,-createdAt" into ascending title then descending createdAt.
// Blank and repeated fields are rejected.
func parseOrdering(raw string) ([]core.DBOrdering, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	fields := strings.Split(raw, ",")
	orderings := make([]core.DBOrdering, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" || seen[field] {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: orderingParam,
				Error: "invalid ordering " + strconv.Quote(raw),
			})
		}
		seen[field] = true
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings, nil
}
