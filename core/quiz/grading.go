package quiz

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
)

// Grade scores answers against qz's answer key as a 0-100 percentage of the total weight,
// rounding halves up. Unanswered questions score zero.
func Grade(qz Quiz, answers map[string]string) int {
	var awarded, total int
	for _, q := range qz.Questions {
		total += q.Weight
		if given, ok := answers[q.ID]; ok && q.Matches(given) {
			awarded += q.Weight
		}
	}
	return core.Percent(awarded, total)
}

// Matches compares a submitted answer with the question's answer reference.
func (q Question) Matches(given string) bool {
	switch q.Kind {
	case MultipleChoice:
		return given == q.Answer
	case FreeText:
		return normalize(given) == normalize(q.Answer)
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// checkAnswers rejects answers to questions qz does not have.
func checkAnswers(qz Quiz, answers map[string]string) error {
	known := make(map[string]struct{}, len(qz.Questions))
	for _, q := range qz.Questions {
		known[q.ID] = struct{}{}
	}

	var unknown []string
	for id := range answers {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)
	flds := make([]core.FieldError, 0, len(unknown))
	for _, id := range unknown {
		flds = append(flds, core.FieldError{Field: "answers." + id, Error: "unknown question"})
	}
	return core.NewValidationError(errors.New("answers reference unknown questions"), flds...)
}
