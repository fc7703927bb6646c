package quiz

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/core"
)

func choiceQuestion(id, answer string, weight int) Question {
	return Question{
		ID:      id,
		Kind:    MultipleChoice,
		Choices: []Choice{{Key: "a"}, {Key: "b"}, {Key: "c"}},
		Answer:  answer,
		Weight:  weight,
	}
}

func TestGrade(t *testing.T) {
	twoEqual := Quiz{Questions: []Question{choiceQuestion("q1", "a", 1), choiceQuestion("q2", "b", 1)}}
	fourEqual := Quiz{Questions: []Question{
		choiceQuestion("q1", "a", 1), choiceQuestion("q2", "b", 1),
		choiceQuestion("q3", "c", 1), choiceQuestion("q4", "a", 1),
	}}
	weighted := Quiz{Questions: []Question{choiceQuestion("q1", "a", 3), choiceQuestion("q2", "b", 2)}}
	thirds := Quiz{Questions: []Question{
		choiceQuestion("q1", "a", 1), choiceQuestion("q2", "b", 1), choiceQuestion("q3", "c", 1),
	}}
	halves := Quiz{Questions: []Question{
		choiceQuestion("q1", "a", 1), choiceQuestion("q2", "a", 1), choiceQuestion("q3", "a", 1), choiceQuestion("q4", "a", 1),
		choiceQuestion("q5", "a", 1), choiceQuestion("q6", "a", 1), choiceQuestion("q7", "a", 1), choiceQuestion("q8", "a", 1),
	}}
	freeText := Quiz{Questions: []Question{
		{ID: "q1", Kind: FreeText, Answer: "Kinshasa", Weight: 1},
		{ID: "q2", Kind: FreeText, Answer: "go", Weight: 1},
	}}

	tests := []struct {
		name    string
		quiz    Quiz
		answers map[string]string
		want    int
	}{
		{name: "half right", quiz: twoEqual, answers: map[string]string{"q1": "a", "q2": "c"}, want: 50},
		{name: "all right", quiz: twoEqual, answers: map[string]string{"q1": "a", "q2": "b"}, want: 100},
		{name: "empty answers", quiz: fourEqual, answers: map[string]string{}, want: 0},
		{name: "nil answers", quiz: fourEqual, want: 0},
		{name: "partial answers", quiz: fourEqual, answers: map[string]string{"q1": "a", "q3": "c"}, want: 50},
		{name: "weights", quiz: weighted, answers: map[string]string{"q1": "a", "q2": "c"}, want: 60},
		{name: "rounds down below half", quiz: thirds, answers: map[string]string{"q1": "a"}, want: 33},
		{name: "rounds up above half", quiz: thirds, answers: map[string]string{"q1": "a", "q2": "b"}, want: 67},
		{name: "half rounds up", quiz: halves, answers: map[string]string{"q1": "a"}, want: 13},
		{name: "choice is exact match", quiz: twoEqual, answers: map[string]string{"q1": "A", "q2": " b"}, want: 0},
		{name: "free text normalized", quiz: freeText, answers: map[string]string{"q1": "  kinSHASA ", "q2": "GO"}, want: 100},
		{name: "free text mismatch", quiz: freeText, answers: map[string]string{"q1": "Kin shasa", "q2": "go"}, want: 50},
		{name: "no questions", quiz: Quiz{}, answers: map[string]string{"q1": "a"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Grade(tt.quiz, tt.answers))
		})
	}
}

func TestGrade_Idempotent(t *testing.T) {
	qz := Quiz{Questions: []Question{choiceQuestion("q1", "a", 2), {ID: "q2", Kind: FreeText, Answer: "yes", Weight: 1}}}
	answers := map[string]string{"q1": "a", "q2": " Yes"}

	first := Grade(qz, answers)
	second := Grade(qz, answers)
	assert.Equal(t, first, second)
	assert.Equal(t, 100, first)
}

func TestGrade_PassingBoundary(t *testing.T) {
	// 3 of 5 equal weights is exactly 60
	qz := Quiz{PassingScore: 60, Questions: []Question{
		choiceQuestion("q1", "a", 1), choiceQuestion("q2", "a", 1), choiceQuestion("q3", "a", 1),
		choiceQuestion("q4", "a", 1), choiceQuestion("q5", "a", 1),
	}}

	score := Grade(qz, map[string]string{"q1": "a", "q2": "a", "q3": "a"})
	assert.Equal(t, 60, score)
	assert.True(t, score >= qz.PassingScore)

	score = Grade(qz, map[string]string{"q1": "a", "q2": "a"})
	assert.Equal(t, 40, score)
	assert.False(t, score >= qz.PassingScore)
}

func Test_checkAnswers(t *testing.T) {
	qz := Quiz{Questions: []Question{choiceQuestion("q1", "a", 1), choiceQuestion("q2", "b", 1)}}

	assert.NoError(t, checkAnswers(qz, nil))
	assert.NoError(t, checkAnswers(qz, map[string]string{"q1": "c"}))

	err := checkAnswers(qz, map[string]string{"q1": "a", "zz": "b", "q9": "c"})
	require.Error(t, err)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, []core.FieldError{
		{Field: "answers.q9", Error: "unknown question"},
		{Field: "answers.zz", Error: "unknown question"},
	}, vErr.Fields)
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		max      int
		running  bool
		want     AttemptState
	}{
		{name: "fresh", attempts: 0, max: 3, want: StateNotStarted},
		{name: "running first", attempts: 0, max: 3, running: true, want: StateInProgress},
		{name: "graded", attempts: 1, max: 3, want: StateGraded},
		{name: "running again", attempts: 2, max: 3, running: true, want: StateInProgress},
		{name: "exhausted", attempts: 3, max: 3, want: StateExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(tt.attempts, tt.max, tt.running))
		})
	}
}
