package quiz

import (
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/core"
)

func newTestValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func TestNewQuiz_Validate(t *testing.T) {
	validate, translator := newTestValidator()
	choices := func(keys ...string) []Choice {
		cs := make([]Choice, 0, len(keys))
		for _, k := range keys {
			cs = append(cs, Choice{Key: k, Text: "choice " + k})
		}
		return cs
	}
	newQuiz := func(qs ...NewQuestion) NewQuiz {
		return NewQuiz{Title: "Basics", Questions: qs}
	}

	tests := []struct {
		name      string
		nq        NewQuiz
		wantField string
		wantErr   string
	}{
		{
			name: "valid",
			nq: newQuiz(
				NewQuestion{Prompt: "Pick", Kind: MultipleChoice, Choices: choices("a", "b"), Answer: "b"},
				NewQuestion{Prompt: "Type", Kind: FreeText, Answer: "go"},
			),
		},
		{name: "kind is cleaned", nq: newQuiz(NewQuestion{Prompt: "Type", Kind: " Free_Text ", Answer: "go"})},
		{name: "no title", nq: NewQuiz{Title: "  ", Questions: []NewQuestion{{Prompt: "Type", Kind: FreeText, Answer: "go"}}}, wantField: "title", wantErr: "this field is required"},
		{name: "no questions", nq: NewQuiz{Title: "Empty"}, wantField: "questions", wantErr: "this field is required"},
		{name: "unknown kind", nq: newQuiz(NewQuestion{Prompt: "Huh", Kind: "essay", Answer: "x"}), wantField: "kind", wantErr: questionKindText},
		{name: "single choice", nq: newQuiz(NewQuestion{Prompt: "Pick", Kind: MultipleChoice, Choices: choices("a"), Answer: "a"}), wantField: "choices", wantErr: choicesText},
		{name: "duplicate keys", nq: newQuiz(NewQuestion{Prompt: "Pick", Kind: MultipleChoice, Choices: choices("a", "a"), Answer: "a"}), wantField: "choices", wantErr: choicesText},
		{name: "answer not a key", nq: newQuiz(NewQuestion{Prompt: "Pick", Kind: MultipleChoice, Choices: choices("a", "b"), Answer: "c"}), wantField: "answer", wantErr: answerKeyText},
		{name: "free text with choices", nq: newQuiz(NewQuestion{Prompt: "Type", Kind: FreeText, Choices: choices("a", "b"), Answer: "a"}), wantField: "choices", wantErr: noChoicesText},
		{name: "no answer", nq: newQuiz(NewQuestion{Prompt: "Type", Kind: FreeText}), wantField: "answer", wantErr: "this field is required"},
		{name: "negative weight", nq: newQuiz(NewQuestion{Prompt: "Type", Kind: FreeText, Answer: "go", Weight: -1}), wantField: "weight"},
		{name: "passing score over 100", nq: NewQuiz{Title: "Hard", PassingScore: intPtr(101), Questions: []NewQuestion{{Prompt: "Type", Kind: FreeText, Answer: "go"}}}, wantField: "passingScore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nq := tt.nq
			err := nq.Validate(validate)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "got %T", err)
			require.NotEmpty(t, vErrs)
			assert.Equal(t, tt.wantField, vErrs[0].Field())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, vErrs[0].Translate(translator))
			}
		})
	}
}

func intPtr(i int) *int { return &i }
