package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/learnhub/backend/core"
)

var (
	questionKindTag  = "questionkind"
	questionKindText = "kind must be one of multiple_choice, free_text"

	choicesTag  = "choices"
	choicesText = "multiple choice questions need at least 2 choices with distinct keys"

	noChoicesTag  = "nochoices"
	noChoicesText = "free text questions take no choices"

	answerKeyTag  = "answerkey"
	answerKeyText = "answer must be the key of one of the choices"
)

// InitValidators registers the quiz validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(questionKindTag, questionKindValidation)
	core.RegisterCustomTranslation(validate, translator, questionKindTag, questionKindText)

	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, choicesTag, choicesText)
	core.RegisterCustomTranslation(validate, translator, noChoicesTag, noChoicesText)
	core.RegisterCustomTranslation(validate, translator, answerKeyTag, answerKeyText)
}

func questionKindValidation(fl validator.FieldLevel) bool {
	if kind, ok := fl.Field().Interface().(QuestionKind); ok {
		return kind.Valid()
	}
	return false
}

// questionStructValidation checks that the choices and the answer fit the question kind.
func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}

	switch q.Kind {
	case MultipleChoice:
		keys := make(map[string]struct{}, len(q.Choices))
		for _, c := range q.Choices {
			keys[c.Key] = struct{}{}
		}
		if len(q.Choices) < 2 || len(keys) != len(q.Choices) {
			sl.ReportError(q.Choices, "choices", "Choices", choicesTag, "")
			return
		}
		if _, ok := keys[q.Answer]; !ok && q.Answer != "" {
			sl.ReportError(q.Answer, "answer", "Answer", answerKeyTag, "")
		}
	case FreeText:
		if len(q.Choices) > 0 {
			sl.ReportError(q.Choices, "choices", "Choices", noChoicesTag, "")
		}
	}
}
