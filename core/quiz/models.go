package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnhub/backend/core"
)

type QuestionKind string

const (
	MultipleChoice QuestionKind = "multiple_choice"
	FreeText       QuestionKind = "free_text"
)

func (k QuestionKind) Valid() bool {
	return k == MultipleChoice || k == FreeText
}

type Choice struct {
	Key  string `json:"key" validate:"required,notblank"`
	Text string `json:"text" validate:"required"`
}

type Question struct {
	ID       string       `json:"id"`
	QuizID   string       `json:"quizId"`
	Prompt   string       `json:"prompt"`
	Kind     QuestionKind `json:"kind"`
	Choices  []Choice     `json:"choices,omitempty"`
	Answer   string       `json:"answer,omitempty"` // choice key or expected value; hidden from students
	Weight   int          `json:"weight"`
	Position int          `json:"position"`
}

type Quiz struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"courseId"`
	Title        string     `json:"title"`
	MaxAttempts  int        `json:"maxAttempts"`
	TimeLimit    int        `json:"timeLimit,omitempty"` // seconds, 0 = untimed
	PassingScore int        `json:"passingScore"`
	IsPublished  bool       `json:"isPublished"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"createdAt"`             // UTC
	PublishedAt  time.Time  `json:"publishedAt,omitempty"` // UTC
}

func (qz Quiz) TimeLimitDuration() time.Duration {
	return time.Duration(qz.TimeLimit) * time.Second
}

// WithoutAnswers returns a copy of qz with the answer key removed.
func (qz Quiz) WithoutAnswers() Quiz {
	questions := make([]Question, len(qz.Questions))
	for i, q := range qz.Questions {
		q.Answer = ""
		questions[i] = q
	}
	qz.Questions = questions
	return qz
}

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptGraded     AttemptStatus = "graded"
)

type Attempt struct {
	ID           string        `json:"id"`
	QuizID       string        `json:"quizId"`
	UserID       string        `json:"userId"`
	Status       AttemptStatus `json:"status"`
	StartedAt    time.Time     `json:"startedAt"` // UTC
	SubmissionID string        `json:"submissionId,omitempty"`
}

// Submission is one graded attempt. It is never modified once stored.
type Submission struct {
	ID            string            `json:"id"`
	QuizID        string            `json:"quizId"`
	UserID        string            `json:"userId"`
	AttemptID     string            `json:"attemptId"`
	AttemptNumber int               `json:"attemptNumber"`
	Answers       map[string]string `json:"answers"`
	Score         int               `json:"score"`
	TimeExpired   bool              `json:"timeExpired"`
	SubmittedAt   time.Time         `json:"submittedAt"` // UTC
}

// SubmissionResult is what a caller gets back after submitting a quiz.
type SubmissionResult struct {
	SubmissionID      string `json:"submissionId"`
	QuizID            string `json:"quizId"`
	Score             int    `json:"score"`
	Passed            bool   `json:"passed"`
	Attempts          int    `json:"attempts"`
	MaxAttempts       int    `json:"maxAttempts"`
	BestScore         int    `json:"bestScore"`
	CompletionPercent int    `json:"completionPercent"`
	TimeExpired       bool   `json:"timeExpired"`
}

// AttemptState is where a (user, quiz) pair stands.
type AttemptState string

const (
	StateNotStarted AttemptState = "not_started"
	StateInProgress AttemptState = "in_progress"
	StateGraded     AttemptState = "graded"
	StateExhausted  AttemptState = "exhausted"
)

// StateOf derives the state from the number of graded attempts and whether an attempt is running.
func StateOf(attempts, maxAttempts int, running bool) AttemptState {
	switch {
	case attempts >= maxAttempts:
		return StateExhausted
	case running:
		return StateInProgress
	case attempts > 0:
		return StateGraded
	default:
		return StateNotStarted
	}
}

type Status struct {
	QuizID      string       `json:"quizId"`
	State       AttemptState `json:"state"`
	Attempts    int          `json:"attempts"`
	MaxAttempts int          `json:"maxAttempts"`
	BestScore   int          `json:"bestScore"`
	Passed      bool         `json:"passed"`
	OpenAttempt *Attempt     `json:"openAttempt,omitempty"`
}

// NewQuestion contains information needed to add a Question to a NewQuiz.
type NewQuestion struct {
	Prompt  string       `json:"prompt" validate:"required,notblank"`
	Kind    QuestionKind `json:"kind" validate:"required,questionkind"`
	Choices []Choice     `json:"choices" validate:"dive"`
	Answer  string       `json:"answer" validate:"required,notblank"`
	Weight  int          `json:"weight" validate:"gte=0"` // 0 defaults to 1
}

// NewQuiz contains information needed to create a draft Quiz.
type NewQuiz struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
	// 0 picks the configured default
	MaxAttempts int `json:"maxAttempts" validate:"gte=0"`
	// seconds
	TimeLimit int `json:"timeLimit" validate:"gte=0"`
	// nil picks the configured threshold; 0 lets every submission pass
	PassingScore *int          `json:"passingScore" validate:"omitempty,gte=0,lte=100"`
	Questions    []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	for i := range nq.Questions {
		q := &nq.Questions[i]
		q.Prompt = core.CleanString(q.Prompt)
		q.Kind = QuestionKind(core.CleanString(string(q.Kind), true /* lower */))
		q.Answer = core.CleanString(q.Answer)
		for j := range q.Choices {
			q.Choices[j].Key = core.CleanString(q.Choices[j].Key)
		}
	}
	return validate.Struct(nq)
}

// NewSubmission is the payload of a quiz submission.
type NewSubmission struct {
	QuizID      string            `json:"quizId" validate:"required"`
	AttemptID   string            `json:"attemptId"`
	Answers     map[string]string `json:"answers"`
	SubmittedAt time.Time         `json:"-"` // server assigned when zero
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.QuizID = core.CleanString(ns.QuizID)
	ns.AttemptID = core.CleanString(ns.AttemptID)
	return validate.Struct(ns)
}
