package progress

import "time"

// QuizStat is the per quiz part of a Record.
type QuizStat struct {
	Attempts  int `json:"attempts"`
	BestScore int `json:"bestScore"`
}

// Record is the per user, per course progress state.
type Record struct {
	UserID            string              `json:"userId"`
	CourseID          string              `json:"courseId"`
	CompletionPercent int                 `json:"completionPercent"`
	LastLessonID      string              `json:"lastLessonId,omitempty"`
	Quizzes           map[string]QuizStat `json:"quizzes"`
	// compare-and-swap token, bumped on every update
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

// Stat returns the stats of quizID, the zero QuizStat when the quiz was never attempted.
func (r Record) Stat(quizID string) QuizStat {
	return r.Quizzes[quizID]
}

// SetStat replaces the stats of quizID.
func (r *Record) SetStat(quizID string, stat QuizStat) {
	if r.Quizzes == nil {
		r.Quizzes = make(map[string]QuizStat)
	}
	r.Quizzes[quizID] = stat
}
