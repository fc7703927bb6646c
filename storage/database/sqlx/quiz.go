package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/progress"
	"github.com/learnhub/backend/core/quiz"
)

const (
	quizColumns       = "id, course_id, title, max_attempts, time_limit, passing_score, is_published, created_at, published_at"
	questionColumns   = "id, quiz_id, prompt, kind, choices, answer, weight, position"
	attemptColumns    = "id, quiz_id, user_id, status, started_at, submission_id"
	submissionColumns = "id, quiz_id, user_id, attempt_id, attempt_number, answers, score, time_expired, submitted_at"
)

type quizRow struct {
	ID           string    `db:"id"`
	CourseID     string    `db:"course_id"`
	Title        string    `db:"title"`
	MaxAttempts  int       `db:"max_attempts"`
	TimeLimit    null.Int  `db:"time_limit"`
	PassingScore int       `db:"passing_score"`
	IsPublished  bool      `db:"is_published"`
	CreatedAt    time.Time `db:"created_at"`
	PublishedAt  null.Time `db:"published_at"`
}

func (row quizRow) quiz() quiz.Quiz {
	qz := quiz.Quiz{
		ID:           row.ID,
		CourseID:     row.CourseID,
		Title:        row.Title,
		MaxAttempts:  row.MaxAttempts,
		TimeLimit:    row.TimeLimit.Int,
		PassingScore: row.PassingScore,
		IsPublished:  row.IsPublished,
		Questions:    []quiz.Question{},
		CreatedAt:    row.CreatedAt.UTC(),
	}
	if row.PublishedAt.Valid {
		qz.PublishedAt = row.PublishedAt.Time.UTC()
	}
	return qz
}

type questionRow struct {
	ID       string `db:"id"`
	QuizID   string `db:"quiz_id"`
	Prompt   string `db:"prompt"`
	Kind     string `db:"kind"`
	Choices  string `db:"choices"`
	Answer   string `db:"answer"`
	Weight   int    `db:"weight"`
	Position int    `db:"position"`
}

func (row questionRow) question() (quiz.Question, error) {
	q := quiz.Question{
		ID:       row.ID,
		QuizID:   row.QuizID,
		Prompt:   row.Prompt,
		Kind:     quiz.QuestionKind(row.Kind),
		Answer:   row.Answer,
		Weight:   row.Weight,
		Position: row.Position,
	}
	if err := json.Unmarshal([]byte(row.Choices), &q.Choices); err != nil {
		return quiz.Question{}, errors.Wrapf(err, "decoding choices of question %s", row.ID)
	}
	if len(q.Choices) == 0 {
		q.Choices = nil
	}
	return q, nil
}

type attemptRow struct {
	ID           string      `db:"id"`
	QuizID       string      `db:"quiz_id"`
	UserID       string      `db:"user_id"`
	Status       string      `db:"status"`
	StartedAt    time.Time   `db:"started_at"`
	SubmissionID null.String `db:"submission_id"`
}

func (row attemptRow) attempt() quiz.Attempt {
	return quiz.Attempt{
		ID:           row.ID,
		QuizID:       row.QuizID,
		UserID:       row.UserID,
		Status:       quiz.AttemptStatus(row.Status),
		StartedAt:    row.StartedAt.UTC(),
		SubmissionID: row.SubmissionID.String,
	}
}

type submissionRow struct {
	ID            string    `db:"id"`
	QuizID        string    `db:"quiz_id"`
	UserID        string    `db:"user_id"`
	AttemptID     string    `db:"attempt_id"`
	AttemptNumber int       `db:"attempt_number"`
	Answers       string    `db:"answers"`
	Score         int       `db:"score"`
	TimeExpired   bool      `db:"time_expired"`
	SubmittedAt   time.Time `db:"submitted_at"`
}

func (row submissionRow) submission() (quiz.Submission, error) {
	s := quiz.Submission{
		ID:            row.ID,
		QuizID:        row.QuizID,
		UserID:        row.UserID,
		AttemptID:     row.AttemptID,
		AttemptNumber: row.AttemptNumber,
		Score:         row.Score,
		TimeExpired:   row.TimeExpired,
		SubmittedAt:   row.SubmittedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Answers), &s.Answers); err != nil {
		return quiz.Submission{}, errors.Wrapf(err, "decoding answers of submission %s", row.ID)
	}
	return s, nil
}

type quizRepository struct {
	baseRepository
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) *quizRepository {
	return &quizRepository{baseRepository{exec: exec}}
}

func (repo quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	exe := repo.getExec(exec)
	qz.ID = uuid.New().String()
	qz.CreatedAt = qz.CreatedAt.UTC()

	q := exe.Rebind("INSERT INTO quizzes (" + quizColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := exe.ExecContext(ctx, q,
		qz.ID, qz.CourseID, qz.Title, qz.MaxAttempts, null.NewInt(qz.TimeLimit, qz.TimeLimit > 0), qz.PassingScore,
		qz.IsPublished, qz.CreatedAt, null.NewTime(qz.PublishedAt.UTC(), !qz.PublishedAt.IsZero()))
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}

	q = exe.Rebind("INSERT INTO questions (" + questionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	for i := range qz.Questions {
		qs := &qz.Questions[i]
		qs.ID = uuid.New().String()
		qs.QuizID = qz.ID

		choices := qs.Choices
		if choices == nil {
			choices = []quiz.Choice{}
		}
		choicesJSON, err := json.Marshal(choices)
		if err != nil {
			return quiz.Quiz{}, errors.Wrap(err, "encoding choices")
		}
		if _, err = exe.ExecContext(ctx, q,
			qs.ID, qs.QuizID, qs.Prompt, string(qs.Kind), string(choicesJSON), qs.Answer, qs.Weight, qs.Position); err != nil {
			return quiz.Quiz{}, errors.Wrap(err, "inserting question")
		}
	}
	return qz, nil
}

func (repo quizRepository) GetQuizByID(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Quiz, error) {
	exe := repo.getExec(exec)
	var row quizRow
	q := exe.Rebind("SELECT " + quizColumns + " FROM quizzes WHERE id = ?")
	if err := sqlx.GetContext(ctx, exe, &row, q, id); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "getting quiz")
	}

	quizzes := []quiz.Quiz{row.quiz()}
	if err := repo.loadQuestions(ctx, exe, quizzes); err != nil {
		return quiz.Quiz{}, err
	}
	return quizzes[0], nil
}

func (repo quizRepository) ListQuizzes(ctx context.Context, courseID string, publishedOnly bool, exec ...core.DBExecutor) ([]quiz.Quiz, error) {
	exe := repo.getExec(exec)

	q := "SELECT " + quizColumns + " FROM quizzes WHERE course_id = ?"
	args := []interface{}{courseID}
	if publishedOnly {
		q += " AND is_published = ?"
		args = append(args, true)
	}
	q += " ORDER BY created_at, id"

	var rows []quizRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing quizzes")
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.quiz())
	}
	if err := repo.loadQuestions(ctx, exe, quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

// loadQuestions fills the questions of quizzes in one query.
func (repo quizRepository) loadQuestions(ctx context.Context, exe core.DBExecutor, quizzes []quiz.Quiz) error {
	if len(quizzes) == 0 {
		return nil
	}
	ids := make([]string, 0, len(quizzes))
	idx := make(map[string]int, len(quizzes))
	for i, qz := range quizzes {
		ids = append(ids, qz.ID)
		idx[qz.ID] = i
	}

	q, args, err := sqlx.In("SELECT "+questionColumns+" FROM questions WHERE quiz_id IN (?) ORDER BY quiz_id, position", ids)
	if err != nil {
		return errors.Wrap(err, "building questions query")
	}
	var rows []questionRow
	if err = sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "listing questions")
	}
	for _, row := range rows {
		qs, err := row.question()
		if err != nil {
			return err
		}
		i := idx[row.QuizID]
		quizzes[i].Questions = append(quizzes[i].Questions, qs)
	}
	return nil
}

func (repo quizRepository) PublishQuiz(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("UPDATE quizzes SET is_published = ?, published_at = ? WHERE id = ?")
	res, err := exe.ExecContext(ctx, q, true, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "publishing quiz")
	}
	n, err := rowsAffected(res, "publishing quiz")
	if err != nil {
		return err
	}
	if n == 0 {
		return quiz.ErrNotFound
	}
	return nil
}

func (repo quizRepository) PassingScores(ctx context.Context, courseID string, exec ...core.DBExecutor) (map[string]int, error) {
	exe := repo.getExec(exec)
	var rows []struct {
		ID           string `db:"id"`
		PassingScore int    `db:"passing_score"`
	}
	q := exe.Rebind("SELECT id, passing_score FROM quizzes WHERE course_id = ? AND is_published = ?")
	if err := sqlx.SelectContext(ctx, exe, &rows, q, courseID, true); err != nil {
		return nil, errors.Wrap(err, "getting passing scores")
	}
	scores := make(map[string]int, len(rows))
	for _, row := range rows {
		scores[row.ID] = row.PassingScore
	}
	return scores, nil
}

func (repo quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	exe := repo.getExec(exec)
	a.ID = uuid.New().String()
	a.StartedAt = a.StartedAt.UTC()

	q := exe.Rebind("INSERT INTO attempts (" + attemptColumns + ") VALUES (?, ?, ?, ?, ?, ?)")
	_, err := exe.ExecContext(ctx, q,
		a.ID, a.QuizID, a.UserID, string(a.Status), a.StartedAt, null.NewString(a.SubmissionID, a.SubmissionID != ""))
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return a, nil
}

func (repo quizRepository) GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Attempt, error) {
	exe := repo.getExec(exec)
	var row attemptRow
	q := exe.Rebind("SELECT " + attemptColumns + " FROM attempts WHERE id = ?")
	if err := sqlx.GetContext(ctx, exe, &row, q, id); err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrAttemptNotFound, "getting attempt")
	}
	return row.attempt(), nil
}

func (repo quizRepository) GetOpenAttempt(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) (quiz.Attempt, error) {
	exe := repo.getExec(exec)
	var row attemptRow
	q := exe.Rebind(`SELECT ` + attemptColumns + ` FROM attempts
		WHERE user_id = ? AND quiz_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`)
	if err := sqlx.GetContext(ctx, exe, &row, q, userID, quizID, string(quiz.AttemptInProgress)); err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrAttemptNotFound, "getting open attempt")
	}
	return row.attempt(), nil
}

func (repo quizRepository) CloseAttempt(ctx context.Context, attemptID, submissionID string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("UPDATE attempts SET status = ?, submission_id = ? WHERE id = ? AND status = ?")
	res, err := exe.ExecContext(ctx, q,
		string(quiz.AttemptGraded), submissionID, attemptID, string(quiz.AttemptInProgress))
	if err != nil {
		return errors.Wrap(err, "closing attempt")
	}
	n, err := rowsAffected(res, "closing attempt")
	if err != nil {
		return err
	}
	if n == 0 {
		return progress.ErrVersionConflict
	}
	return nil
}

func (repo quizRepository) CreateSubmission(ctx context.Context, s quiz.Submission, exec ...core.DBExecutor) (quiz.Submission, error) {
	exe := repo.getExec(exec)
	s.ID = uuid.New().String()
	s.SubmittedAt = s.SubmittedAt.UTC()
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	answersJSON, err := json.Marshal(s.Answers)
	if err != nil {
		return quiz.Submission{}, errors.Wrap(err, "encoding answers")
	}

	q := exe.Rebind("INSERT INTO submissions (" + submissionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err = exe.ExecContext(ctx, q,
		s.ID, s.QuizID, s.UserID, s.AttemptID, s.AttemptNumber, string(answersJSON), s.Score, s.TimeExpired, s.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) { // another submission took this attempt number
			return quiz.Submission{}, progress.ErrVersionConflict
		}
		return quiz.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo quizRepository) ListSubmissions(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) ([]quiz.Submission, error) {
	exe := repo.getExec(exec)

	q := "SELECT " + submissionColumns + " FROM submissions WHERE quiz_id = ?"
	args := []interface{}{quizID}
	if userID != "" {
		q += " AND user_id = ?"
		args = append(args, userID)
	}
	q += " ORDER BY submitted_at, attempt_number"

	var rows []submissionRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	subs := make([]quiz.Submission, 0, len(rows))
	for _, row := range rows {
		s, err := row.submission()
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}
