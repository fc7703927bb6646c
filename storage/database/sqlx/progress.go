package sqlxrepos

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/progress"
)

const progressColumns = "user_id, course_id, completion_percent, last_lesson_id, version, created_at, updated_at"

type progressRow struct {
	UserID            string      `db:"user_id"`
	CourseID          string      `db:"course_id"`
	CompletionPercent int         `db:"completion_percent"`
	LastLessonID      null.String `db:"last_lesson_id"`
	Version           int         `db:"version"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func (row progressRow) record() progress.Record {
	return progress.Record{
		UserID:            row.UserID,
		CourseID:          row.CourseID,
		CompletionPercent: row.CompletionPercent,
		LastLessonID:      row.LastLessonID.String,
		Quizzes:           make(map[string]progress.QuizStat),
		Version:           row.Version,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

type quizProgressRow struct {
	CourseID  string `db:"course_id"`
	QuizID    string `db:"quiz_id"`
	Attempts  int    `db:"attempts"`
	BestScore int    `db:"best_score"`
}

type progressRepository struct {
	baseRepository
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{baseRepository{exec: exec}}
}

func (repo progressRepository) EnsureRecord(ctx context.Context, userID, courseID string, now time.Time, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`INSERT INTO progress (` + progressColumns + `) VALUES (?, ?, 0, NULL, 0, ?, ?)
		ON CONFLICT (user_id, course_id) DO NOTHING`)
	if _, err := exe.ExecContext(ctx, q, userID, courseID, now.UTC(), now.UTC()); err != nil {
		return errors.Wrap(err, "inserting progress record")
	}
	return nil
}

func (repo progressRepository) GetRecord(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (progress.Record, error) {
	exe := repo.getExec(exec)

	var row progressRow
	q := exe.Rebind("SELECT " + progressColumns + " FROM progress WHERE user_id = ? AND course_id = ?")
	if err := sqlx.GetContext(ctx, exe, &row, q, userID, courseID); err != nil {
		return progress.Record{}, trapNoRowsErr(err, progress.ErrNotFound, "getting progress record")
	}

	var stats []quizProgressRow
	q = exe.Rebind("SELECT course_id, quiz_id, attempts, best_score FROM quiz_progress WHERE user_id = ? AND course_id = ?")
	if err := sqlx.SelectContext(ctx, exe, &stats, q, userID, courseID); err != nil {
		return progress.Record{}, errors.Wrap(err, "getting quiz progress")
	}

	rec := row.record()
	for _, st := range stats {
		rec.Quizzes[st.QuizID] = progress.QuizStat{Attempts: st.Attempts, BestScore: st.BestScore}
	}
	return rec, nil
}

func (repo progressRepository) ListRecordsByUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]progress.Record, error) {
	exe := repo.getExec(exec)

	var rows []progressRow
	q := exe.Rebind("SELECT " + progressColumns + " FROM progress WHERE user_id = ? ORDER BY updated_at DESC, course_id")
	if err := sqlx.SelectContext(ctx, exe, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing progress records")
	}

	var stats []quizProgressRow
	q = exe.Rebind("SELECT course_id, quiz_id, attempts, best_score FROM quiz_progress WHERE user_id = ?")
	if err := sqlx.SelectContext(ctx, exe, &stats, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing quiz progress")
	}

	recs := make([]progress.Record, 0, len(rows))
	idx := make(map[string]int, len(rows))
	for i, row := range rows {
		recs = append(recs, row.record())
		idx[row.CourseID] = i
	}
	for _, st := range stats {
		if i, ok := idx[st.CourseID]; ok {
			recs[i].Quizzes[st.QuizID] = progress.QuizStat{Attempts: st.Attempts, BestScore: st.BestScore}
		}
	}
	return recs, nil
}

func (repo progressRepository) UpdateRecord(ctx context.Context, rec progress.Record, exec ...core.DBExecutor) (progress.Record, error) {
	exe := repo.getExec(exec)
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	q := exe.Rebind(`UPDATE progress
		SET completion_percent = ?, last_lesson_id = ?, updated_at = ?, version = version + 1
		WHERE user_id = ? AND course_id = ? AND version = ?`)
	res, err := exe.ExecContext(ctx, q,
		rec.CompletionPercent, null.NewString(rec.LastLessonID, rec.LastLessonID != ""), rec.UpdatedAt,
		rec.UserID, rec.CourseID, rec.Version)
	if err != nil {
		return progress.Record{}, errors.Wrap(err, "updating progress record")
	}
	n, err := rowsAffected(res, "updating progress record")
	if err != nil {
		return progress.Record{}, err
	}
	if n == 0 {
		return progress.Record{}, progress.ErrVersionConflict
	}
	rec.Version++

	// stable order keeps concurrent writers locking rows the same way
	quizIDs := make([]string, 0, len(rec.Quizzes))
	for id := range rec.Quizzes {
		quizIDs = append(quizIDs, id)
	}
	sort.Strings(quizIDs)

	q = exe.Rebind(`INSERT INTO quiz_progress (user_id, course_id, quiz_id, attempts, best_score) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, quiz_id) DO UPDATE SET attempts = excluded.attempts, best_score = excluded.best_score`)
	for _, id := range quizIDs {
		st := rec.Quizzes[id]
		if _, err = exe.ExecContext(ctx, q, rec.UserID, rec.CourseID, id, st.Attempts, st.BestScore); err != nil {
			return progress.Record{}, errors.Wrap(err, "upserting quiz progress")
		}
	}
	return rec, nil
}
