package quiz

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/progress"
)

// SubmitQuiz grades a submission and records it together with the caller's updated progress.
//
// Checks run in order: the quiz must be published (ErrNotFound), the caller enrolled in its
// course (ErrNotEnrolled), the answers must reference known questions (core.ValidationError) and
// the caller must have attempts left (ErrAttemptLimitExceeded). Submissions past a quiz's time
// limit are still graded and recorded, flagged with TimeExpired.
//
// The submission, the attempt counter, the best score and the course completion are written in a
// single transaction guarded by a compare-and-swap on the progress record, so concurrent submissions
// never get more attempts than allowed.
func (svc *Service) SubmitQuiz(ctx context.Context, userID string, ns NewSubmission) (SubmissionResult, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return SubmissionResult{}, err
	}
	submittedAt := ns.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = nowFunc()
	}
	submittedAt = submittedAt.UTC()

	qz, err := svc.getEligibleQuiz(ctx, userID, ns.QuizID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err = checkAnswers(qz, ns.Answers); err != nil {
		return SubmissionResult{}, err
	}

	score := Grade(qz, ns.Answers)
	res := SubmissionResult{
		QuizID:      qz.ID,
		Score:       score,
		Passed:      score >= qz.PassingScore,
		MaxAttempts: qz.MaxAttempts,
	}

	var passedBefore bool
	rec, err := svc.progressSvc.Mutate(ctx, userID, qz.CourseID, func(exec core.DBExecutor, rec *progress.Record) error {
		stat := rec.Stat(qz.ID)
		if stat.Attempts >= qz.MaxAttempts {
			return ErrAttemptLimitExceeded
		}

		att, err := svc.resolveAttempt(ctx, exec, userID, qz, ns.AttemptID, submittedAt)
		if err != nil {
			return err
		}
		timeExpired := qz.TimeLimit > 0 && submittedAt.Sub(att.StartedAt) > qz.TimeLimitDuration()

		sub, err := svc.repo.CreateSubmission(ctx, Submission{
			QuizID:        qz.ID,
			UserID:        userID,
			AttemptID:     att.ID,
			AttemptNumber: stat.Attempts + 1,
			Answers:       ns.Answers,
			Score:         score,
			TimeExpired:   timeExpired,
			SubmittedAt:   submittedAt,
		}, exec)
		if err != nil {
			return storeErr(err, "creating submission")
		}
		if err = svc.repo.CloseAttempt(ctx, att.ID, sub.ID, exec); err != nil {
			return storeErr(err, "closing attempt")
		}

		passedBefore = stat.Attempts > 0 && stat.BestScore >= qz.PassingScore
		stat.Attempts++
		if score > stat.BestScore {
			stat.BestScore = score
		}
		rec.SetStat(qz.ID, stat)

		passing, err := svc.repo.PassingScores(ctx, qz.CourseID, exec)
		if err != nil {
			return storeErr(err, "getting passing scores")
		}
		rec.CompletionPercent = completion(*rec, passing)

		res.SubmissionID = sub.ID
		res.Attempts = stat.Attempts
		res.BestScore = stat.BestScore
		res.TimeExpired = timeExpired
		return nil
	})
	if err != nil {
		return SubmissionResult{}, err
	}
	res.CompletionPercent = rec.CompletionPercent

	if res.Passed && !passedBefore {
		svc.sendPassedMail(ctx, userID, qz, res)
	}
	return res, nil
}

// StartAttempt opens an attempt, or returns the one already running.
// Time limited quizzes must be started before they are submitted.
func (svc *Service) StartAttempt(ctx context.Context, userID, quizID string) (Attempt, error) {
	qz, err := svc.getEligibleQuiz(ctx, userID, quizID)
	if err != nil {
		return Attempt{}, err
	}

	var att Attempt
	_, err = svc.progressSvc.Mutate(ctx, userID, qz.CourseID, func(exec core.DBExecutor, rec *progress.Record) error {
		if rec.Stat(qz.ID).Attempts >= qz.MaxAttempts {
			return ErrAttemptLimitExceeded
		}

		var err error
		att, err = svc.repo.GetOpenAttempt(ctx, userID, qz.ID, exec)
		if err == nil {
			return nil
		}
		if errors.Cause(err) != ErrAttemptNotFound {
			return storeErr(err, "getting open attempt")
		}

		att, err = svc.repo.CreateAttempt(ctx, Attempt{
			QuizID:    qz.ID,
			UserID:    userID,
			Status:    AttemptInProgress,
			StartedAt: nowFunc().UTC(),
		}, exec)
		return storeErr(err, "creating attempt")
	})
	if err != nil {
		return Attempt{}, err
	}
	return att, nil
}

// Status tells where the caller stands with quizID.
func (svc *Service) Status(ctx context.Context, userID, quizID string) (Status, error) {
	qz, err := svc.getEligibleQuiz(ctx, userID, quizID)
	if err != nil {
		return Status{}, err
	}

	rec, err := svc.progressSvc.Get(ctx, userID, qz.CourseID)
	if err != nil && errors.Cause(err) != progress.ErrNotFound {
		return Status{}, err
	}
	stat := rec.Stat(qz.ID)

	st := Status{
		QuizID:      qz.ID,
		Attempts:    stat.Attempts,
		MaxAttempts: qz.MaxAttempts,
		BestScore:   stat.BestScore,
		Passed:      stat.Attempts > 0 && stat.BestScore >= qz.PassingScore,
	}
	att, err := svc.repo.GetOpenAttempt(ctx, userID, qz.ID)
	switch errors.Cause(err) {
	case nil:
		st.OpenAttempt = &att
	case ErrAttemptNotFound:
	default:
		return Status{}, storeErr(err, "getting open attempt")
	}
	st.State = StateOf(st.Attempts, st.MaxAttempts, st.OpenAttempt != nil)
	return st, nil
}

// getEligibleQuiz loads a published quiz of a course userID is enrolled in.
func (svc *Service) getEligibleQuiz(ctx context.Context, userID, quizID string) (Quiz, error) {
	qz, err := svc.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return Quiz{}, storeErr(err, "getting quiz")
	}
	if !qz.IsPublished {
		return Quiz{}, ErrNotFound
	}

	enrolled, err := svc.courseSvc.IsEnrolled(ctx, userID, qz.CourseID)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Quiz{}, ErrNotEnrolled
	}
	return qz, nil
}

// resolveAttempt picks the attempt a submission closes: the given one, the running one or,
// for untimed quizzes, a new one starting now.
func (svc *Service) resolveAttempt(ctx context.Context, exec core.DBExecutor, userID string, qz Quiz, attemptID string, now time.Time) (Attempt, error) {
	if attemptID != "" {
		att, err := svc.repo.GetAttempt(ctx, attemptID, exec)
		if err != nil && errors.Cause(err) != ErrAttemptNotFound {
			return Attempt{}, storeErr(err, "getting attempt")
		}
		if err != nil || att.UserID != userID || att.QuizID != qz.ID {
			return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "attemptId", Error: "unknown attempt"})
		}
		if att.Status != AttemptInProgress {
			return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "attemptId", Error: "attempt already submitted"})
		}
		return att, nil
	}

	att, err := svc.repo.GetOpenAttempt(ctx, userID, qz.ID, exec)
	if err == nil {
		return att, nil
	}
	if errors.Cause(err) != ErrAttemptNotFound {
		return Attempt{}, storeErr(err, "getting open attempt")
	}
	if qz.TimeLimit > 0 {
		return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "attemptId", Error: "attempt not started"})
	}

	att, err = svc.repo.CreateAttempt(ctx, Attempt{
		QuizID:    qz.ID,
		UserID:    userID,
		Status:    AttemptInProgress,
		StartedAt: now,
	}, exec)
	if err != nil {
		return Attempt{}, storeErr(err, "creating attempt")
	}
	return att, nil
}

// completion is the share of the course's published quizzes the record has passed.
func completion(rec progress.Record, passingScores map[string]int) int {
	var passed int
	for quizID, passingScore := range passingScores {
		if stat := rec.Stat(quizID); stat.Attempts > 0 && stat.BestScore >= passingScore {
			passed++
		}
	}
	return core.Percent(passed, len(passingScores))
}

func (svc *Service) sendPassedMail(ctx context.Context, userID string, qz Quiz, res SubmissionResult) {
	if svc.mailSvc == nil || svc.userSvc == nil {
		return
	}
	usr, err := svc.userSvc.GetByID(ctx, userID)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Warn("quiz passed mail not sent", errors.Wrap(err, "getting user"))
		}
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "You passed " + qz.Title,
		TextTemplate: passedTextTmpl,
		HTMLTemplate: passedHTMLTmpl,
		TemplateData: map[string]interface{}{
			"Name":       usr.Name,
			"Quiz":       qz.Title,
			"CourseID":   qz.CourseID,
			"Score":      res.Score,
			"Completion": res.CompletionPercent,
		},
	})
}

const (
	passedTextTmpl = `Hi {{.Data.Name}},

You passed "{{.Data.Quiz}}" with a score of {{.Data.Score}}%. The course is now {{.Data.Completion}}% complete.

Keep going: {{.FrontendBaseURL}}/courses/{{.Data.CourseID}}
`
	passedHTMLTmpl = `<p>Hi {{.Data.Name}},</p>
<p>You passed <strong>{{.Data.Quiz}}</strong> with a score of {{.Data.Score}}%. The course is now {{.Data.Completion}}% complete.</p>
<p><a href="{{.FrontendBaseURL}}/courses/{{.Data.CourseID}}">Keep going</a></p>
`
)
