package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
)

var (
	// errors
	ErrNotFound        = errors.New("progress record not found")
	ErrVersionConflict = errors.New("progress record was modified concurrently")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// EnsureRecord creates an empty record for (userID, courseID) unless one exists.
		EnsureRecord(ctx context.Context, userID, courseID string, now time.Time, exec ...core.DBExecutor) error
		GetRecord(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Record, error)
		ListRecordsByUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Record, error)
		// UpdateRecord stores rec if the stored version still equals rec.Version, else it returns ErrVersionConflict.
		// The returned record carries the new version.
		UpdateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
	}

	// MutateFunc changes rec inside the transaction opened by Service.Mutate.
	// Returning ErrVersionConflict makes Mutate start over; any other error aborts it.
	MutateFunc func(exec core.DBExecutor, rec *Record) error

	ServiceInterface interface {
		Get(ctx context.Context, userID, courseID string) (Record, error)
		ListByUser(ctx context.Context, userID string) ([]Record, error)
		Ensure(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) error
		Mutate(ctx context.Context, userID, courseID string, fn MutateFunc) (Record, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		retries int
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, conf *core.Config) *Service {
	retries := conf.Quiz.CASRetries
	if retries < 1 {
		retries = 1
	}
	return &Service{db: db, repo: repo, retries: retries}
}

func (svc *Service) Get(ctx context.Context, userID, courseID string) (Record, error) {
	rec, err := svc.repo.GetRecord(ctx, userID, courseID)
	if err != nil {
		return Record{}, persistenceErr(err, "getting progress record")
	}
	return rec, nil
}

func (svc *Service) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	recs, err := svc.repo.ListRecordsByUser(ctx, userID)
	if err != nil {
		return nil, persistenceErr(err, "listing progress records")
	}
	return recs, nil
}

func (svc *Service) Ensure(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) error {
	if err := svc.repo.EnsureRecord(ctx, userID, courseID, nowFunc().UTC(), exec...); err != nil {
		return persistenceErr(err, "ensuring progress record")
	}
	return nil
}

// Mutate loads the (userID, courseID) record in a transaction, lets fn change it and stores it back
// with a compare-and-swap on its version. A lost swap rolls everything fn did back and runs fn again
// on a fresh read. Once the retries are used up, a core.PersistenceError is returned.
func (svc *Service) Mutate(ctx context.Context, userID, courseID string, fn MutateFunc) (Record, error) {
	var saved Record
	for try := 0; try < svc.retries; try++ {
		err := core.WithTx(ctx, svc.db, func(exec core.DBExecutor) error {
			now := nowFunc().UTC()
			if err := svc.repo.EnsureRecord(ctx, userID, courseID, now, exec); err != nil {
				return persistenceErr(err, "ensuring progress record")
			}
			rec, err := svc.repo.GetRecord(ctx, userID, courseID, exec)
			if err != nil {
				return persistenceErr(err, "getting progress record")
			}

			if err = fn(exec, &rec); err != nil {
				return err
			}

			rec.UpdatedAt = now
			saved, err = svc.repo.UpdateRecord(ctx, rec, exec)
			if err != nil && errors.Cause(err) != ErrVersionConflict {
				return persistenceErr(err, "updating progress record")
			}
			return err
		})
		if errors.Cause(err) == ErrVersionConflict {
			if err = ctx.Err(); err != nil {
				return Record{}, core.NewPersistenceError(errors.Wrap(err, "updating progress record"))
			}
			continue
		}
		if err != nil {
			return Record{}, err
		}
		return saved, nil
	}
	return Record{}, core.NewPersistenceError(errors.Wrap(ErrVersionConflict, "updating progress record"))
}

// persistenceErr wraps store failures into a core.PersistenceError; ErrNotFound and already typed errors are kept.
func persistenceErr(err error, msg string) error {
	switch cause := errors.Cause(err); {
	case cause == ErrNotFound, cause == ErrVersionConflict, core.IsPersistence(err):
		return err
	default:
		return core.NewPersistenceError(errors.Wrap(err, msg))
	}
}
