package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/user"
)

const userColumns = "id, name, email, role, is_active, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         string(usr.Role),
		IsActive:     usr.IsActive,
		PasswordHash: string(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         user.Role(row.Role),
		IsActive:     row.IsActive,
		PasswordHash: []byte(row.PasswordHash),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	q := "SELECT COUNT(*) FROM users WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		q, args, err = sqlx.In(q+" AND id NOT IN (?)", email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
	}

	var count int
	if err := sqlx.GetContext(ctx, exe, &count, exe.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)

	q := exe.Rebind("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := exe.ExecContext(ctx, q,
		row.ID, row.Name, row.Email, row.Role, row.IsActive, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) getUser(ctx context.Context, where string, arg interface{}, exec []core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	var row userRow
	q := exe.Rebind("SELECT " + userColumns + " FROM users WHERE " + where + " = ?")
	if err := sqlx.GetContext(ctx, exe, &row, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "id", id, exec)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, "email", email, exec)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(usr)

	q := exe.Rebind(`UPDATE users
		SET name = ?, email = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?, last_login = ?
		WHERE id = ?`)
	res, err := exe.ExecContext(ctx, q,
		row.Name, row.Email, row.Role, row.IsActive, row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	n, err := rowsAffected(res, "updating user")
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.fromRow(row), nil
}
