package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = "id, name, email, password_hash, role, is_active, created_at, updated_at, last_login"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) unrow() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         user.Role(r.Role),
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func unrowUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unrow())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	wb := new(whereBuilder)
	wb.add("email = $%d", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		wb.add("NOT (id = ANY($%d))", pqStringArray(ids))
	}

	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM users" + wb.clause() + ")"
	if err := repo.db.GetContext(ctx, &exists, q, wb.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := `INSERT INTO users (id, name, email, password_hash, role, is_active, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Email, usr.PasswordHash, usr.Role.String(), usr.IsActive, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	wb := new(whereBuilder)
	if filter != nil {
		if filter.Search != "" {
			wb.add("(name ILIKE '%%' || $%d || '%%' OR email ILIKE '%%' || $%d || '%%')", filter.Search, filter.Search)
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				roles = append(roles, r.String())
			}
			wb.add("role = ANY($%d)", pqStringArray(roles))
		}
		if filter.IsActive != nil {
			wb.add("is_active = $%d", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			wb.add("created_at >= $%d", filter.CreatedFrom)
		}
		if !filter.CreatedTo.IsZero() {
			wb.add("created_at <= $%d", filter.CreatedTo)
		}
	}

	allowed := map[string]bool{"name": true, "email": true, "role": true, "created_at": true}
	q := "SELECT " + userColumns + " FROM users" + wb.clause() + orderBy(ordering, allowed, "created_at ASC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return unrowUsers(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	q := "SELECT " + userColumns + " FROM users WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by ID")
	}
	return row.unrow(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	q := "SELECT " + userColumns + " FROM users WHERE email = $1"
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by email")
	}
	return row.unrow(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	q := `UPDATE users SET
	        name = COALESCE(NULLIF($2, ''), name),
	        email = COALESCE(NULLIF($3, ''), email),
	        role = COALESCE(NULLIF($4, ''), role),
	        password_hash = COALESCE($5, password_hash),
	        is_active = COALESCE($6, is_active),
	        updated_at = $7
	      WHERE id = $1
	      RETURNING ` + userColumns
	var pwdHash interface{}
	if len(usr.PasswordHash) > 0 {
		pwdHash = usr.PasswordHash
	}
	var row userRow
	err := repo.db.GetContext(ctx, &row, q,
		usr.ID, usr.Name, usr.Email, usr.Role.String(), pwdHash, null.BoolFromPtr(isActive), usr.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return row.unrow(), nil
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, id string, t time.Time) (user.User, error) {
	var row userRow
	q := "UPDATE users SET last_login = $2 WHERE id = $1 RETURNING " + userColumns
	if err := repo.db.GetContext(ctx, &row, q, id, t); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "setting last login")
	}
	return row.unrow(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1)", pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
