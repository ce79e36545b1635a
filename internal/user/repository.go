package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserTaken    = errors.New("email or username already taken")
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const (
	createUserQuery = `INSERT INTO users (id, email, username, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	userColumns = `id, email, username, display_name, avatar_url, password_hash, created_at`

	getUserByIDQuery       = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailQuery    = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	getUserByUsernameQuery = `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	usernameTakenQuery = `SELECT COUNT(*) FROM users WHERE username = $1 AND id <> $2`

	updateProfileQuery = `UPDATE users
		SET username = $1, display_name = $2, avatar_url = $3
		WHERE id = $4`

	// Letters go with the user through ON DELETE CASCADE.
	deleteUserQuery = `DELETE FROM users WHERE id = $1`

	statsQuery = `SELECT
		    (SELECT COUNT(*) FROM letters WHERE recipient_id = $1),
		    (SELECT COUNT(*) FROM letters WHERE recipient_id = $1 AND is_read = $2),
		    (SELECT COUNT(*) FROM letters WHERE recipient_id = $1 AND is_favorited = $3),
		    created_at
		FROM users WHERE id = $1`
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	_, err := r.db.ExecContext(ctx, createUserQuery,
		u.ID, u.Email, u.Username, u.DisplayName, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, getUserByIDQuery, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, getUserByEmailQuery, email)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, getUserByUsernameQuery, username)
}

// UsernameTaken reports whether a user other than exceptID holds username.
func (r *Repository) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, usernameTakenQuery, username, exceptID).Scan(&n); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, u *User) error {
	res, err := r.db.ExecContext(ctx, updateProfileQuery, u.Username, u.DisplayName, u.AvatarURL, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteUserQuery, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}

func (r *Repository) Stats(ctx context.Context, id string) (*ProfileStats, error) {
	s := &ProfileStats{}
	err := r.db.QueryRowContext(ctx, statsQuery, id, false, true).
		Scan(&s.TotalLetters, &s.UnreadLetters, &s.FavoritedLetters, &s.MemberSince)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("profile stats: %w", err)
	}
	return s, nil
}

func (r *Repository) getOne(ctx context.Context, query string, arg string) (*User, error) {
	u := &User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.AvatarURL, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isUniqueViolation matches pgx's SQLSTATE and SQLite's constraint message.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
