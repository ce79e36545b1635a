package letter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrLetterNotFound = errors.New("letter not found")

const (
	letterColumns = `id, content, sender_id, sender_display_name, recipient_id,
		is_anonymous, is_read, is_favorited, created_at, read_at`

	listForRecipientQuery = `SELECT ` + letterColumns + `
		FROM letters
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC`

	getQuery = `SELECT ` + letterColumns + `
		FROM letters
		WHERE id = $1 AND recipient_id = $2`

	insertQuery = `INSERT INTO letters (
		    id, content, sender_id, sender_display_name, recipient_id, is_anonymous, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	markReadQuery = `UPDATE letters
		SET is_read = $1, read_at = COALESCE(read_at, $2)
		WHERE id = $3 AND recipient_id = $4`

	setFavoriteQuery = `UPDATE letters
		SET is_favorited = $1
		WHERE id = $2 AND recipient_id = $3`

	deleteQuery = `DELETE FROM letters WHERE id = $1 AND recipient_id = $2`
)

// Repository is the letter store. Every query is scoped to one recipient.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListForRecipient returns the recipient's complete inbox, newest first.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID string) ([]Letter, error) {
	rows, err := r.db.QueryContext(ctx, listForRecipientQuery, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()

	letters := make([]Letter, 0)
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		letters = append(letters, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	return letters, nil
}

func (r *Repository) Get(ctx context.Context, id, recipientID string) (Letter, error) {
	l, err := scanLetter(r.db.QueryRowContext(ctx, getQuery, id, recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Letter{}, ErrLetterNotFound
		}
		return Letter{}, fmt.Errorf("get letter: %w", err)
	}
	return l, nil
}

func (r *Repository) Create(ctx context.Context, l Letter) error {
	_, err := r.db.ExecContext(ctx, insertQuery,
		l.ID, l.Content, nullString(l.SenderID), nullString(l.SenderDisplayName),
		l.RecipientID, l.IsAnonymous, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert letter: %w", err)
	}
	return nil
}

// MarkRead flags the letter as read. read_at keeps the first read time.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	return r.execOne(ctx, "mark letter read", markReadQuery, true, at, id, recipientID)
}

func (r *Repository) SetFavorite(ctx context.Context, id, recipientID string, favorited bool) error {
	return r.execOne(ctx, "set favorite", setFavoriteQuery, favorited, id, recipientID)
}

func (r *Repository) Delete(ctx context.Context, id, recipientID string) error {
	return r.execOne(ctx, "delete letter", deleteQuery, id, recipientID)
}

func (r *Repository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrLetterNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLetter(s scanner) (Letter, error) {
	var (
		l           Letter
		senderID    sql.NullString
		displayName sql.NullString
		readAt      sql.NullTime
	)
	err := s.Scan(
		&l.ID, &l.Content, &senderID, &displayName, &l.RecipientID,
		&l.IsAnonymous, &l.IsRead, &l.IsFavorited, &l.CreatedAt, &readAt,
	)
	if err != nil {
		return Letter{}, err
	}

	if senderID.Valid {
		l.SenderID = &senderID.String
	}
	if displayName.Valid {
		l.SenderDisplayName = &displayName.String
	}
	if readAt.Valid {
		t := readAt.Time
		l.ReadAt = &t
	}
	return l, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
