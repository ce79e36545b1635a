package letter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lettrly/internal/user"
)

var (
	ErrEmptyContent      = errors.New("letter content is required")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// ErrContentTooLong reports a letter over the configured limit.
type ErrContentTooLong struct {
	Max int
}

func (e ErrContentTooLong) Error() string {
	return fmt.Sprintf("letter is too long (max %d characters)", e.Max)
}

type letterRepository interface {
	ListForRecipient(ctx context.Context, recipientID string) ([]Letter, error)
	Get(ctx context.Context, id, recipientID string) (Letter, error)
	Create(ctx context.Context, l Letter) error
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) error
	SetFavorite(ctx context.Context, id, recipientID string, favorited bool) error
	Delete(ctx context.Context, id, recipientID string) error
}

type recipientDirectory interface {
	RecipientID(ctx context.Context, username string) (string, error)
}

// ChangePublisher is told whenever a recipient's inbox changes.
type ChangePublisher interface {
	Publish(ctx context.Context, recipientID string) error
}

type Service struct {
	repo       letterRepository
	recipients recipientDirectory
	changes    ChangePublisher
	maxLength  int
	now        func() time.Time
}

// NewService wires the letter use cases. changes may be nil in poll mode.
func NewService(repo letterRepository, recipients recipientDirectory, changes ChangePublisher, maxLength int) *Service {
	return &Service{
		repo:       repo,
		recipients: recipients,
		changes:    changes,
		maxLength:  maxLength,
		now:        time.Now,
	}
}

// Send stores a letter for the profile with the given username.
func (s *Service) Send(ctx context.Context, username string, from Sender, content string) (Letter, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Letter{}, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return Letter{}, ErrContentTooLong{Max: s.maxLength}
	}

	recipientID, err := s.recipients.RecipientID(ctx, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Letter{}, ErrRecipientNotFound
		}
		return Letter{}, fmt.Errorf("resolve recipient: %w", err)
	}

	l := Letter{
		ID:          uuid.NewString(),
		Content:     content,
		RecipientID: recipientID,
		IsAnonymous: from.Anonymous || from.SenderID == "",
		CreatedAt:   s.now().UTC(),
	}
	if !from.Anonymous && from.SenderID != "" {
		id := from.SenderID
		l.SenderID = &id
	}
	if name := strings.TrimSpace(from.DisplayName); name != "" {
		l.SenderDisplayName = &name
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return Letter{}, fmt.Errorf("send letter: %w", err)
	}

	s.publish(ctx, recipientID)
	return l, nil
}

func (s *Service) List(ctx context.Context, recipientID string) ([]Letter, error) {
	letters, err := s.repo.ListForRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	return letters, nil
}

// Open returns the letter and marks it read, like viewing it in the inbox.
func (s *Service) Open(ctx context.Context, id, recipientID string) (Letter, error) {
	l, err := s.repo.Get(ctx, id, recipientID)
	if err != nil {
		return Letter{}, err
	}
	if l.IsRead {
		return l, nil
	}

	if err := s.MarkRead(ctx, id, recipientID); err != nil {
		return Letter{}, err
	}
	return s.repo.Get(ctx, id, recipientID)
}

func (s *Service) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := s.repo.MarkRead(ctx, id, recipientID, s.now().UTC()); err != nil {
		return err
	}
	s.publish(ctx, recipientID)
	return nil
}

func (s *Service) SetFavorite(ctx context.Context, id, recipientID string, favorited bool) error {
	if err := s.repo.SetFavorite(ctx, id, recipientID, favorited); err != nil {
		return err
	}
	s.publish(ctx, recipientID)
	return nil
}

func (s *Service) Delete(ctx context.Context, id, recipientID string) error {
	if err := s.repo.Delete(ctx, id, recipientID); err != nil {
		return err
	}
	s.publish(ctx, recipientID)
	return nil
}

// publish never fails the request; stream loops still resync on their own.
func (s *Service) publish(ctx context.Context, recipientID string) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, recipientID); err != nil {
		log.Error().Err(err).Str("recipient_id", recipientID).Msg("failed to publish inbox change")
	}
}
