package service

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"warbler/internal/featureflags"
	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"
)

// MessageService is the message store.
type MessageService struct {
	repos Repositories
	tx    repository.Transactor
	flags *featureflags.Manager
}

type CreateMessageInput struct {
	UserID uint
	Text   string
}

type DeleteMessageInput struct {
	UserID    uint
	MessageID uint
}

// NewMessageService returns a MessageService. flags may be nil.
func NewMessageService(repos Repositories, tx repository.Transactor, flags *featureflags.Manager) *MessageService {
	return &MessageService{repos: repos, tx: tx, flags: flags}
}

// Create stores a message for in.UserID. Markup is stripped before the length check.
func (s *MessageService) Create(ctx context.Context, in CreateMessageInput) (*models.Message, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Access unauthorized.")
	}
	text := validation.SanitizeText(in.Text)
	if text == "" {
		return nil, models.NewValidationError("text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxMessageLength {
		return nil, models.NewValidationError(fmt.Sprintf("text must be at most %d characters", models.MaxMessageLength))
	}

	msg := &models.Message{UserID: in.UserID, Text: text}
	if err := s.repos.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	observability.MessageEvents.WithLabelValues("create").Inc()
	return s.repos.Messages.GetByID(ctx, msg.ID)
}

// Get returns message id with its owner. Liked reflects viewerID.
func (s *MessageService) Get(ctx context.Context, id, viewerID uint) (*models.Message, error) {
	msg, err := s.repos.Messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewerID != 0 {
		if msg.Liked, err = s.repos.Likes.Exists(ctx, viewerID, id); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// Delete removes a message and its likes. Only the owner may delete unless
// the unchecked_message_delete flag is on for the acting user.
func (s *MessageService) Delete(ctx context.Context, in DeleteMessageInput) error {
	if in.UserID == 0 {
		return models.NewUnauthorizedError("Access unauthorized.")
	}
	msg, err := s.repos.Messages.GetByID(ctx, in.MessageID)
	if err != nil {
		return err
	}
	if msg.UserID != in.UserID && !s.flags.Enabled(featureflags.UncheckedMessageDelete, in.UserID) {
		middleware.Logger.WarnContext(ctx, "refused to delete message owned by another user",
			slog.Uint64("message_id", uint64(in.MessageID)),
			slog.Uint64("owner_id", uint64(msg.UserID)))
		return models.NewForbiddenError("Access unauthorized.")
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.repos.Messages.Delete(ctx, in.MessageID)
	})
	if err != nil {
		return err
	}

	observability.MessageEvents.WithLabelValues("delete").Inc()
	return nil
}

// ListByUser returns userID's newest messages. limit is clamped to FeedLimit.
func (s *MessageService) ListByUser(ctx context.Context, userID uint, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > FeedLimit {
		limit = FeedLimit
	}
	return s.repos.Messages.ListByUser(ctx, userID, limit)
}
