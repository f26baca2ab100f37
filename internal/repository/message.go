package repository

import (
	"context"

	"warbler/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]*models.Message, error)
	ListFeed(ctx context.Context, viewerID uint, limit int) ([]*models.Message, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := conn(ctx, r.db).Omit("User").Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := conn(ctx, r.db).Preload("User").First(&message, id).Error; err != nil {
		return nil, translate(err, "Message", id)
	}
	return &message, nil
}

// Delete removes the message and the likes pointing at it.
func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Message{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Message", id)
		}
		return nil
	})
	return translate(err, "Message", id)
}

func (r *messageRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	err := conn(ctx, r.db).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// ListFeed returns the newest messages written by viewerID or anyone viewerID follows.
func (r *messageRepository) ListFeed(ctx context.Context, viewerID uint, limit int) ([]*models.Message, error) {
	db := conn(ctx, r.db)
	followed := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Follow{}).
		Select("followed_id").
		Where("follower_id = ?", viewerID)

	var messages []*models.Message
	err := db.
		Preload("User").
		Where("user_id = ? OR user_id IN (?)", viewerID, followed).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.Message{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
