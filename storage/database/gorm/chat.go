package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/urfu-lab/studyhub/core/chat"
)

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) EnsureUser(ctx context.Context, u chat.User) (chat.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	var stored chat.User
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "full_name"}),
		}).Create(&u).Error
		if err != nil {
			return err
		}
		return tx.Where("external_user_id = ?", u.ExternalUserID).First(&stored).Error
	})
	if err != nil {
		return chat.User{}, errors.Wrap(err, "ensuring user")
	}
	return stored, nil
}

func (repo *chatRepository) GetUser(ctx context.Context, externalID uuid.UUID) (chat.User, error) {
	var u chat.User
	err := repo.db.WithContext(ctx).Where("external_user_id = ?", externalID).First(&u).Error
	return u, first(err, chat.ErrUserNotFound)
}

func (repo *chatRepository) CreateChat(ctx context.Context, c chat.Chat) (chat.Chat, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := repo.db.WithContext(ctx).Create(&c).Error; err != nil {
		return chat.Chat{}, errors.Wrap(err, "creating chat")
	}
	return c, nil
}

func (repo *chatRepository) ListChats(ctx context.Context, owner uuid.UUID) ([]chat.Chat, error) {
	chats := make([]chat.Chat, 0)
	err := repo.db.WithContext(ctx).
		Where("external_user_id = ?", owner).
		Order("created_at DESC").Order("id").
		Find(&chats).Error
	return chats, errors.Wrap(err, "listing chats")
}

func (repo *chatRepository) GetChat(ctx context.Context, owner, id uuid.UUID) (chat.Chat, error) {
	var c chat.Chat
	err := repo.db.WithContext(ctx).Where("id = ? AND external_user_id = ?", id, owner).First(&c).Error
	return c, first(err, chat.ErrNotFound)
}

func (repo *chatRepository) DeleteChat(ctx context.Context, owner, id uuid.UUID) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND external_user_id = ?", id, owner).Delete(&chat.Message{}).Error; err != nil {
			return errors.Wrap(err, "deleting chat messages")
		}
		res := tx.Where("id = ? AND external_user_id = ?", id, owner).Delete(&chat.Chat{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "deleting chat")
		}
		if res.RowsAffected == 0 {
			return chat.ErrNotFound
		}
		return nil
	})
}

func (repo *chatRepository) History(ctx context.Context, owner, chatID uuid.UUID) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0)
	err := repo.db.WithContext(ctx).
		Where("chat_id = ? AND external_user_id = ?", chatID, owner).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, errors.Wrap(err, "loading chat history")
}

func (repo *chatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return chat.Message{}, errors.Wrap(err, "saving message")
	}
	return m, nil
}

func (repo *chatRepository) GetMessage(ctx context.Context, owner, id uuid.UUID) (chat.Message, error) {
	var m chat.Message
	err := repo.db.WithContext(ctx).Where("id = ? AND external_user_id = ?", id, owner).First(&m).Error
	return m, first(err, chat.ErrMessageNotFound)
}

func (repo *chatRepository) UpdateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	res := repo.db.WithContext(ctx).Model(&chat.Message{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{"user_message": m.UserMessage, "ai_response": m.AIResponse})
	if res.Error != nil {
		return chat.Message{}, errors.Wrap(res.Error, "updating message")
	}
	if res.RowsAffected == 0 {
		return chat.Message{}, chat.ErrMessageNotFound
	}

	var stored chat.Message
	err := repo.db.WithContext(ctx).Where("id = ?", m.ID).First(&stored).Error
	return stored, first(err, chat.ErrMessageNotFound)
}
