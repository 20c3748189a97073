package chat

import (
	"time"

	"github.com/google/uuid"
)

const MaxTitleLength = 255

type (
	// User mirrors a core student. ExternalUserID is the id the core API issued the token for.
	User struct {
		ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
		ExternalUserID uuid.UUID `json:"external_user_id" gorm:"type:uuid;uniqueIndex;not null"`
		Username       string    `json:"username" gorm:"type:text"`
		FullName       string    `json:"full_name" gorm:"type:text"`
		CreatedAt      time.Time `json:"created_at"`
	}

	Chat struct {
		ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
		ExternalUserID uuid.UUID `json:"-" gorm:"type:uuid;index;not null"`
		Title          string    `json:"title" gorm:"type:varchar(255);not null"`
		CreatedAt      time.Time `json:"created_at"`
		Messages       []Message `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	}

	Message struct {
		ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
		ExternalUserID uuid.UUID `json:"-" gorm:"type:uuid;index;not null"`
		ChatID         uuid.UUID `json:"-" gorm:"type:uuid;index;not null"`
		UserMessage    string    `json:"user_message" gorm:"type:text;not null"`
		AIResponse     string    `json:"ai_response" gorm:"column:ai_response;type:text;not null"`
		CreatedAt      time.Time `json:"created_at" gorm:"index"`
	}

	DeletedChat struct {
		Message       string    `json:"message"`
		DeletedChatID uuid.UUID `json:"deleted_chat_id"`
	}
)

func (Chat) TableName() string    { return "chats" }
func (Message) TableName() string { return "chat_messages" }
func (User) TableName() string    { return "users" }
