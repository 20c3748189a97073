package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/urfu-lab/studyhub/core/chat"
)

type chatRepository struct {
	db *DB
}

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) EnsureUser(_ context.Context, u chat.User) (chat.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if existing, ok := repo.db.chatUsers[u.ExternalUserID]; ok {
		existing.Username = u.Username
		existing.FullName = u.FullName
		repo.db.chatUsers[u.ExternalUserID] = existing
		return existing, nil
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	repo.db.chatUsers[u.ExternalUserID] = u
	return u, nil
}

func (repo *chatRepository) GetUser(_ context.Context, externalID uuid.UUID) (chat.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if u, ok := repo.db.chatUsers[externalID]; ok {
		return u, nil
	}
	return chat.User{}, chat.ErrUserNotFound
}

func (repo *chatRepository) CreateChat(_ context.Context, c chat.Chat) (chat.Chat, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	repo.db.chats[c.ID] = c
	return c, nil
}

func (repo *chatRepository) ListChats(_ context.Context, owner uuid.UUID) ([]chat.Chat, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	chats := make([]chat.Chat, 0)
	for _, c := range repo.db.chats {
		if c.ExternalUserID == owner {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].ID.String() < chats[j].ID.String()
		}
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

func (repo *chatRepository) GetChat(_ context.Context, owner, id uuid.UUID) (chat.Chat, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.chats[id]; ok && c.ExternalUserID == owner {
		return c, nil
	}
	return chat.Chat{}, chat.ErrNotFound
}

func (repo *chatRepository) DeleteChat(_ context.Context, owner, id uuid.UUID) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c, ok := repo.db.chats[id]; !ok || c.ExternalUserID != owner {
		return chat.ErrNotFound
	}
	delete(repo.db.chats, id)

	kept := repo.db.chatMessages[:0]
	for _, m := range repo.db.chatMessages {
		if m.ChatID != id {
			kept = append(kept, m)
		}
	}
	repo.db.chatMessages = kept
	return nil
}

func (repo *chatRepository) History(_ context.Context, owner, chatID uuid.UUID) ([]chat.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]chat.Message, 0)
	for _, m := range repo.db.chatMessages {
		if m.ChatID == chatID && m.ExternalUserID == owner {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *chatRepository) SaveMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.chats[m.ChatID]; !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	repo.db.chatMessages = append(repo.db.chatMessages, m)
	return m, nil
}

func (repo *chatRepository) GetMessage(_ context.Context, owner, id uuid.UUID) (chat.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, m := range repo.db.chatMessages {
		if m.ID == id && m.ExternalUserID == owner {
			return m, nil
		}
	}
	return chat.Message{}, chat.ErrMessageNotFound
}

func (repo *chatRepository) UpdateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i, stored := range repo.db.chatMessages {
		if stored.ID == m.ID {
			stored.UserMessage = m.UserMessage
			stored.AIResponse = m.AIResponse
			repo.db.chatMessages[i] = stored
			return stored, nil
		}
	}
	return chat.Message{}, chat.ErrMessageNotFound
}
