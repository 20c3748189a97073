// Package chat keeps the LLM conversations of students: chats, their messages and the local user mirror.
package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
)

var (
	ErrNotFound        = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")
)

type (
	Repository interface {
		// EnsureUser inserts u or updates the names of the user with the same ExternalUserID.
		EnsureUser(ctx context.Context, u User) (User, error)
		GetUser(ctx context.Context, externalID uuid.UUID) (User, error)

		CreateChat(ctx context.Context, c Chat) (Chat, error)
		// ListChats returns the chats of owner, newest first.
		ListChats(ctx context.Context, owner uuid.UUID) ([]Chat, error)
		GetChat(ctx context.Context, owner, id uuid.UUID) (Chat, error)
		// DeleteChat removes the chat of owner and its messages.
		DeleteChat(ctx context.Context, owner, id uuid.UUID) error

		// History returns the messages of a chat, oldest first.
		History(ctx context.Context, owner, chatID uuid.UUID) ([]Message, error)
		SaveMessage(ctx context.Context, m Message) (Message, error)
		GetMessage(ctx context.Context, owner, id uuid.UUID) (Message, error)
		UpdateMessage(ctx context.Context, m Message) (Message, error)
	}

	// Completer generates an answer for prompt, handing it over piece by piece.
	// Stream stops at the first error returned by onChunk.
	Completer interface {
		Stream(ctx context.Context, prompt string, onChunk func(string) error) error
	}

	// UserCache is an optional lookaside cache for EnsureUser.
	UserCache interface {
		GetUser(ctx context.Context, externalID uuid.UUID) (User, bool)
		SetUser(ctx context.Context, u User)
	}

	Service struct {
		repo      Repository
		llm       Completer
		cache     UserCache
		exchanges int
		NowFunc   func() time.Time
	}
)

// NewService returns a chat service. exchanges is the number of previous question/answer pairs sent with a prompt.
// cache may be nil.
func NewService(repo Repository, llm Completer, cache UserCache, exchanges int) *Service {
	if exchanges < 0 {
		exchanges = 0
	}
	return &Service{repo: repo, llm: llm, cache: cache, exchanges: exchanges, NowFunc: time.Now}
}

func (svc *Service) now() time.Time {
	return svc.NowFunc().UTC()
}

// EnsureUser returns the local user for a token subject, creating or renaming it when needed.
func (svc *Service) EnsureUser(ctx context.Context, externalID uuid.UUID, username, fullName string) (User, error) {
	if externalID == uuid.Nil {
		return User{}, ErrUserNotFound
	}
	if svc.cache != nil {
		if u, ok := svc.cache.GetUser(ctx, externalID); ok && u.Username == username && u.FullName == fullName {
			return u, nil
		}
	}

	u, err := svc.repo.EnsureUser(ctx, User{
		ID:             uuid.New(),
		ExternalUserID: externalID,
		Username:       username,
		FullName:       fullName,
		CreatedAt:      svc.now(),
	})
	if err != nil {
		return User{}, err
	}
	if svc.cache != nil {
		svc.cache.SetUser(ctx, u)
	}
	return u, nil
}

func (svc *Service) CreateChat(ctx context.Context, owner uuid.UUID, title string) (Chat, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return Chat{}, core.NewValidationError(nil, core.FieldError{Field: "title", Error: "title is required"})
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return Chat{}, core.NewValidationError(nil, core.FieldError{Field: "title", Error: "title must be at most 255 characters"})
	}

	return svc.repo.CreateChat(ctx, Chat{
		ID:             uuid.New(),
		ExternalUserID: owner,
		Title:          title,
		CreatedAt:      svc.now(),
	})
}

func (svc *Service) ListChats(ctx context.Context, owner uuid.UUID) ([]Chat, error) {
	return svc.repo.ListChats(ctx, owner)
}

func (svc *Service) DeleteChat(ctx context.Context, owner, id uuid.UUID) (DeletedChat, error) {
	if err := svc.repo.DeleteChat(ctx, owner, id); err != nil {
		return DeletedChat{}, err
	}
	return DeletedChat{Message: "chat deleted", DeletedChatID: id}, nil
}

func (svc *Service) History(ctx context.Context, owner, chatID uuid.UUID) ([]Message, error) {
	if _, err := svc.repo.GetChat(ctx, owner, chatID); err != nil {
		return nil, err
	}
	return svc.repo.History(ctx, owner, chatID)
}

// Send asks the model about text in the context of the chat and streams the answer to onChunk.
// The exchange is stored only once the answer is complete.
func (svc *Service) Send(ctx context.Context, owner, chatID uuid.UUID, text string, onChunk func(string) error) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, core.NewValidationError(nil, core.FieldError{Field: "message", Error: "message is required"})
	}
	history, err := svc.History(ctx, owner, chatID)
	if err != nil {
		return Message{}, err
	}

	answer, err := svc.complete(ctx, BuildPrompt(svc.recent(history), text), onChunk)
	if err != nil {
		return Message{}, err
	}

	return svc.repo.SaveMessage(ctx, Message{
		ID:             uuid.New(),
		ExternalUserID: owner,
		ChatID:         chatID,
		UserMessage:    text,
		AIResponse:     answer,
		CreatedAt:      svc.now(),
	})
}

// EditMessage replaces the question of a stored message and regenerates its answer
// from the exchanges that came before it.
func (svc *Service) EditMessage(ctx context.Context, owner, messageID uuid.UUID, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, core.NewValidationError(nil, core.FieldError{Field: "message", Error: "message is required"})
	}
	msg, err := svc.repo.GetMessage(ctx, owner, messageID)
	if err != nil {
		return Message{}, err
	}
	history, err := svc.repo.History(ctx, owner, msg.ChatID)
	if err != nil {
		return Message{}, err
	}

	var preceding []Message
	for _, m := range history {
		if m.ID == msg.ID {
			break
		}
		preceding = append(preceding, m)
	}

	answer, err := svc.complete(ctx, BuildPrompt(svc.recent(preceding), text), nil)
	if err != nil {
		return Message{}, err
	}
	msg.UserMessage = text
	msg.AIResponse = answer
	return svc.repo.UpdateMessage(ctx, msg)
}

func (svc *Service) complete(ctx context.Context, prompt string, onChunk func(string) error) (string, error) {
	var answer strings.Builder
	err := svc.llm.Stream(ctx, prompt, func(chunk string) error {
		answer.WriteString(chunk)
		if onChunk != nil {
			return onChunk(chunk)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err = ctx.Err(); err != nil {
		return "", err
	}
	return answer.String(), nil
}

func (svc *Service) recent(history []Message) []Message {
	if len(history) > svc.exchanges {
		return history[len(history)-svc.exchanges:]
	}
	return history
}

// BuildPrompt renders previous exchanges followed by the new question as a plain dialogue.
func BuildPrompt(history []Message, text string) string {
	var b strings.Builder
	for _, m := range history {
		b.WriteString("User: ")
		b.WriteString(m.UserMessage)
		b.WriteString("\nAssistant: ")
		b.WriteString(m.AIResponse)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(text)
	b.WriteString("\nAssistant:")
	return b.String()
}
