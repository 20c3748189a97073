package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/chat"
	inmemdb "github.com/urfu-lab/studyhub/storage/database/inmem"
)

type fakeCompleter struct {
	chunks  []string
	err     error
	prompts []string
}

func (f *fakeCompleter) Stream(_ context.Context, prompt string, onChunk func(string) error) error {
	f.prompts = append(f.prompts, prompt)
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return f.err
}

type mapCache map[uuid.UUID]chat.User

func (c mapCache) GetUser(_ context.Context, id uuid.UUID) (chat.User, bool) {
	u, ok := c[id]
	return u, ok
}

func (c mapCache) SetUser(_ context.Context, u chat.User) { c[u.ExternalUserID] = u }

type fixture struct {
	svc  *chat.Service
	repo chat.Repository
	llm  *fakeCompleter
}

func setup(t *testing.T, exchanges int) fixture {
	t.Helper()
	repo := inmemdb.NewChatRepository(inmemdb.Open())
	llm := &fakeCompleter{chunks: []string{"Hel", "lo"}}
	svc := chat.NewService(repo, llm, nil, exchanges)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.NowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return fixture{svc: svc, repo: repo, llm: llm}
}

func fieldError(t *testing.T, err error) core.FieldError {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want validation error, got %v", err)
	require.Len(t, vErr.Fields, 1)
	return vErr.Fields[0]
}

func TestCreateChat(t *testing.T) {
	f := setup(t, 5)
	owner := uuid.New()

	tests := []struct {
		name      string
		title     string
		wantTitle string
		wantErr   string
	}{
		{name: "trimmed", title: "  Algebra  ", wantTitle: "Algebra"},
		{name: "blank", title: "   ", wantErr: "title is required"},
		{name: "too long", title: strings.Repeat("a", 256), wantErr: "title must be at most 255 characters"},
		{name: "max length", title: strings.Repeat("я", 255), wantTitle: strings.Repeat("я", 255)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.svc.CreateChat(context.Background(), owner, tt.title)
			if tt.wantErr != "" {
				assert.Equal(t, core.FieldError{Field: "title", Error: tt.wantErr}, fieldError(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, c.Title)
			assert.Equal(t, owner, c.ExternalUserID)
			assert.NotEqual(t, uuid.Nil, c.ID)
		})
	}
}

func TestListAndDeleteChats(t *testing.T) {
	f := setup(t, 5)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	first, err := f.svc.CreateChat(ctx, owner, "first")
	require.NoError(t, err)
	second, err := f.svc.CreateChat(ctx, owner, "second")
	require.NoError(t, err)
	foreign, err := f.svc.CreateChat(ctx, other, "foreign")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, owner, first.ID, "question", nil)
	require.NoError(t, err)

	chats, err := f.svc.ListChats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []chat.Chat{second, first}, chats)

	_, err = f.svc.DeleteChat(ctx, owner, foreign.ID)
	assert.Equal(t, chat.ErrNotFound, err)

	deleted, err := f.svc.DeleteChat(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.DeletedChat{Message: "chat deleted", DeletedChatID: first.ID}, deleted)

	_, err = f.svc.History(ctx, owner, first.ID)
	assert.Equal(t, chat.ErrNotFound, err)
	msgs, err := f.repo.History(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = f.svc.DeleteChat(ctx, owner, first.ID)
	assert.Equal(t, chat.ErrNotFound, err)
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("streams and stores", func(t *testing.T) {
		f := setup(t, 5)
		c, err := f.svc.CreateChat(ctx, owner, "chat")
		require.NoError(t, err)

		var got []string
		msg, err := f.svc.Send(ctx, owner, c.ID, "Hi there", func(s string) error {
			got = append(got, s)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Hel", "lo"}, got)
		assert.Equal(t, "Hi there", msg.UserMessage)
		assert.Equal(t, "Hello", msg.AIResponse)
		assert.Equal(t, c.ID, msg.ChatID)
		assert.Equal(t, "User: Hi there\nAssistant:", f.llm.prompts[0])

		history, err := f.svc.History(ctx, owner, c.ID)
		require.NoError(t, err)
		assert.Equal(t, []chat.Message{msg}, history)
	})

	t.Run("prompt keeps last exchanges", func(t *testing.T) {
		f := setup(t, 1)
		c, err := f.svc.CreateChat(ctx, owner, "chat")
		require.NoError(t, err)
		for _, q := range []string{"one", "two", "three"} {
			_, err = f.svc.Send(ctx, owner, c.ID, q, nil)
			require.NoError(t, err)
		}
		assert.Equal(t, "User: two\nAssistant: Hello\nUser: three\nAssistant:", f.llm.prompts[2])
	})

	t.Run("validation", func(t *testing.T) {
		f := setup(t, 5)
		c, err := f.svc.CreateChat(ctx, owner, "chat")
		require.NoError(t, err)

		_, err = f.svc.Send(ctx, owner, c.ID, " \n", nil)
		assert.Equal(t, core.FieldError{Field: "message", Error: "message is required"}, fieldError(t, err))

		_, err = f.svc.Send(ctx, owner, uuid.New(), "hi", nil)
		assert.Equal(t, chat.ErrNotFound, err)

		_, err = f.svc.Send(ctx, uuid.New(), c.ID, "hi", nil)
		assert.Equal(t, chat.ErrNotFound, err)
		assert.Empty(t, f.llm.prompts)
	})

	t.Run("upstream failure stores nothing", func(t *testing.T) {
		f := setup(t, 5)
		c, err := f.svc.CreateChat(ctx, owner, "chat")
		require.NoError(t, err)
		f.llm.err = errors.New("upstream is down")

		_, err = f.svc.Send(ctx, owner, c.ID, "hi", nil)
		assert.EqualError(t, err, "upstream is down")

		history, err := f.svc.History(ctx, owner, c.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("client gone stores nothing", func(t *testing.T) {
		f := setup(t, 5)
		c, err := f.svc.CreateChat(ctx, owner, "chat")
		require.NoError(t, err)
		gone := errors.New("broken pipe")

		_, err = f.svc.Send(ctx, owner, c.ID, "hi", func(string) error { return gone })
		assert.Equal(t, gone, err)

		history, err := f.svc.History(ctx, owner, c.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestEditMessage(t *testing.T) {
	f := setup(t, 5)
	ctx := context.Background()
	owner := uuid.New()
	c, err := f.svc.CreateChat(ctx, owner, "chat")
	require.NoError(t, err)

	first, err := f.svc.Send(ctx, owner, c.ID, "one", nil)
	require.NoError(t, err)
	second, err := f.svc.Send(ctx, owner, c.ID, "two", nil)
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, owner, c.ID, "three", nil)
	require.NoError(t, err)

	f.llm.chunks = []string{"Bye"}
	edited, err := f.svc.EditMessage(ctx, owner, second.ID, "two, again")
	require.NoError(t, err)
	assert.Equal(t, second.ID, edited.ID)
	assert.Equal(t, "two, again", edited.UserMessage)
	assert.Equal(t, "Bye", edited.AIResponse)
	assert.Equal(t, second.CreatedAt, edited.CreatedAt)
	assert.Equal(t, "User: one\nAssistant: Hello\nUser: two, again\nAssistant:", f.llm.prompts[len(f.llm.prompts)-1])

	history, err := f.svc.History(ctx, owner, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, first, history[0])
	assert.Equal(t, edited, history[1])

	_, err = f.svc.EditMessage(ctx, uuid.New(), second.ID, "mine")
	assert.Equal(t, chat.ErrMessageNotFound, err)
	_, err = f.svc.EditMessage(ctx, owner, second.ID, "")
	assert.Equal(t, core.FieldError{Field: "message", Error: "message is required"}, fieldError(t, err))
}

func TestEnsureUser(t *testing.T) {
	repo := inmemdb.NewChatRepository(inmemdb.Open())
	cache := mapCache{}
	svc := chat.NewService(repo, &fakeCompleter{}, cache, 5)
	ctx := context.Background()
	ext := uuid.New()

	u, err := svc.EnsureUser(ctx, ext, "alice", "Alice Smith")
	require.NoError(t, err)
	assert.Equal(t, ext, u.ExternalUserID)
	assert.Equal(t, u, cache[ext])

	again, err := svc.EnsureUser(ctx, ext, "alice", "Alice Smith")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	renamed, err := svc.EnsureUser(ctx, ext, "alice", "Alice Jones")
	require.NoError(t, err)
	assert.Equal(t, u.ID, renamed.ID)
	assert.Equal(t, "Alice Jones", cache[ext].FullName)

	stored, err := repo.GetUser(ctx, ext)
	require.NoError(t, err)
	assert.Equal(t, "Alice Jones", stored.FullName)

	_, err = svc.EnsureUser(ctx, uuid.Nil, "", "")
	assert.Equal(t, chat.ErrUserNotFound, err)
}

func TestErrorsCarryStack(t *testing.T) {
	for _, err := range []error{chat.ErrNotFound, chat.ErrMessageNotFound} {
		assert.Contains(t, fmt.Sprintf("%+v", err), "core/chat/service.go")
	}
}
