package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	. "github.com/urfu-lab/studyhub/apps/mlservice/http"
	"github.com/urfu-lab/studyhub/core/auth"
	"github.com/urfu-lab/studyhub/core/chat"
	"github.com/urfu-lab/studyhub/core/features"
	"github.com/urfu-lab/studyhub/services/coreapi"
	inmemdb "github.com/urfu-lab/studyhub/storage/database/inmem"
	testutil "github.com/urfu-lab/studyhub/tests"
)

var (
	errInvalidToken = httpErr{Detail: "invalid token"}
	errChatNotFound = httpErr{Detail: "chat not found"}
)

// scriptedLLM answers every prompt with the same chunks, then err.
type scriptedLLM struct {
	mu      sync.Mutex
	chunks  []string
	err     error
	prompts []string
}

func (l *scriptedLLM) Stream(_ context.Context, prompt string, onChunk func(string) error) error {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	chunks, err := l.chunks, l.err
	l.mu.Unlock()

	for _, c := range chunks {
		if e := onChunk(c); e != nil {
			return e
		}
	}
	return err
}

func (l *scriptedLLM) script(err error, chunks ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks, l.err = chunks, err
}

type fakeProxy struct{}

func (fakeProxy) Login(_ context.Context, username, password string) (json.RawMessage, error) {
	if username != "alice" || password != "v3ryS3cure!" {
		return nil, coreapi.ErrUnauthorized
	}
	return json.RawMessage(`{"access": "a", "refresh": "r"}`), nil
}

func (fakeProxy) Refresh(_ context.Context, refresh string) (json.RawMessage, error) {
	if refresh != "r" {
		return nil, coreapi.ErrUnauthorized
	}
	return json.RawMessage(`{"access": "a2", "refresh": "r2"}`), nil
}

// fakeSource serves schedule and grades per token.
type fakeSource struct {
	schedule map[string][]features.ScheduleItem
	grades   map[string][]features.GradeBlock
}

func (s fakeSource) MySchedule(_ context.Context, token string) ([]features.ScheduleItem, error) {
	items, ok := s.schedule[token]
	if !ok {
		return nil, &coreapi.StatusError{Path: "/api/schedule/my-schedule/", Status: http.StatusUnauthorized}
	}
	return items, nil
}

func (s fakeSource) MyGrades(_ context.Context, token string) ([]features.GradeBlock, error) {
	return s.grades[token], nil
}

type fixedRand struct{}

func (fixedRand) Float64() float64 { return 0.5 }
func (fixedRand) Intn(int) int     { return 1 }

type fixture struct {
	app      Server
	tokens   *auth.Manager
	llm      *scriptedLLM
	chatRepo chat.Repository
	chatSvc  *chat.Service
	source   fakeSource
}

type fixtureOpts struct {
	userRate  float64
	userBurst int
}

func setup(t *testing.T, opts ...fixtureOpts) fixture {
	t.Helper()
	o := fixtureOpts{userRate: 100, userBurst: 100}
	if len(opts) > 0 {
		o = opts[0]
	}

	f := fixture{
		tokens:   auth.NewManager("ml-secret", 5*time.Minute, "studyhub"),
		llm:      &scriptedLLM{chunks: []string{"Hel", "lo"}},
		chatRepo: inmemdb.NewChatRepository(inmemdb.Open()),
		source: fakeSource{
			schedule: make(map[string][]features.ScheduleItem),
			grades:   make(map[string][]features.GradeBlock),
		},
	}
	f.chatSvc = chat.NewService(f.chatRepo, f.llm, nil, 5)

	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.chatSvc.NowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}

	collector := features.NewCollector(f.source)
	collector.NowFunc = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }

	f.app = NewServer(&Options{
		DisableReqLogs: true,
		CORSOrigins:    []string{"http://localhost:3000"},
		UserRate:       o.userRate,
		UserBurst:      o.userBurst,
		Logger:         testutil.NopLogger{},
		AccessLog:      zerolog.Nop(),
		Tokens:         f.tokens,
		ChatSvc:        f.chatSvc,
		AuthProxy:      fakeProxy{},
		Collector:      collector,
		Rand:           fixedRand{},
	})
	return f
}

type user struct {
	id       uuid.UUID
	username string
	fullName string
}

func newUser(username, fullName string) user {
	return user{id: uuid.New(), username: username, fullName: fullName}
}

func (f fixture) getToken(t *testing.T, u user) string {
	token, err := f.tokens.Issue(auth.Identity{UserID: u.id, Username: u.username, FullName: u.fullName})
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (f fixture) createChat(t *testing.T, u user, title string) chat.Chat {
	c, err := f.chatSvc.CreateChat(context.Background(), u.id, title)
	if err != nil {
		t.Fatalf("createChat() failed: %v", err)
	}
	return c
}

func (f fixture) send(t *testing.T, u user, c chat.Chat, text string) chat.Message {
	m, err := f.chatSvc.Send(context.Background(), u.id, c.ID, text, nil)
	if err != nil {
		t.Fatalf("send() failed: %v", err)
	}
	return m
}

type httpErr struct {
	Detail string `json:"detail"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func (f fixture) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	f.app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
