package coreapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urfu-lab/studyhub/core/features"
)

type coreStub struct {
	*httptest.Server
	mu    sync.Mutex
	calls map[string]int
}

func (s *coreStub) hit(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[path]++
}

func (s *coreStub) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func newCoreStub(t *testing.T) *coreStub {
	t.Helper()
	stub := &coreStub{calls: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc(mySchedulePath, func(w http.ResponseWriter, r *http.Request) {
		stub.hit(r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id": "x", "topic": "Limits", "is_test": true, "is_exam": false, "due_date": "2024-03-12", "starts_at": "10:00:00"},
{"topic": null, "due_date": null}]`))
	})
	mux.HandleFunc(myGradesPath, func(w http.ResponseWriter, r *http.Request) {
		stub.hit(r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"subject": {"title": "Math"}, "average_score": 4, "grades": [{"topic": "Limits", "value": 4, "weight": 1.5, "work_date": "2024-03-01"}]}]`))
	})
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		var data map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&data))
		if data["username"] != "alice" || data["password"] != "pwd" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": "invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access": "a", "refresh": "r"}`))
	})
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		var data map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&data))
		if data["refresh"] != "r" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access": "a2", "refresh": "r2"}`))
	})
	stub.Server = httptest.NewServer(mux)
	t.Cleanup(stub.Close)
	return stub
}

func TestMySchedule(t *testing.T) {
	stub := newCoreStub(t)
	client := NewClient(stub.URL+"/", time.Minute)
	ctx := context.Background()

	items, err := client.MySchedule(ctx, "good")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Limits", items[0].Topic)
	assert.True(t, items[0].IsTest)
	assert.Equal(t, "2024-03-12", items[0].DueDate.String())
	assert.Equal(t, features.ScheduleItem{}, items[1])

	_, err = client.MySchedule(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.count(mySchedulePath))

	_, err = client.MySchedule(ctx, "bad")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.Equal(t, 2, stub.count(mySchedulePath))
}

func TestMyGrades(t *testing.T) {
	stub := newCoreStub(t)
	client := NewClient(stub.URL, 0)
	ctx := context.Background()

	blocks, err := client.MyGrades(ctx, "good")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Grades, 1)
	g := blocks[0].Grades[0]
	assert.Equal(t, "Limits", g.Topic)
	assert.Equal(t, 4.0, g.Value)
	assert.Equal(t, 1.5, *g.Weight)

	_, err = client.MyGrades(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.count(myGradesPath), "cache disabled")

	_, err = client.MyGrades(ctx, "bad")
	assert.EqualError(t, err, "core api /api/grades/my-grades/ returned 500")
}

func TestAuthProxy(t *testing.T) {
	stub := newCoreStub(t)
	client := NewClient(stub.URL, time.Minute)
	ctx := context.Background()

	raw, err := client.Login(ctx, "alice", "pwd")
	require.NoError(t, err)
	assert.JSONEq(t, `{"access": "a", "refresh": "r"}`, string(raw))

	_, err = client.Login(ctx, "alice", "wrong")
	assert.Equal(t, ErrUnauthorized, err)

	raw, err = client.Refresh(ctx, "r")
	require.NoError(t, err)
	assert.JSONEq(t, `{"access": "a2", "refresh": "r2"}`, string(raw))

	_, err = client.Refresh(ctx, "stale")
	assert.Equal(t, ErrUnauthorized, err)
}
