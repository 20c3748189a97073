package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/urfu-lab/studyhub/core/auth"
)

func TestServiceInfo(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{name: "home", path: "/", wantCode: http.StatusOK, wantData: []byte(`{"status": "ok", "service": "ml_service"}`)},
		{name: "health", path: "/health", wantCode: http.StatusOK, wantData: []byte(`{"status": "healthy", "service": "ml_service", "version": "1.0.0"}`)},
		{name: "unknown route", path: "/api/unknown", wantCode: http.StatusNotFound, wantData: []byte(`{"detail": "not found"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}
}

func TestAuthProxy(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{name: "login", path: "/api/auth/login", body: []byte(`{"username": "alice", "password": "v3ryS3cure!"}`), wantCode: http.StatusOK, wantData: []byte(`{"access": "a", "refresh": "r"}`)},
		{name: "login wrong password", path: "/api/auth/login", body: []byte(`{"username": "alice", "password": "nope"}`), wantCode: http.StatusUnauthorized, wantData: []byte(`{"detail": "invalid credentials"}`)},
		{name: "login missing password", path: "/api/auth/login", body: []byte(`{"username": "alice"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"detail": "username and password are required"}`)},
		{name: "login bad body", path: "/api/auth/login", body: []byte(`{"username":`), wantCode: http.StatusBadRequest, wantData: []byte(`{"detail": "invalid request body"}`)},
		{name: "refresh", path: "/api/auth/refresh", body: []byte(`{"refresh": "r"}`), wantCode: http.StatusOK, wantData: []byte(`{"access": "a2", "refresh": "r2"}`)},
		{name: "refresh revoked", path: "/api/auth/refresh", body: []byte(`{"refresh": "old"}`), wantCode: http.StatusUnauthorized, wantData: []byte(`{"detail": "invalid credentials"}`)},
		{name: "refresh missing", path: "/api/auth/refresh", body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"detail": "refresh token is required"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}
}

func TestAuthentication(t *testing.T) {
	f := setup(t)
	alice := newUser("alice", "Alice Smith")
	aliceToken := f.getToken(t, alice)
	alienToken, err := auth.NewManager("other-secret", time.Minute, "studyhub").
		Issue(auth.Identity{UserID: alice.id, Username: alice.username})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	tests := []httpTest{
		{name: "no token", path: "/api/ai/chats", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "garbage token", path: "/api/ai/chats", token: "garbage", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "foreign signature", path: "/api/ml/features", token: alienToken, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "valid token", path: "/api/ai/chats", token: aliceToken, wantCode: http.StatusOK, wantData: []byte(`{"chats": []}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}

	t.Run("mirrors the user", func(t *testing.T) {
		u, err := f.chatRepo.GetUser(context.Background(), alice.id)
		assert.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, "Alice Smith", u.FullName)

		renamed := alice
		renamed.fullName = "Alice Jones"
		rec := f.run(t, httpTest{method: http.MethodGet, path: "/api/ai/chats", token: f.getToken(t, renamed)})
		assert.Equal(t, http.StatusOK, rec.Code)

		u, err = f.chatRepo.GetUser(context.Background(), alice.id)
		assert.NoError(t, err)
		assert.Equal(t, "Alice Jones", u.FullName)
	})
}

func TestCORS(t *testing.T) {
	f := setup(t)

	t.Run("preflight", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodOptions, "/api/ai/chats", "")
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		f.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("allowed origin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/health", "")
		req.Header.Set("Origin", "http://localhost:3000")
		f.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/health", "")
		req.Header.Set("Origin", "http://evil.example")
		f.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
