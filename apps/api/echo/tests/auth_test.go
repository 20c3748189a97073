package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/auth"
	"github.com/urfu-lab/studyhub/core/refresh"
	"github.com/urfu-lab/studyhub/core/student"
	testutil "github.com/urfu-lab/studyhub/tests"
)

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func login(t *testing.T, f fixture, uname, pwd string) tokenPair {
	t.Helper()
	body := marchallObj(t, map[string]string{"username": uname, "password": pwd})
	req, rec := newRequest(http.MethodPost, "/api/core/auth/login/", body)
	req.Header.Set("User-Agent", "studyhub-tests")
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 172.16.0.1")
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair tokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestHome(t *testing.T) {
	f := setup(t)
	tt := httpTest{
		method:   http.MethodGet,
		path:     "/",
		wantCode: http.StatusOK,
		wantData: []byte(`{"status":"ok","service":"core"}`),
	}
	checkCodeAndData(t, tt, f.run(t, tt))
}

func TestLogin(t *testing.T) {
	f := setup(t)
	st := testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true)
	testutil.CreateStudent(t, f.studentRepo, "Bob Brown", "bob", "bob@example.com", "v3ryS3cure!", false)

	t.Run("success", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"username": "Alice ", "password": "v3ryS3cure!"})
		req, rec := newRequest(http.MethodPost, "/api/core/auth/login/", body)
		req.Header.Set("User-Agent", "studyhub-tests")
		req.Header.Set("X-Forwarded-For", "10.1.2.3, 172.16.0.1")
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			tokenPair
			UserID   string `json:"user_id"`
			Username string `json:"username"`
			FullName string `json:"full_name"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, st.ID.String(), resp.UserID)
		assert.Equal(t, "alice", resp.Username)
		assert.Equal(t, "Alice Smith", resp.FullName)

		claims, err := f.tokens.Parse(resp.Access)
		require.NoError(t, err)
		assert.Equal(t, st.ID.String(), claims.Subject)

		token, err := f.refreshRepo.GetTokenByHash(context.Background(), refresh.Hash(resp.Refresh))
		require.NoError(t, err)
		assert.Equal(t, st.ID, token.StudentID)
		assert.Equal(t, "studyhub-tests", token.UserAgent.String)
		assert.Equal(t, "10.1.2.3", token.IPAddress.String)

		logged, err := f.studentRepo.GetStudentByID(context.Background(), st.ID)
		require.NoError(t, err)
		assert.True(t, logged.LastLogin.Valid)
	})

	tests := []httpTest{
		{
			name:     "missing password",
			body:     []byte(`{"username": "alice"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "username and password are required"}),
		},
		{
			name:     "missing username",
			body:     []byte(`{"password": "v3ryS3cure!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "username and password are required"}),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"username": "alice", "password": "wrong"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "carol", "password": "v3ryS3cure!"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name:     "inactive user",
			body:     []byte(`{"username": "bob", "password": "v3ryS3cure!"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/core/auth/login"
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}
}

func TestRefresh(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true)
	pair := login(t, f, "alice", "v3ryS3cure!")

	refreshBody := func(token string) []byte {
		return marchallObj(t, map[string]string{"refresh": token})
	}

	// first rotation succeeds
	tt := httpTest{method: http.MethodPost, path: "/api/core/auth/refresh/", body: refreshBody(pair.Refresh)}
	rec := f.run(t, tt)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated tokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEmpty(t, rotated.Access)
	assert.NotEqual(t, pair.Refresh, rotated.Refresh)
	_, err := f.tokens.Parse(rotated.Access)
	assert.NoError(t, err)

	tests := []httpTest{
		{
			name:     "missing token",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "refresh token is required"}),
		},
		{
			name:     "reused token",
			body:     refreshBody(pair.Refresh),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired refresh token"}),
		},
		{
			name:     "unknown token",
			body:     refreshBody("not-a-token"),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired refresh token"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/core/auth/refresh"
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}

	t.Run("rotated token still works once", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/api/core/auth/refresh", body: refreshBody(rotated.Refresh)}
		assert.Equal(t, http.StatusOK, f.run(t, tt).Code)
	})
}

func TestRefreshExpired(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true)
	pair := login(t, f, "alice", "v3ryS3cure!")
	body := marchallObj(t, map[string]string{"refresh": pair.Refresh})

	f.refreshSvc.NowFunc = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	tt := httpTest{
		method:   http.MethodPost,
		path:     "/api/core/auth/refresh/",
		body:     body,
		wantCode: http.StatusUnauthorized,
		wantData: marchallObj(t, httpErr{Error: "invalid or expired refresh token"}),
	}
	checkCodeAndData(t, tt, f.run(t, tt))

	// an expired token is rejected without being consumed
	f.refreshSvc.NowFunc = time.Now
	rec := f.run(t, httpTest{method: http.MethodPost, path: "/api/core/auth/refresh/", body: body})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogout(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true)
	pair := login(t, f, "alice", "v3ryS3cure!")

	tests := []httpTest{
		{
			name:     "no token",
			body:     marchallObj(t, map[string]string{"refresh": pair.Refresh}),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "bad token",
			body:     marchallObj(t, map[string]string{"refresh": pair.Refresh}),
			token:    "garbage",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errInvalidToken),
		},
		{
			name:     "unknown refresh is ignored",
			body:     []byte(`{"refresh": "unknown"}`),
			token:    pair.Access,
			wantCode: http.StatusOK,
			wantData: []byte(`{"message": "logged out"}`),
		},
		{
			name:     "empty body",
			token:    pair.Access,
			wantCode: http.StatusOK,
			wantData: []byte(`{"message": "logged out"}`),
		},
		{
			name:     "success",
			body:     marchallObj(t, map[string]string{"refresh": pair.Refresh}),
			token:    pair.Access,
			wantCode: http.StatusOK,
			wantData: []byte(`{"message": "logged out"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/core/auth/logout/"
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}

	// the refresh token is no longer usable
	tt := httpTest{
		method: http.MethodPost,
		path:   "/api/core/auth/refresh",
		body:   marchallObj(t, map[string]string{"refresh": pair.Refresh}),
	}
	assert.Equal(t, http.StatusUnauthorized, f.run(t, tt).Code)
}

func TestPasswordReset(t *testing.T) {
	f := setup(t)
	st := testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true)

	successMsg := marchallObj(t, map[string]string{
		"success": "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	tests := []httpTest{
		{name: "unknown email", body: []byte(`{"email": "nobody@example.com"}`), wantCode: http.StatusOK, wantData: successMsg},
		{name: "empty email", body: []byte(`{}`), wantCode: http.StatusOK, wantData: successMsg},
		{name: "known email", body: []byte(`{"email": " Alice@Example.com "}`), wantCode: http.StatusOK, wantData: successMsg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/core/auth/password-reset/"
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}

	msgs := f.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice@example.com", msgs[0].To[0].Address)

	link := regexp.MustCompile(`/password-reset/([^/\s]+)/([^/\s]+)`).FindStringSubmatch(msgs[0].TextContent)
	require.Len(t, link, 3)
	uid, token := link[1], strings.TrimSpace(link[2])

	confirmTests := []httpTest{
		{
			name:     "invalid token",
			body:     marchallObj(t, student.ResetPassword{Token: "bad-token", UID: uid, Password: "n3wS3cure!pwd", PasswordConfirm: "n3wS3cure!pwd"}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"token": "invalid token"}`),
		},
		{
			name:     "passwords mismatch",
			body:     marchallObj(t, student.ResetPassword{Token: token, UID: uid, Password: "n3wS3cure!pwd", PasswordConfirm: "other"}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password_confirm": "password_confirm must be equal to Password"}`),
		},
		{
			name:     "success",
			body:     marchallObj(t, student.ResetPassword{Token: token, UID: uid, Password: "n3wS3cure!pwd", PasswordConfirm: "n3wS3cure!pwd"}),
			wantCode: http.StatusOK,
			wantData: []byte(`{"success": "Password has been reset with the new password."}`),
		},
	}
	for _, tt := range confirmTests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/core/auth/password-reset-confirm"
			checkCodeAndData(t, tt, f.run(t, tt))
		})
	}

	updated, err := f.studentRepo.GetStudentByID(context.Background(), st.ID)
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword("n3wS3cure!pwd"))
}

func TestMe(t *testing.T) {
	f := setup(t)
	st := testutil.CreateStudent(t, f.studentRepo, "Alice Smith", "alice", "alice@example.com", "v3ryS3cure!", true)
	inactive := testutil.CreateStudent(t, f.studentRepo, "Bob Brown", "bob", "", "v3ryS3cure!", false)

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", token: "abc.def.ghi", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "inactive", token: f.getToken(t, inactive), wantCode: http.StatusUnauthorized, wantData: []byte(`{"error": "user not authenticated"}`)},
		{name: "success", token: f.getToken(t, st), wantCode: http.StatusOK, wantData: marchallObj(t, st)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodGet, "/api/core/me/"
			rec := f.run(t, tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				assert.NotContains(t, rec.Body.String(), "password")
			}
		})
	}

	t.Run("token without expiry", func(t *testing.T) {
		noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			UserID:    st.ID.String(),
			TokenType: auth.TokenTypeAccess,
		}).SignedString([]byte(core.NewTestConfig().SecretKey))
		require.NoError(t, err)

		tt := httpTest{method: http.MethodGet, path: "/api/core/me/", token: noExp,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)}
		checkCodeAndData(t, tt, f.run(t, tt))
	})

	t.Run("other auth scheme", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/core/me/")
		req.Header.Set("Authorization", "Basic "+f.getToken(t, st))
		f.app.ServeHTTP(rec, req)

		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})
}
