package student

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := tokenGenerator{secretKey: "secret", timeout: 3 * 24 * time.Hour}

	now := time.Now()
	st := Student{
		ID:         uuid.New(),
		FullName:   "T",
		Username:   "t",
		Email:      null.StringFrom("t@test.test"),
		IsActive:   true,
		DateJoined: now,
		LastLogin:  null.TimeFrom(now),
	}
	require.NoError(t, st.SetPassword("pwd"))

	validToken, err := gen.makeToken(st)
	require.NoError(t, err)

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := gen.makeToken(st)
	require.NoError(t, err)
	NowFunc = time.Now // reset

	// a new login invalidates tokens issued before it
	loggedIn := st
	loggedIn.LastLogin = null.TimeFrom(now.Add(time.Hour))

	tests := []struct {
		name    string
		st      Student
		token   string
		wantErr error
	}{
		{name: "no token", st: st, wantErr: errInvalidToken},
		{name: "invalid parts len", st: st, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", st: st, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", st: st, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", st: st, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", st: st, token: expiredToken, wantErr: errTokenExpired},
		{name: "stale last login", st: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", st: st, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, gen.verifyToken(tt.st, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	st := Student{ID: uuid.New()}
	id, err := decodeUID(EncodeUID(st))
	require.NoError(t, err)
	assert.Equal(t, st.ID, id)

	_, err = decodeUID("not*base64")
	assert.Error(t, err)
}
