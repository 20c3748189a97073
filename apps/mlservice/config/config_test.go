package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"DB_NAME":        "ml",
		"DB_USER":        "ml",
		"JWT_SECRET_KEY": "secret",
		"HF_API_KEY":     "hf-key",
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, baseEnv())

	conf, err := Load(t.TempDir() + "/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "5432", conf.Port)
	assert.Equal(t, "http://localhost:8000", conf.ServerURL)
	assert.Equal(t, "HS256", conf.JWTAlgorithm)
	assert.Equal(t, []string{"http://localhost:8000", "http://localhost:3000"}, conf.CORSOrigins)
	assert.Equal(t, ProviderHF, conf.Provider)
	assert.Equal(t, 256, conf.MaxNewTokens)
	assert.Equal(t, 30*time.Second, conf.LLMConfig.Timeout)
	assert.Equal(t, int64(10<<20), conf.MaxFileSize)
	assert.Empty(t, conf.RedisAddr)
	assert.Equal(t, "host=localhost port=5432 user=ml dbname=ml password= sslmode=disable", conf.DSN())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "algorithm", env: map[string]string{"JWT_ALGORITHM": "RS256"}, wantErr: `unsupported JWT_ALGORITHM "RS256"`},
		{name: "provider", env: map[string]string{"LLM_PROVIDER": "openai"}, wantErr: `unknown LLM_PROVIDER "openai"`},
		{name: "gemini key", env: map[string]string{"LLM_PROVIDER": "gemini"}, wantErr: "GEMINI_API_KEY is required"},
		{name: "hf key", env: map[string]string{"HF_API_KEY": ""}, wantErr: "HF_API_KEY is required"},
		{name: "rates", env: map[string]string{"USER_RATE": "0"}, wantErr: "rate limits must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, baseEnv())
			setEnv(t, tt.env)

			_, err := Load(t.TempDir() + "/missing.env")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
