// Package config loads the ML service settings from the environment, with an optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	ProviderHF     = "hf"
	ProviderGemini = "gemini"
)

type (
	Config struct {
		DatabaseConfig
		AuthConfig
		LLMConfig
		LimitConfig
		LoggerConfig

		Address         string        `envconfig:"ADDRESS" default:":8001"`
		ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
		Debug           bool          `envconfig:"DEBUG" default:"false"`
		CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:8000,http://localhost:3000"`
		RedisAddr       string        `envconfig:"REDIS_ADDR"`
		UserCacheTTL    time.Duration `envconfig:"USER_CACHE_TTL" default:"10m"`
	}

	DatabaseConfig struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     string `envconfig:"DB_PORT" default:"5432"`
		Name     string `envconfig:"DB_NAME" required:"true"`
		User     string `envconfig:"DB_USER" required:"true"`
		Password string `envconfig:"DB_PASSWORD"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	}

	AuthConfig struct {
		ServerURL    string `envconfig:"AUTH_SERVER_URL" default:"http://localhost:8000"`
		SecretKey    string `envconfig:"JWT_SECRET_KEY" required:"true"`
		JWTAlgorithm string `envconfig:"JWT_ALGORITHM" default:"HS256"`
		// CoreCacheTTL bounds how long schedule and grade responses are reused.
		CoreCacheTTL time.Duration `envconfig:"CORE_CACHE_TTL" default:"1m"`
	}

	LLMConfig struct {
		Provider     string        `envconfig:"LLM_PROVIDER" default:"hf"`
		HFAPIKey     string        `envconfig:"HF_API_KEY"`
		HFModel      string        `envconfig:"HF_MODEL" default:"mistralai/Mistral-7B-Instruct-v0.2"`
		GeminiAPIKey string        `envconfig:"GEMINI_API_KEY"`
		GeminiModel  string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
		MaxNewTokens int           `envconfig:"LLM_MAX_NEW_TOKENS" default:"256"`
		Timeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`
		// HistoryExchanges is how many previous question/answer pairs go into the prompt.
		HistoryExchanges int `envconfig:"LLM_HISTORY_EXCHANGES" default:"5"`
	}

	LimitConfig struct {
		LLMRate   float64 `envconfig:"LLM_RATE" default:"5"`
		LLMBurst  int     `envconfig:"LLM_BURST" default:"5"`
		UserRate  float64 `envconfig:"USER_RATE" default:"1"`
		UserBurst int     `envconfig:"USER_BURST" default:"5"`
	}

	LoggerConfig struct {
		Dir         string `envconfig:"LOG_DIR"`
		MaxFileSize int64  `envconfig:"LOG_MAX_FILE_SIZE" default:"10485760"`
	}
)

// Load reads .env files when present, then the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "loading %s", f)
		}
	}

	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		return nil, errors.Wrap(err, "processing environment")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) Validate() error {
	if !strings.EqualFold(c.JWTAlgorithm, "HS256") {
		return fmt.Errorf("unsupported JWT_ALGORITHM %q: only HS256 is supported", c.JWTAlgorithm)
	}
	switch c.Provider {
	case ProviderHF:
		if c.HFAPIKey == "" {
			return errors.New("HF_API_KEY is required for the hf provider")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider)
	}
	if c.UserRate <= 0 || c.UserBurst <= 0 || c.LLMRate <= 0 || c.LLMBurst <= 0 {
		return errors.New("rate limits must be positive")
	}
	return nil
}

// DSN is the postgres connection string for gorm.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Name, c.Password, c.SSLMode)
}
