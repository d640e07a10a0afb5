package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080" validate:"required"`
	AllowedOrigins []string `env:"ALLOWED_ORIGIN" envDefault:"*" envSeparator:","`

	Log       Log
	Store     Store
	Chat      Chat
	Assistant Assistant
	Discord   Discord
	Telegram  Telegram

	MCPEnabled bool `env:"MCP_ENABLED" envDefault:"true"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	// Optional file receiving JSON records in addition to the console
	File string `env:"LOG_FILE"`
	// Error records are forwarded to Telegram when both are set
	TelegramToken  string `env:"LOG_TELEGRAM_TOKEN"`
	TelegramChatID string `env:"LOG_TELEGRAM_CHAT_ID"`
}

type Store struct {
	Driver        string        `env:"TRANSCRIPT_STORE" envDefault:"memory" validate:"oneof=memory file postgres sqlite"`
	DatabaseURL   string        `env:"DB_URL"`
	Dir           string        `env:"TRANSCRIPT_DIR" envDefault:"data/transcripts"`
	MaxMessages   int           `env:"TRANSCRIPT_MAX_MESSAGES" envDefault:"200" validate:"gt=0"`
	Retention     time.Duration `env:"TRANSCRIPT_RETENTION" envDefault:"720h" validate:"gt=0"`
	PruneSchedule string        `env:"TRANSCRIPT_PRUNE_SCHEDULE" envDefault:"@hourly" validate:"required"`
}

type Chat struct {
	TypingDelay time.Duration `env:"CHAT_TYPING_DELAY" envDefault:"800ms" validate:"gte=0"`
	RateLimit   float64       `env:"CHAT_RATE_LIMIT" envDefault:"5" validate:"gt=0"`
	RateBurst   int           `env:"CHAT_RATE_BURST" envDefault:"10" validate:"gt=0"`
	// Absolute site root used to turn routes into links on chat platforms
	SiteBaseURL string `env:"SITE_BASE_URL" validate:"omitempty,url"`
}

type Assistant struct {
	APIKey        string  `env:"OPENAI_API_KEY"`
	BaseURL       string  `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	Model         string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	PromptPath    string  `env:"ASSIST_PROMPT_PATH"`
	MinConfidence float32 `env:"ASSIST_MIN_CONFIDENCE" envDefault:"0.5" validate:"gte=0,lte=1"`
}

func (a Assistant) Enabled() bool { return a.APIKey != "" }

type Discord struct {
	Token         string `env:"DISCORD_BOT_TOKEN"`
	CommandPrefix string `env:"DISCORD_COMMAND_PREFIX" envDefault:"!chat"`
}

type Telegram struct {
	Token string `env:"TELEGRAM_BOT_TOKEN"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, oops.In("config").Wrapf(err, "failed to parse environment")
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Chat.SiteBaseURL = strings.TrimRight(cfg.Chat.SiteBaseURL, "/")

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, oops.In("config").Wrapf(err, "failed to validate config")
	}

	switch cfg.Store.Driver {
	case StorePostgres, StoreSQLite:
		if strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
			return nil, oops.In("config").
				With("driver", cfg.Store.Driver).
				Errorf("DB_URL is required for the %s transcript store", cfg.Store.Driver)
		}
	}

	return &cfg, nil
}
