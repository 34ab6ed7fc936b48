package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"TrendScout/internal/logger"
	"TrendScout/internal/strategy"
)

// DefaultPath is used when neither -config nor CONFIG_PATH is given.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Data struct {
		BarStore   string `yaml:"bar_store" default:"data/bars.csv" validate:"required"`
		MasterList string `yaml:"master_list" default:"data/EQUITY_L.csv" validate:"required"`
		SignalsOut string `yaml:"signals_out" default:"output/buy_signals.csv" validate:"required"`
		TrendOut   string `yaml:"trend_out" default:"output/uptrend.csv" validate:"required"`
	} `yaml:"data"`
	Source struct {
		Provider  string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo rest alpaca"`
		BaseURL   string        `yaml:"base_url" validate:"required_if=Provider rest"`
		APIKey    string        `yaml:"api_key" validate:"required_if=Provider alpaca"`
		APISecret string        `yaml:"api_secret" validate:"required_if=Provider alpaca"`
		Suffix    string        `yaml:"suffix" default:".NS"`
		Feed      string        `yaml:"feed" default:"iex" validate:"oneof=iex sip"`
		Timeout   time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	} `yaml:"source"`
	Fetch struct {
		BatchSize      int           `yaml:"batch_size" default:"50" validate:"gt=0"`
		FlushPause     time.Duration `yaml:"flush_pause" default:"2s" validate:"gte=0"`
		HistoryDays    int           `yaml:"history_days" default:"300" validate:"gt=0"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"30s" validate:"gt=0"`
		Series         string        `yaml:"series" default:"EQ"`
	} `yaml:"fetch"`
	Strategy strategy.Rules `yaml:"strategy"`
	Scan     struct {
		Workers       int  `yaml:"workers" default:"1" validate:"gte=1,lte=256"`
		LogFailures   bool `yaml:"log_failures"`
		ProgressEvery int  `yaml:"progress_every" default:"500" validate:"gte=0"`
	} `yaml:"scan"`
	Schedule struct {
		DailyCron  string `yaml:"daily_cron" default:"0 30 18 * * 1-5" validate:"required"`
		Timezone   string `yaml:"timezone"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/trendscout.db"`
	} `yaml:"database"`
	Telegram struct {
		BotToken   string `yaml:"bot_token" validate:"required_with=ChatID"`
		ChatID     string `yaml:"chat_id" validate:"required_with=BotToken"`
		MaxRetries int    `yaml:"max_retries" default:"3" validate:"gte=0"`
		MaxRows    int    `yaml:"max_rows" default:"30" validate:"gte=0"`
	} `yaml:"telegram"`
	Metrics struct {
		TextfilePath string `yaml:"textfile_path"`
	} `yaml:"metrics"`
	Inspect struct {
		MaxSymbols int `yaml:"max_symbols" default:"3000" validate:"gt=0"`
	} `yaml:"inspect"`
	Log   logger.Config `yaml:"log"`
	Proxy string        `yaml:"proxy"`
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Load reads config from a YAML file on top of the defaults, then applies a
// .env file (if any) and environment variable overrides. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Variables already set in the environment win over .env.
	_ = godotenv.Load()
	cfg.applyEnv(os.Getenv)

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"BAR_STORE", &c.Data.BarStore},
		{"MASTER_LIST", &c.Data.MasterList},
		{"DATA_PROVIDER", &c.Source.Provider},
		{"DATA_BASE_URL", &c.Source.BaseURL},
		{"DATA_API_KEY", &c.Source.APIKey},
		{"DATA_API_SECRET", &c.Source.APISecret},
		{"HTTPS_PROXY", &c.Proxy},
		{"SQLITE_PATH", &c.Database.SQLitePath},
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"CRON_DAILY", &c.Schedule.DailyCron},
		{"LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v := getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

var validate = validator.New()

// Validate checks field ranges and provider-specific requirements.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
