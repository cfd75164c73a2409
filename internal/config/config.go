package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	RepoSQLite   = "sqlite"
	RepoPostgres = "postgres"
	RepoInMemory = "inmemory"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Mail      MailConfig      `mapstructure:"mail"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	MaxSessions    int           `mapstructure:"max_sessions"`
}

type DatabaseConfig struct {
	Type           string `mapstructure:"type"` // "sqlite", "postgres" или "inmemory"
	Path           string `mapstructure:"path"`
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type MailConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Mailbox     string        `mapstructure:"mailbox"`
	Days        int           `mapstructure:"days"`
	MaxMessages int           `mapstructure:"max_messages"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type ExtractorConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type IngestConfig struct {
	// пустое расписание отключает плановую загрузку
	Schedule string `mapstructure:"schedule"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.max_sessions", 10000)

	v.SetDefault("database.type", RepoSQLite)
	v.SetDefault("database.path", "data/deadlines.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)

	v.SetDefault("logging.development", false)

	v.SetDefault("mail.host", "qasid.iitk.ac.in")
	v.SetDefault("mail.port", 993)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("mail.days", 7)
	v.SetDefault("mail.max_messages", 50)
	v.SetDefault("mail.dial_timeout", 30*time.Second)

	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("extractor.model", "gemini-pro-latest")
	v.SetDefault("extractor.timeout", 60*time.Second)
	v.SetDefault("extractor.max_retries", 4)

	v.SetDefault("ingest.schedule", "")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
}

// секреты читаются из привычных имён переменных без префикса
var explicitEnv = map[string]string{
	"mail.username":     "IMAP_USERNAME",
	"mail.password":     "IMAP_PASSWORD",
	"extractor.api_key": "GOOGLE_API_KEY",
	"telegram.token":    "TELEGRAM_TOKEN",
	"database.url":      "DATABASE_URL",
}

// Load читает .env, затем config.yml (если есть), затем переменные окружения.
// path - путь к yml; пустой путь значит ./config.yml.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEADLINES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range explicitEnv {
		if err := v.BindEnv(key, "DEADLINES_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("привязка %s: %w", env, err)
		}
	}

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case path != "" && errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
		default:
			return nil, fmt.Errorf("ошибка парсинга конфига: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфига: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// .env ищется рядом с конфигом и в рабочем каталоге; его отсутствие не ошибка
func loadDotEnv(path string) error {
	candidates := []string{".env"}
	if path != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(path), ".env")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("ошибка чтения %s: %w", p, err)
		}
		return nil
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Type {
	case RepoSQLite, RepoInMemory:
	case RepoPostgres:
		if c.Database.URL == "" {
			return errors.New("для postgres нужен database.url или DATABASE_URL")
		}
	default:
		return fmt.Errorf("неизвестный тип хранилища %q", c.Database.Type)
	}
	if c.Mail.Days <= 0 {
		return fmt.Errorf("mail.days должен быть положительным, получено %d", c.Mail.Days)
	}
	if c.Mail.MaxMessages <= 0 {
		return fmt.Errorf("mail.max_messages должен быть положительным, получено %d", c.Mail.MaxMessages)
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
