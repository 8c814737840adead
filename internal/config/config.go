package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Sync      SyncConfig
	Providers ProvidersConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver          string
	URL             string // DATABASE_URL, приоритетнее отдельных полей
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrateOnStart  bool
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey  string
	AdminTokenHash string // bcrypt; пусто = авторизация отключена
	CronSecret     string
}

// SyncConfig - параметры оркестратора
type SyncConfig struct {
	DefaultStartingBalance float64
	RequestTimeout         time.Duration // верхняя граница одной HTTP-синхронизации
}

// ProvidersConfig - адреса и поведение провайдеров
type ProvidersConfig struct {
	HTTPTimeout               time.Duration
	MyFXBookBaseURL           string
	ForexFactoryBaseURL       string
	ForexFactoryAllowFallback bool
	RateLimit                 float64 // запросов в секунду на провайдера
	RateBurst                 int
}

// RateLimitConfig - ограничение входящих запросов к API по IP
type RateLimitConfig struct {
	Rate  float64
	Burst int
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load загружает конфигурацию из переменных окружения.
// Если рядом есть .env, значения из него не перекрывают уже заданные переменные.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "competition"),
			User:            getEnv("DB_USER", "user"),
			Password:        getEnv("DB_PASSWORD", "password"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			MigrateOnStart:  getEnvAsBool("DB_MIGRATE_ON_START", true),
		},
		Security: SecurityConfig{
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
			CronSecret:     getEnv("CRON_SECRET", ""),
		},
		Sync: SyncConfig{
			DefaultStartingBalance: getEnvAsFloat("SYNC_DEFAULT_STARTING_BALANCE", 1000),
			RequestTimeout:         getEnvAsDuration("SYNC_REQUEST_TIMEOUT", 25*time.Second),
		},
		Providers: ProvidersConfig{
			HTTPTimeout:               getEnvAsDuration("PROVIDER_HTTP_TIMEOUT", 15*time.Second),
			MyFXBookBaseURL:           getEnv("MYFXBOOK_BASE_URL", "https://www.myfxbook.com/api"),
			ForexFactoryBaseURL:       getEnv("FOREX_FACTORY_BASE_URL", "https://www.forexfactory.com"),
			ForexFactoryAllowFallback: getEnvAsBool("FOREX_FACTORY_ALLOW_FALLBACK", true),
			RateLimit:                 getEnvAsFloat("PROVIDER_RATE_LIMIT", 5),
			RateBurst:                 getEnvAsInt("PROVIDER_RATE_BURST", 5),
		},
		RateLimit: RateLimitConfig{
			Rate:  getEnvAsFloat("API_RATE_LIMIT", 2),
			Burst: getEnvAsInt("API_RATE_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", ""),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования токенов и паролей интеграций
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting integration secrets")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if c.Security.CronSecret != "" && len(c.Security.CronSecret) < 16 {
		return fmt.Errorf("CRON_SECRET must be at least 16 characters")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.URL == "" && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Sync.DefaultStartingBalance <= 0 {
		return fmt.Errorf("SYNC_DEFAULT_STARTING_BALANCE must be positive, got %v", c.Sync.DefaultStartingBalance)
	}

	if c.Sync.RequestTimeout <= 0 {
		return fmt.Errorf("SYNC_REQUEST_TIMEOUT must be positive, got %v", c.Sync.RequestTimeout)
	}

	if c.Providers.HTTPTimeout <= 0 {
		return fmt.Errorf("PROVIDER_HTTP_TIMEOUT must be positive, got %v", c.Providers.HTTPTimeout)
	}

	// запрос к провайдеру должен укладываться в общий таймаут синхронизации
	if c.Providers.HTTPTimeout > c.Sync.RequestTimeout {
		return fmt.Errorf("PROVIDER_HTTP_TIMEOUT (%v) must not exceed SYNC_REQUEST_TIMEOUT (%v)",
			c.Providers.HTTPTimeout, c.Sync.RequestTimeout)
	}

	if c.Providers.RateLimit < 0 || c.RateLimit.Rate < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	if d.URL != "" {
		return "DATABASE_URL"
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Addr возвращает адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
