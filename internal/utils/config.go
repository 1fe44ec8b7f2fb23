package utils

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Host         string
	ServerPort   string
	StoreBackend string
	UserStore    string
	CORSOrigins  []string
	JWT          JWTConfig
	LLM          LLMConfig
	Postgres     PostgresConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	Logging      LoggingConfig
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// DefaultLLMTimeout applies when OPENAI_TIMEOUT is zero or negative.
const DefaultLLMTimeout = 60 * time.Second

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// RequestTimeout is the effective per-request deadline for upstream calls.
func (c LLMConfig) RequestTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultLLMTimeout
}

type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func LoadConfig() (*Config, error) {
	backend := strings.ToLower(envOrDefault("STORE_BACKEND", BackendMongo))
	redisDB, _ := strconv.Atoi(envOrDefault("REDIS_DB", "0"))

	cfg := &Config{
		Host:         os.Getenv("HOST"),
		ServerPort:   envOrDefault("PORT", "3001"),
		StoreBackend: backend,
		UserStore:    strings.ToLower(envOrDefault("USER_STORE", backend)),
		CORSOrigins:  splitList(envOrDefault("CORS_ORIGINS", "*")),
		JWT: JWTConfig{
			Secret: envOrDefault("JWT_SECRET", "dev-secret"),
			TTL:    parseDuration(envOrDefault("JWT_TTL", "24h"), 24*time.Hour),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: NormalizeLLMBaseURL(envOrDefault("OPENAI_API_URL", "https://api.openai.com/v1")),
			Model:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: parseDuration(envOrDefault("OPENAI_TIMEOUT", "60s"), DefaultLLMTimeout),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8),
			ConnectTimeout: parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Mongo: MongoConfig{
			URI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database:       envOrDefault("MONGO_DATABASE", "mental_health_db"),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			TTL:      parseDuration(envOrDefault("REDIS_TTL", "168h"), 7*24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "wellbeing-chat"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ListenAddr joins Host and ServerPort; an empty host listens on all interfaces.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, c.ServerPort)
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("config: unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.UserStore {
	case BackendMemory:
	case BackendMongo:
		if c.StoreBackend != BackendMongo {
			return fmt.Errorf("config: USER_STORE=mongo requires STORE_BACKEND=mongo")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			return fmt.Errorf("config: USER_STORE=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unsupported USER_STORE %q", c.UserStore)
	}

	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("config: invalid PORT %q", c.ServerPort)
	}

	return nil
}

// NormalizeLLMBaseURL accepts either an API base (".../v1") or a full
// chat-completions endpoint and returns the base form.
func NormalizeLLMBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	return strings.TrimSuffix(base, "/chat/completions")
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
