package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	StorageBackend      string        `mapstructure:"STORAGE_BACKEND"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema            string        `mapstructure:"DB_SCHEMA"`
	IdentityStore       string        `mapstructure:"IDENTITY_STORE"`
	IdentityLevelDBPath string        `mapstructure:"IDENTITY_LEVELDB_PATH"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	RedisPassword       string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int           `mapstructure:"REDIS_DB"`
	SessionSigningKey   string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	AIProvider          string        `mapstructure:"AI_PROVIDER"`
	GeminiAPIKey        string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel         string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL       string        `mapstructure:"GEMINI_BASE_URL"`
	AITimeout           time.Duration `mapstructure:"AI_TIMEOUT"`
	AIRetries           int           `mapstructure:"AI_RETRIES"`
	MQTTBrokerURL       string        `mapstructure:"MQTT_BROKER_URL"`
	MQTTClientID        string        `mapstructure:"MQTT_CLIENT_ID"`
	MQTTTopic           string        `mapstructure:"MQTT_TOPIC"`
	MQTTUsername        string        `mapstructure:"MQTT_USERNAME"`
	MQTTPassword        string        `mapstructure:"MQTT_PASSWORD"`
	MQTTQoS             int           `mapstructure:"MQTT_QOS"`
	AutoAssignDemo      bool          `mapstructure:"AUTO_ASSIGN_DEMO"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
}

var validStorageBackends = map[string]bool{"postgres": true, "memory": true}

var validIdentityStores = map[string]bool{"memory": true, "leveldb": true, "redis": true}

var validAIProviders = map[string]bool{"stub": true, "gemini": true}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORAGE_BACKEND", "postgres")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "careboard")
	v.SetDefault("IDENTITY_STORE", "memory")
	v.SetDefault("IDENTITY_LEVELDB_PATH", "data/identity")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("AI_PROVIDER", "stub")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("AI_TIMEOUT", "15s")
	v.SetDefault("AI_RETRIES", 2)
	v.SetDefault("MQTT_CLIENT_ID", "careboard-ingest")
	v.SetDefault("MQTT_TOPIC", "careboard/patients/+/vitals")
	v.SetDefault("MQTT_QOS", 1)
	v.SetDefault("AUTO_ASSIGN_DEMO", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	for _, key := range []string{
		"PORT", "ENV", "STORAGE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
		"IDENTITY_STORE", "IDENTITY_LEVELDB_PATH", "REDIS_URL", "REDIS_PASSWORD", "REDIS_DB",
		"SESSION_SIGNING_KEY", "SESSION_TTL",
		"AI_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "AI_TIMEOUT", "AI_RETRIES",
		"MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_TOPIC", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_QOS",
		"AUTO_ASSIGN_DEMO", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is postgres")
	}

	if cfg.IsDev() && cfg.SessionSigningKey == "" {
		log.Println("WARNING: SESSION_SIGNING_KEY is not set; using the development signing key.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		cfg.SessionSigningKey = DevSigningKey
	}

	return cfg, nil
}

// DevSigningKey signs session tokens when ENV=development and no key is configured.
const DevSigningKey = "careboard-development-signing-key"

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether repositories should be backed by the pgx pool.
func (c *Config) UsesPostgres() bool {
	return c.StorageBackend == "postgres"
}

// IngestEnabled reports whether the MQTT vitals subscriber should start.
func (c *Config) IngestEnabled() bool {
	return c.MQTTBrokerURL != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !validStorageBackends[c.StorageBackend] {
		return fmt.Errorf("STORAGE_BACKEND must be \"postgres\" or \"memory\", got %q", c.StorageBackend)
	}
	if !validIdentityStores[c.IdentityStore] {
		return fmt.Errorf("IDENTITY_STORE must be \"memory\", \"leveldb\", or \"redis\", got %q", c.IdentityStore)
	}
	if c.IdentityStore == "leveldb" && c.IdentityLevelDBPath == "" {
		return fmt.Errorf("IDENTITY_LEVELDB_PATH is required when IDENTITY_STORE is leveldb")
	}
	if c.IdentityStore == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when IDENTITY_STORE is redis")
	}

	if c.IsProduction() && (c.SessionSigningKey == "" || c.SessionSigningKey == DevSigningKey) {
		return fmt.Errorf("SESSION_SIGNING_KEY is required in production")
	}
	if c.SessionSigningKey != "" && len(c.SessionSigningKey) < 16 {
		return fmt.Errorf("SESSION_SIGNING_KEY must be at least 16 characters, got %d", len(c.SessionSigningKey))
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	if !validAIProviders[c.AIProvider] {
		return fmt.Errorf("AI_PROVIDER must be \"stub\" or \"gemini\", got %q", c.AIProvider)
	}
	if c.AIProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if c.AIRetries < 0 {
		return fmt.Errorf("AI_RETRIES must not be negative, got %d", c.AIRetries)
	}

	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1, or 2, got %d", c.MQTTQoS)
	}

	return nil
}
