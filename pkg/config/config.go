package config

import (
	"os"
	"strconv"
)

// MQConfig holds the message broker connection settings.
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig holds the mail submission settings. All fields except From are
// required for sending; From defaults to User when empty.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// UsersConfig points at the user-profile service used for enrichment lookups.
type UsersConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	InternalUID    string `yaml:"internal_uid"`
}

// ServerConfig holds the health/metrics HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// OverrideMQFromEnv applies MQ_URL on top of the file config.
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv applies REDIS_* on top of the file config.
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.DB = n
		}
	}
}

// OverrideSMTPFromEnv applies SMTP_* on top of the file config.
func OverrideSMTPFromEnv(cfg *SMTPConfig) {
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("SMTP_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("SMTP_PASS"); password != "" {
		cfg.Password = password
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		cfg.From = from
	}
}

// OverrideUsersFromEnv applies USERS_SERVICE_URL on top of the file config.
func OverrideUsersFromEnv(cfg *UsersConfig) {
	if url := os.Getenv("USERS_SERVICE_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideServerFromEnv applies SERVER_PORT on top of the file config.
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}
