package config

import (
	"fmt"
	"os"

	"compositesvc/pkg/config"

	"gopkg.in/yaml.v3"
)

// NotifierConfig names the topics and subscriptions the dispatcher consumes
// and bounds its retry/shutdown behavior.
type NotifierConfig struct {
	EventTopic           string `yaml:"event_topic"`
	UserTopic            string `yaml:"user_topic"`
	EventQueue           string `yaml:"event_queue"`
	UserQueue            string `yaml:"user_queue"`
	RetryMax             int64  `yaml:"retry_max"`
	ShutdownGraceSeconds int    `yaml:"shutdown_grace_seconds"`
}

type Config struct {
	MQ       config.MQConfig     `yaml:"mq"`
	Redis    config.RedisConfig  `yaml:"redis"`
	SMTP     config.SMTPConfig   `yaml:"smtp"`
	Users    config.UsersConfig  `yaml:"users"`
	Server   config.ServerConfig `yaml:"server"`
	Notifier NotifierConfig      `yaml:"notifier"`
}

// Load builds the configuration once at startup: layered yaml files, then
// environment overrides, then defaults. The result is read-only afterwards
// and safely shared across workers.
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideSMTPFromEnv(&cfg.SMTP)
	config.OverrideUsersFromEnv(&cfg.Users)
	config.OverrideServerFromEnv(&cfg.Server)
	cfg.Notifier.overrideFromEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (n *NotifierConfig) overrideFromEnv() {
	if v := os.Getenv("NOTIFIER_EVENT_TOPIC"); v != "" {
		n.EventTopic = v
	}
	if v := os.Getenv("NOTIFIER_USER_TOPIC"); v != "" {
		n.UserTopic = v
	}
	if v := os.Getenv("NOTIFIER_EVENT_SUB"); v != "" {
		n.EventQueue = v
	}
	if v := os.Getenv("NOTIFIER_USER_SUB"); v != "" {
		n.UserQueue = v
	}
}

func (c *Config) applyDefaults() {
	if c.Notifier.EventTopic == "" {
		c.Notifier.EventTopic = "event-created"
	}
	if c.Notifier.UserTopic == "" {
		c.Notifier.UserTopic = "user-created"
	}
	if c.Notifier.EventQueue == "" {
		c.Notifier.EventQueue = "event-notification-sub"
	}
	if c.Notifier.UserQueue == "" {
		c.Notifier.UserQueue = "user-welcome-sub"
	}
	if c.Notifier.RetryMax <= 0 {
		c.Notifier.RetryMax = 5
	}
	if c.Notifier.ShutdownGraceSeconds <= 0 {
		c.Notifier.ShutdownGraceSeconds = 20
	}
	if c.Users.TimeoutSeconds <= 0 {
		c.Users.TimeoutSeconds = 5
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Server.Port == "" {
		c.Server.Port = "8086"
	}
}

// Validate reports missing required settings before any worker starts.
// Absent broker identity or SMTP credentials is a startup error, never a
// silent no-op discovered mid-message.
func (c *Config) Validate() error {
	if c.MQ.URL == "" {
		return fmt.Errorf("mq.url is required (set MQ_URL)")
	}
	if c.Users.URL == "" {
		return fmt.Errorf("users.url is required (set USERS_SERVICE_URL)")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required (set SMTP_HOST)")
	}
	if c.SMTP.User == "" {
		return fmt.Errorf("smtp.user is required (set SMTP_USER)")
	}
	if c.SMTP.Password == "" {
		return fmt.Errorf("smtp.password is required (set SMTP_PASS)")
	}
	return nil
}
