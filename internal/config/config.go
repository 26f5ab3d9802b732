package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Provider ProviderConfig `mapstructure:"provider"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// WebhookConfig drives the event dispatcher. An empty URL disables outbound
// notifications entirely.
type WebhookConfig struct {
	URL         string        `mapstructure:"url"`
	Secret      string        `mapstructure:"secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type QueueConfig struct {
	Workers            int           `mapstructure:"workers"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	SendTimeout        time.Duration `mapstructure:"send_timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	MaxBatchSize       int           `mapstructure:"max_batch_size"`
	DelayCeiling       time.Duration `mapstructure:"delay_ceiling"`
	RetentionCompleted int           `mapstructure:"retention_completed"`
	RetentionFailed    int           `mapstructure:"retention_failed"`
}

type ProviderConfig struct {
	Driver   string        `mapstructure:"driver"`
	FailRate float64       `mapstructure:"fail_rate"`
	Latency  time.Duration `mapstructure:"latency"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("chatrelay")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/chatrelay")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHATRELAY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("auth.api_key", "")

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/chatrelay.db")

	viper.SetDefault("webhook.url", "")
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.timeout", 10*time.Second)
	viper.SetDefault("webhook.max_attempts", 3)
	viper.SetDefault("webhook.base_delay", 5*time.Second)
	viper.SetDefault("webhook.max_delay", 5*time.Minute)

	viper.SetDefault("queue.workers", 2)
	viper.SetDefault("queue.poll_interval", 1*time.Second)
	viper.SetDefault("queue.send_timeout", 30*time.Second)
	viper.SetDefault("queue.max_attempts", 3)
	viper.SetDefault("queue.base_delay", 5*time.Second)
	viper.SetDefault("queue.max_delay", 5*time.Minute)
	viper.SetDefault("queue.max_batch_size", 100)
	viper.SetDefault("queue.delay_ceiling", 60*time.Second)
	viper.SetDefault("queue.retention_completed", 100)
	viper.SetDefault("queue.retention_failed", 1000)

	viper.SetDefault("provider.driver", "mock")
	viper.SetDefault("provider.fail_rate", 0.0)
	viper.SetDefault("provider.latency", 50*time.Millisecond)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
