package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	ReadLimit  int64  `mapstructure:"read_limit"`
	Secret     string `mapstructure:"secret"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	Retention          time.Duration `mapstructure:"retention"`
	HistoryLimit       int           `mapstructure:"history_limit"`
	MaxTextBytes       int           `mapstructure:"max_text_bytes"`
	MaxAudioBytes      int           `mapstructure:"max_audio_bytes"`
	JoinWait           time.Duration `mapstructure:"join_wait"`
	DisconnectDebounce time.Duration `mapstructure:"disconnect_debounce"`
	ReaperInterval     time.Duration `mapstructure:"reaper_interval"`
	GracePeriod        time.Duration `mapstructure:"grace_period"`
	MinRoomAge         time.Duration `mapstructure:"min_room_age"`
	PresenceInterval   time.Duration `mapstructure:"presence_interval"`
	PairingTTL         time.Duration `mapstructure:"pairing_ttl"`
	PairingRetries     int           `mapstructure:"pairing_retries"`
	PairingBackoff     time.Duration `mapstructure:"pairing_backoff"`
	StoreTimeout       time.Duration `mapstructure:"store_timeout"`
	RateLimit          int           `mapstructure:"rate_limit"`
	RateInterval       time.Duration `mapstructure:"rate_interval"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 8<<20)
	v.SetDefault("secret", "change-me")

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("retention", "1h")
	v.SetDefault("history_limit", 50)
	v.SetDefault("max_text_bytes", 4096)
	v.SetDefault("max_audio_bytes", 5242880)
	v.SetDefault("join_wait", "2s")
	v.SetDefault("disconnect_debounce", "200ms")
	v.SetDefault("reaper_interval", "60s")
	v.SetDefault("grace_period", "60s")
	v.SetDefault("min_room_age", "30s")
	v.SetDefault("presence_interval", "60s")
	v.SetDefault("pairing_ttl", "5m")
	v.SetDefault("pairing_retries", 5)
	v.SetDefault("pairing_backoff", "300ms")
	v.SetDefault("store_timeout", "3s")
	v.SetDefault("rate_limit", 20)
	v.SetDefault("rate_interval", "10s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Redis: %s\n", cfg.Mode, cfg.Port, cfg.RedisAddr)
	return &cfg, nil
}
