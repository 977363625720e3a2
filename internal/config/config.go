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
	Secret     string `mapstructure:"secret"`

	// Push channel.
	PushBuffer      int           `mapstructure:"push_buffer"`
	HeartbeatPeriod time.Duration `mapstructure:"heartbeat_period"`
	ReadLimit       int64         `mapstructure:"read_limit"`

	// How long a dropped channel may stay gone before the router
	// synthesizes a leave on the participant's behalf.
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`

	// Join request rate limit per participant.
	JoinRateLimit    int           `mapstructure:"join_rate_limit"`
	JoinRateInterval time.Duration `mapstructure:"join_rate_interval"`

	// Directory backend: "memory" or "badger".
	Directory     string `mapstructure:"directory"`
	DirectoryPath string `mapstructure:"directory_path"`
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
	v.SetDefault("push_buffer", 32)
	v.SetDefault("heartbeat_period", "25s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("disconnect_grace", "30s")
	v.SetDefault("join_rate_limit", 10)
	v.SetDefault("join_rate_interval", "1m")
	v.SetDefault("directory", "memory")
	v.SetDefault("directory_path", "./data/directory")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
