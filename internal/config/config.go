package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type AgentConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	ReadLimit  int64  `mapstructure:"read_limit"`
	Secret     string `mapstructure:"secret"`

	// Sessions expect a client heartbeat every HeartbeatInterval; a
	// member silent for LivenessTimeout is treated as gone.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	LivenessTimeout   time.Duration `mapstructure:"liveness_timeout"`

	// Rooms created but never joined are reaped after EmptyRoomTTL.
	EmptyRoomTTL     time.Duration `mapstructure:"empty_room_ttl"`
	ChatHistoryLimit int           `mapstructure:"chat_history_limit"`

	ChatRateLimit  int           `mapstructure:"chat_rate_limit"`
	ChatRateWindow time.Duration `mapstructure:"chat_rate_window"`

	Agent AgentConfig `mapstructure:"agent"`
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
	v.SetDefault("read_limit", 32768)
	v.SetDefault("heartbeat_interval", "25s")
	v.SetDefault("liveness_timeout", "50s")
	v.SetDefault("empty_room_ttl", "5m")
	v.SetDefault("chat_history_limit", 50)
	v.SetDefault("chat_rate_limit", 5)
	v.SetDefault("chat_rate_window", "30s")
	v.SetDefault("agent.url", "http://localhost:8000")
	v.SetDefault("agent.timeout", "60s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Agent: %s\n", cfg.Mode, cfg.Port, cfg.Agent.URL)
	return &cfg, nil
}
