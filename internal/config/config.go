package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/streampulse/viewership-service/internal/publisher"
	pkgconfig "github.com/streampulse/viewership-service/pkg/config"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Presence  PresenceConfig
	Cache     CacheConfig
	Broadcast publisher.Config
	Liveness  LivenessConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string `mapstructure:"db_name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type PresenceConfig struct {
	ActiveWindow time.Duration `mapstructure:"active_window"`
	MaxListeners int           `mapstructure:"max_listeners"`
}

type CacheConfig struct {
	TTL    time.Duration `mapstructure:"ttl"`
	Prefix string
}

type LivenessConfig struct {
	URL     string
	Timeout time.Duration
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8094)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "viewership.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("presence.active_window", "120s")
	v.SetDefault("presence.max_listeners", 50)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.prefix", "viewcount")
	v.SetDefault("broadcast.driver", "push")
	v.SetDefault("broadcast.channel_prefix", "viewers")
	v.SetDefault("broadcast.push.timeout", "8s")
	v.SetDefault("broadcast.kafka.topic", "viewer-count-updates")
	v.SetDefault("liveness.timeout", "8s")
	v.SetDefault("log.level", "info")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("broadcast.driver", "BROADCAST_DRIVER")
	v.BindEnv("broadcast.push.endpoint", "PUSH_ENDPOINT")
	v.BindEnv("broadcast.push.key", "PUSH_KEY")
	v.BindEnv("broadcast.push.secret", "PUSH_SECRET")
	v.BindEnv("broadcast.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("liveness.url", "LIVENESS_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Presence.ActiveWindow = parseDuration(v, "presence.active_window", 120*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 30*time.Second)
	cfg.Broadcast.Push.Timeout = parseDuration(v, "broadcast.push.timeout", 8*time.Second)
	cfg.Liveness.Timeout = parseDuration(v, "liveness.timeout", 8*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
