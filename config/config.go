package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Voice    VoiceConfig
	Live     LiveConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    int
	RateWindow   time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string // empty disables the durable room registry
	Password string
	DB       int
}

type VoiceConfig struct {
	RoomTTLSec int // registry TTL for stale-room expiry
}

// LiveConfig tunes the client core defaults.
type LiveConfig struct {
	CacheMaxAge         time.Duration // geolocation coordinate cache
	AutoRefreshInterval time.Duration // suggestion polling
	IPLookupURL         string
	StatePath           string // durable client state file
}

func Load() *Config {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "8099"),
			Env:          envOr("APP_ENV", "development"),
			LogLevel:     envOr("LOG_LEVEL", ""),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit:    envInt("RATE_LIMIT", 120),
			RateWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DATABASE_DSN", "chessroam:chessroam@tcp(localhost:3306)/chessroam?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr:     envOr("REDIS_ADDR", ""),
			Password: envOr("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		Voice: VoiceConfig{
			RoomTTLSec: envInt("VOICE_ROOM_TTL_SEC", 60*60),
		},
		Live: LiveConfig{
			CacheMaxAge:         time.Duration(envInt("LIVE_CACHE_MAX_AGE_SEC", 300)) * time.Second,
			AutoRefreshInterval: time.Duration(envInt("LIVE_AUTO_REFRESH_SEC", 300)) * time.Second,
			IPLookupURL:         envOr("LIVE_IP_LOOKUP_URL", "https://ipapi.co/json/"),
			StatePath:           envOr("LIVE_STATE_PATH", defaultStatePath()),
		},
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chessroam/state.json"
	}
	return strings.TrimSuffix(home, "/") + "/.chessroam/state.json"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
