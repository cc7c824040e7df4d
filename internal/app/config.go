package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr               string
	MusicDir               string
	PublicDir              string
	AdminPassword          string
	LogLevel               string
	LogFormat              string
	CacheTTL               time.Duration
	CacheMaxEntries        int
	DownloadTimeout        time.Duration
	MaxConcurrentDownloads int
	MongoURI               string // empty = history kept in memory only
	MongoDatabase          string
	RedisAddr              string // empty = metadata cache stays in-process
	CORSAllowedOrigins     []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		MusicDir:               getEnv("MUSIC_DIR", "music"),
		PublicDir:              getEnv("PUBLIC_DIR", ""),
		AdminPassword:          getEnv("ADMIN_PASSWORD", "admin"),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:              strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CacheTTL:               time.Duration(getEnvInt64("CACHE_TTL_SECONDS", 7200)) * time.Second,
		CacheMaxEntries:        int(getEnvInt64("CACHE_MAX_ENTRIES", 500)),
		DownloadTimeout:        time.Duration(getEnvInt64("DOWNLOAD_TIMEOUT_SECONDS", 300)) * time.Second,
		MaxConcurrentDownloads: int(getEnvInt64("MAX_CONCURRENT_DOWNLOADS", 4)),
		MongoURI:               getEnv("MONGO_URI", ""),
		MongoDatabase:          getEnv("MONGO_DB", "musicstream"),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		CORSAllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
