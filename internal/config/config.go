package config

import "os"

type Config struct {
	Addr       string
	CORSOrigin string
	// Snapshot persistence. Redis wins when both are set; with neither the
	// engine runs purely in memory.
	RedisURL    string
	DatabaseURL string
	// MirrorDir enables the git audit mirror when non-empty.
	MirrorDir string
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8788"),
		CORSOrigin:  getenv("CONCORD_CORS_ORIGIN", "*"),
		RedisURL:    getenv("REDIS_URL", ""),
		DatabaseURL: getenv("DATABASE_URL", ""),
		MirrorDir:   getenv("CONCORD_MIRROR_DIR", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
