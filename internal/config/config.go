package config

import (
	"os"
	"strings"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string
	CORSOrigins []string

	// PermissiveRelay keeps a chat message flowing (persist + broadcast)
	// even when the referenced room or sender cannot be resolved in the
	// durable store. Off by default: unresolvable messages are dropped
	// with a warning.
	PermissiveRelay bool
}

func Load() Config {
	cfg := Config{
		Addr:        ":8080",
		RedisAddr:   "localhost:6379",
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: []string{"*"},
	}

	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if os.Getenv("PERMISSIVE_RELAY") == "true" {
		cfg.PermissiveRelay = true
	}

	return cfg
}
