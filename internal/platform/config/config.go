package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr            string
	ExternalBaseURL string
	DatabaseURL     string
	RedisURL        string
	SecretKey       string
	AdminEmail      string
	PostsPerPage    int
	LogLevel        string
	Env             string // dev|prod
}

// FromEnv builds a Server config from environment variables. A .env file is
// loaded first when present so local development matches deployment.
func FromEnv() Server {
	_ = godotenv.Load()

	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		// Development fallback; override in production.
		secret = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:            getenv("CLASSHUB_ADDR", ":8080"),
		ExternalBaseURL: getenv("EXTERNAL_BASE_URL", "http://localhost:8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		SecretKey:       secret,
		AdminEmail:      os.Getenv("CLASSHUB_ADMIN"),
		PostsPerPage:    getint("POSTS_PER_PAGE", 20),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Env:             getenv("ENV", "dev"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
