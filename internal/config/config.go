package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server Server
	Client Client
	JWT    JWT
}

type Server struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Client struct {
	GatewayURL           string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}

type JWT struct {
	Secret    []byte
	ExpiresIn time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Server: Server{
			Port:         getEnvOrDefault("PORT", ":8000"),
			ReadTimeout:  getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout: getDurationOrDefault("WRITE_TIMEOUT", "15s"),
		},
		Client: Client{
			GatewayURL:           getEnvOrDefault("GATEWAY_URL", "ws://localhost:8000"),
			MaxReconnectAttempts: getIntOrDefault("MAX_RECONNECT_ATTEMPTS", 3),
			ReconnectDelay:       getDurationOrDefault("RECONNECT_DELAY", "5s"),
		},
		JWT: JWT{
			Secret:    []byte(getEnvOrDefault("JWT_SECRET", "dev-only-secret")),
			ExpiresIn: getDurationOrDefault("JWT_EXPIRES_IN", "24h"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}
