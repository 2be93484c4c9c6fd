package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. It is built once in Load and handed
// explicitly to constructors; nothing mutates it after startup.
type Config struct {
	ServerAddr string
	LogLevel   string

	DatabaseURL string

	JWTSecret       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
	FromName     string

	KafkaAddress string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		ServerAddr:      getenv("SERVER_ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       []byte(os.Getenv("JWT_SECRET")),
		AccessTokenTTL:  time.Duration(getenvInt("ACCESS_TOKEN_EXPIRY_MINUTES", 15)) * time.Minute,
		RefreshTokenTTL: time.Duration(getenvInt("REFRESH_TOKEN_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		ResetTokenTTL:   time.Duration(getenvInt("RESET_TOKEN_EXPIRY_MINUTES", 15)) * time.Minute,
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        getenvInt("SMTP_PORT", 587),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		FromEmail:       os.Getenv("FROM_EMAIL"),
		FromName:        getenv("FROM_NAME", "Complaintdesk"),
		KafkaAddress:    os.Getenv("KAFKA_ADDRESS"),
		KafkaTopic:      getenv("KAFKA_TOPIC", "complaint-events"),
		ESURL:           os.Getenv("ES_URL"),
		ESUser:          os.Getenv("ES_USER"),
		ESPassword:      os.Getenv("ES_PASSWORD"),
		ESIndex:         getenv("ES_INDEX", "complaints"),
	}

	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is empty")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Notice: %s=%q is not a number, using %d", key, v, def)
		return def
	}
	return n
}
