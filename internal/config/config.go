package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           int
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	MongoURI string
	MongoDB  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	BcryptCost     int
	CallTimeout    time.Duration
	MaxAttempts    int
	OTPRetention   time.Duration
	DevFallback    bool
	FallbackEmail  string
	FallbackCode   string
	RateLimitRPS   float64
	RateLimitBurst int
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads the process environment. A .env file in the working directory
// is picked up by godotenv before Load runs.
func Load() Config {
	env := getenv("APP_ENV", "development")
	username := getenv("SMTP_USERNAME", "")

	return Config{
		Port:           getInt("PORT", 8080),
		Environment:    env,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		AllowedOrigins: splitAndTrim(getenv("ALLOWED_ORIGINS", "")),

		MongoURI: must("MONGO_URI"),
		MongoDB:  getenv("MONGO_DB", "aadhar"),

		SMTPHost:     getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: username,
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", username),

		BcryptCost:     getInt("BCRYPT_COST", 10),
		CallTimeout:    getDuration("OTP_CALL_TIMEOUT", 5*time.Second),
		MaxAttempts:    getInt("OTP_MAX_ATTEMPTS", 0),
		OTPRetention:   getDuration("OTP_RETENTION", 24*time.Hour),
		DevFallback:    getBool("OTP_DEV_FALLBACK", env != "production"),
		FallbackEmail:  getenv("OTP_FALLBACK_EMAIL", "mock@local.dev"),
		FallbackCode:   getenv("OTP_FALLBACK_CODE", "123456"),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 3),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 5),
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func must(key string) string {
	v := getenv(key, "")
	if v == "" {
		log.Fatal().Str("key", key).Msg("Required environment variable not set")
	}
	return v
}

func getInt(key string, fallback int) int {
	raw := getenv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Int("default", fallback).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := getenv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Float64("default", fallback).Msg("Invalid number in environment, using default")
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	raw := getenv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Bool("default", fallback).Msg("Invalid boolean in environment, using default")
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Dur("default", fallback).Msg("Invalid duration in environment, using default")
		return fallback
	}
	return v
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
