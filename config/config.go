package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds application configuration loaded from environment variables and .env file.
type AppConfig struct {
	// Definition store config
	DBHost string
	DBPort int
	DBUser string
	DBPass string
	DBName string

	// Logging config
	LogLevel      string
	LogFile       string
	LogMaxSize    int // MB
	LogMaxBackups int
	LogMaxAge     int // days
	LogCompress   bool

	// Process-wide encryption key for connection configurations,
	// base64-encoded 32 bytes. Loaded once at startup, immutable
	// afterwards, never persisted alongside the data it seals.
	EncryptionKey string

	// HTTP config
	Port string
}

// Cfg is the global application configuration instance.
var Cfg AppConfig

// LoadConfig loads and validates application configuration from .env file and environment variables.
func LoadConfig() error {
	err := godotenv.Load()
	if err != nil {
		// Use standard log here since logger is not initialized yet
		log.Printf("[WARN] .env file not found or cannot be loaded: %v", err)
	} else {
		log.Printf("[INFO] .env file loaded successfully")
	}

	Cfg.DBHost = getEnv("DB_HOST", "127.0.0.1")
	Cfg.DBUser = getEnv("DB_USER", "root")
	Cfg.DBPass = getEnv("DB_PASS", "")
	Cfg.DBName = getEnv("DB_NAME", "gateway_db")

	portStr := getEnv("DB_PORT", "3306")
	portInt, _ := strconv.Atoi(portStr)
	Cfg.DBPort = portInt

	// Load logging config
	Cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")
	Cfg.LogFile = getEnv("LOG_FILE", "/var/log/dbgateway/dbgateway.log")
	Cfg.LogMaxSize = getEnvInt("LOG_MAX_SIZE", 10)
	Cfg.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", 3)
	Cfg.LogMaxAge = getEnvInt("LOG_MAX_AGE", 28)
	Cfg.LogCompress = getEnvBool("LOG_COMPRESS", true)

	Cfg.EncryptionKey = strings.TrimSpace(os.Getenv("GATEWAY_ENCRYPTION_KEY"))
	Cfg.Port = getEnv("PORT", "8082")

	log.Printf("[INFO] Config loaded - store: %s@%s:%d/%s, LogLevel: %s",
		Cfg.DBUser, Cfg.DBHost, Cfg.DBPort, Cfg.DBName, Cfg.LogLevel)

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
