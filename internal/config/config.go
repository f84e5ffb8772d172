package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration for both the sync server and
// the client daemon
type Config struct {
	// Server side
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	// Client side (sync daemon)
	APIBaseURL       string // Base URL of the sync server
	LocalDBPath      string // Path of the local sqlite database
	SyncUsername     string // Account used by the sync daemon
	SyncPassword     string // Account password
	SyncIntervalSecs int    // Seconds between periodic sync runs
	SyncOnReconnect  bool   // Trigger a sync when connectivity returns
	ConflictStrategy string // Pull-side resolution strategy
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	interval, err := strconv.Atoi(os.Getenv("SYNC_INTERVAL_SECS"))
	if err != nil || interval <= 0 {
		interval = 300 // Default: every five minutes
	}
	return &Config{
		AppPort:    os.Getenv("APP_PORT"),          // Application port
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     os.Getenv("DB_HOST"),           // Database host
		DBPort:     os.Getenv("DB_PORT"),           // Database port
		DBName:     os.Getenv("DB_NAME"),           // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:  os.Getenv("REDIS_ADDR"),        // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),        // Redis password
		RedisDB:    redisDB,                        // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true", // Is production environment

		APIBaseURL:       getenvDefault("API_BASE_URL", "http://localhost:8080"), // Sync server URL
		LocalDBPath:      getenvDefault("LOCAL_DB_PATH", "capital_flux.db"),      // Local sqlite path
		SyncUsername:     os.Getenv("SYNC_USERNAME"),                             // Sync account
		SyncPassword:     os.Getenv("SYNC_PASSWORD"),                             // Sync account password
		SyncIntervalSecs: interval,                                               // Periodic sync interval
		SyncOnReconnect:  os.Getenv("SYNC_ON_RECONNECT") != "false",              // Reconnect trigger (default on)
		ConflictStrategy: getenvDefault("CONFLICT_STRATEGY", "server_wins"),      // Pull-side strategy
	}
}

// getenvDefault reads an environment variable with a fallback
func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
