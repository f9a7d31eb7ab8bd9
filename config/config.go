package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	Remote   RemoteConfig
	Database DatabaseConfig
	Forms    FormsConfig
	Backup   BackupConfig
	App      AppConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	WebAPIKey       string
}

// Remote backends accepted by RemoteConfig.Backend.
const (
	RemoteFirestore = "firestore"
	RemotePostgres  = "postgres"
	RemoteMemory    = "memory"
)

type RemoteConfig struct {
	Backend    string
	RetryBase  time.Duration
	MaxRetries int
}

// SQL drivers accepted by DatabaseConfig.Driver.
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type FormsConfig struct {
	Debounce  time.Duration
	SweepCron string
}

type BackupConfig struct {
	S3Bucket string
	Region   string
	Prefix   string
	Endpoint string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
	Namespace   string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			WebAPIKey:       getEnv("FIREBASE_WEB_API_KEY", ""),
		},
		Remote: RemoteConfig{
			Backend:    getEnv("REMOTE_BACKEND", RemoteFirestore),
			RetryBase:  time.Duration(getEnvAsInt("REMOTE_RETRY_BASE_MS", 1000)) * time.Millisecond,
			MaxRetries: getEnvAsInt("REMOTE_MAX_RETRIES", 3),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", DriverPgx),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "fitforge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Forms: FormsConfig{
			Debounce:  time.Duration(getEnvAsInt("FORM_DEBOUNCE_MS", 750)) * time.Millisecond,
			SweepCron: getEnv("FORM_SWEEP_CRON", "@hourly"),
		},
		Backup: BackupConfig{
			S3Bucket: getEnv("BACKUP_S3_BUCKET", ""),
			Region:   getEnv("BACKUP_S3_REGION", "eu-west-1"),
			Prefix:   getEnv("BACKUP_S3_PREFIX", "exports/"),
			Endpoint: getEnv("BACKUP_S3_ENDPOINT", ""),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Namespace:   getEnv("APP_NAMESPACE", "fitforge"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.App.Namespace == "" {
		return fmt.Errorf("APP_NAMESPACE is required")
	}

	switch c.Remote.Backend {
	case RemoteFirestore:
		if c.Firebase.ProjectID == "" && c.Firebase.CredentialsPath == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_PATH is required for the firestore backend")
		}
	case RemotePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required for the postgres backend")
		}
		if c.Database.Driver != DriverPgx && c.Database.Driver != DriverPq {
			return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPgx, DriverPq, c.Database.Driver)
		}
	case RemoteMemory:
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q", c.Remote.Backend)
	}

	if c.Remote.MaxRetries < 1 {
		return fmt.Errorf("REMOTE_MAX_RETRIES must be at least 1")
	}

	if c.Forms.Debounce <= 0 {
		return fmt.Errorf("FORM_DEBOUNCE_MS must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
