package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Storage    StorageConfig
	Branding   BrandingConfig
	Import     ImportConfig
}

type ServerConfig struct {
	Host                  string
	Port                  int
	Env                   string
	PublicURL             string
	RequestTimeoutSeconds int
	AllowedOrigins        []string
}

type DatabaseConfig struct {
	Driver      string // postgres or sqlite
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	Path        string // sqlite file path
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
	LoginRequests int
}

type StorageConfig struct {
	Backend    string // local, s3, gcs
	UploadsDir string
	S3         S3Config
	GCS        GCSConfig
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	PublicBaseURL   string
}

type BrandingConfig struct {
	DefaultAppName string
}

type ImportConfig struct {
	MaxUploadMB  int
	CleanupCron  string
	StagingDir   string
	StagingTTLHr int
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (s *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// MaxUploadBytes is the multipart body limit applied to CSV imports.
func (i *ImportConfig) MaxUploadBytes() int64 {
	return int64(i.MaxUploadMB) << 20
}

func (i *ImportConfig) StagingTTL() time.Duration {
	return time.Duration(i.StagingTTLHr) * time.Hour
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_PUBLIC_URL", "")
	v.SetDefault("SERVER_REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "turnout")
	v.SetDefault("DATABASE_PASSWORD", "turnout_secret")
	v.SetDefault("DATABASE_NAME", "turnout")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_PATH", "turnout.db")
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 12)
	v.SetDefault("RATE_LIMIT_REQUESTS", 300)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("LOGIN_RATE_LIMIT_REQUESTS", 10)
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("UPLOADS_DIR", "uploads")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("BRANDING_DEFAULT_APP_NAME", "Team Turnout Tracker")
	v.SetDefault("IMPORT_MAX_UPLOAD_MB", 50)
	v.SetDefault("UPLOADS_CLEANUP_CRON", "0 3 * * *")
	v.SetDefault("IMPORT_STAGING_TTL_HOURS", 24)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	uploadsDir := v.GetString("UPLOADS_DIR")

	cfg := &Config{
		Server: ServerConfig{
			Host:                  v.GetString("SERVER_HOST"),
			Port:                  v.GetInt("SERVER_PORT"),
			Env:                   v.GetString("SERVER_ENV"),
			PublicURL:             strings.TrimRight(v.GetString("SERVER_PUBLIC_URL"), "/"),
			RequestTimeoutSeconds: v.GetInt("SERVER_REQUEST_TIMEOUT_SECONDS"),
			AllowedOrigins:        splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:      v.GetString("DATABASE_DRIVER"),
			Host:        v.GetString("DATABASE_HOST"),
			Port:        v.GetInt("DATABASE_PORT"),
			User:        v.GetString("DATABASE_USER"),
			Password:    v.GetString("DATABASE_PASSWORD"),
			Name:        v.GetString("DATABASE_NAME"),
			SSLMode:     v.GetString("DATABASE_SSLMODE"),
			Path:        v.GetString("DATABASE_PATH"),
			AutoMigrate: v.GetBool("DATABASE_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			LoginRequests: v.GetInt("LOGIN_RATE_LIMIT_REQUESTS"),
		},
		Storage: StorageConfig{
			Backend:    v.GetString("STORAGE_BACKEND"),
			UploadsDir: uploadsDir,
			S3: S3Config{
				Bucket:          v.GetString("S3_BUCKET"),
				Region:          v.GetString("S3_REGION"),
				Endpoint:        v.GetString("S3_ENDPOINT"),
				AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
				SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
				PublicBaseURL:   v.GetString("S3_PUBLIC_BASE_URL"),
			},
			GCS: GCSConfig{
				Bucket:          v.GetString("GCS_BUCKET"),
				CredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
				PublicBaseURL:   v.GetString("GCS_PUBLIC_BASE_URL"),
			},
		},
		Branding: BrandingConfig{
			DefaultAppName: v.GetString("BRANDING_DEFAULT_APP_NAME"),
		},
		Import: ImportConfig{
			MaxUploadMB:  v.GetInt("IMPORT_MAX_UPLOAD_MB"),
			CleanupCron:  v.GetString("UPLOADS_CLEANUP_CRON"),
			StagingDir:   uploadsDir + "/imports",
			StagingTTLHr: v.GetInt("IMPORT_STAGING_TTL_HOURS"),
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
