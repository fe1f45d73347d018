package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	IdentitySupabase = "supabase"
	IdentityFirebase = "firebase"
	IdentityLocal    = "local"

	StorageLocal    = "local"
	StorageSupabase = "supabase"
	StorageS3       = "s3"
)

// Config holds application runtime configuration.
type Config struct {
	Env         string
	HTTPPort    string
	LogLevel    string
	DatabaseURL string
	JWTSecret   string

	IdentityProvider       string
	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	FirebaseProjectID      string
	FirebaseCredFile       string

	StorageDriver   string
	StorageBucket   string
	S3Region        string
	S3Endpoint      string
	S3AccessKeyID   string
	S3SecretKey     string
	S3PublicBaseURL string
	UploadDir       string
	PublicBaseURL   string
	MaxUploadBytes  int64

	GeocoderURL            string
	GeocoderUserAgent      string
	GeocoderPreciseTimeout time.Duration
	GeocoderRelaxedTimeout time.Duration

	ResetPasswordRoles []string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	HTTPClientTimeout      time.Duration
	ExternalMaxRetries     int
	ExternalInitialBackoff time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		IdentityProvider:       strings.ToLower(getEnv("IDENTITY_PROVIDER", IdentitySupabase)),
		SupabaseURL:            strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseAnonKey:        os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		FirebaseProjectID:      os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredFile:       getEnv("FIREBASE_CREDENTIALS", os.Getenv("FIREBASE_CREDENTIALS_FILE")),

		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", StorageLocal)),
		StorageBucket:   getEnv("STORAGE_BUCKET", "visit-photos"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:   os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),
		MaxUploadBytes:  int64(getInt("MAX_UPLOAD_MB", 10)) << 20,

		GeocoderURL:            getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:      getEnv("GEOCODER_USER_AGENT", "CRM-App/1.0"),
		GeocoderPreciseTimeout: getDuration("GEOCODER_PRECISE_TIMEOUT", 5*time.Second),
		GeocoderRelaxedTimeout: getDuration("GEOCODER_RELAXED_TIMEOUT", 15*time.Second),

		ResetPasswordRoles: getList("RESET_PASSWORD_ROLES", []string{"super_admin"}),

		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		HTTPClientTimeout:      getDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second),
		ExternalMaxRetries:     getInt("EXTERNAL_MAX_RETRIES", 2),
		ExternalInitialBackoff: getDuration("EXTERNAL_INITIAL_BACKOFF", 200*time.Millisecond),

		ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	return cfg, cfg.Validate()
}

// Validate rejects provider combinations that cannot start.
func (c Config) Validate() error {
	switch c.IdentityProvider {
	case IdentitySupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase identity provider")
		}
	case IdentityFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firebase identity provider")
		}
	case IdentityLocal:
	default:
		return errors.New("IDENTITY_PROVIDER must be one of supabase, firebase, local")
	}

	switch c.StorageDriver {
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase storage")
		}
	case StorageS3:
		if c.S3PublicBaseURL == "" {
			return errors.New("S3_PUBLIC_BASE_URL is required for s3 storage")
		}
	case StorageLocal:
	default:
		return errors.New("STORAGE_DRIVER must be one of local, supabase, s3")
	}
	return nil
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Support seconds as integer without suffix.
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// DatabaseURL loads .env and returns DATABASE_URL alone, for tools that
// only touch the schema.
func DatabaseURL() string {
	_ = godotenv.Load()
	return os.Getenv("DATABASE_URL")
}
