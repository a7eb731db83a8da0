package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Booking  BookingConfig
	Lock     LockConfig
	Quota    QuotaConfig
	Sweeper  SweeperConfig
	Export   ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BookingConfig tunes the availability cache and trial rules.
type BookingConfig struct {
	BusyIndexTTL        time.Duration
	BusyIndexJitter     time.Duration
	KnownEmptyTTL       time.Duration
	TrialWindowDays     int // 0 means lifetime uniqueness
	CountCancelledTrial bool
}

// LockConfig tunes the distributed booking lock.
type LockConfig struct {
	TTL           time.Duration
	Retries       int
	RetryInterval time.Duration
}

// QuotaConfig sets the monthly adjustment allowance per actor and enrollment.
type QuotaConfig struct {
	StudentMonthlyAllowance int
	TeacherMonthlyAllowance int
}

// SweeperConfig controls the expired-session sweep job.
type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
	Workers  int
}

// ExportConfig gates timetable exports.
type ExportConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Booking = BookingConfig{
		BusyIndexTTL:        parseDuration(v.GetString("BUSY_INDEX_TTL"), 10*time.Minute),
		BusyIndexJitter:     parseDuration(v.GetString("BUSY_INDEX_JITTER"), 2*time.Minute),
		KnownEmptyTTL:       parseDuration(v.GetString("BUSY_INDEX_EMPTY_TTL"), 2*time.Minute),
		TrialWindowDays:     v.GetInt("TRIAL_WINDOW_DAYS"),
		CountCancelledTrial: v.GetBool("TRIAL_COUNT_CANCELLED"),
	}

	cfg.Lock = LockConfig{
		TTL:           parseDuration(v.GetString("BOOKING_LOCK_TTL"), 10*time.Second),
		Retries:       v.GetInt("BOOKING_LOCK_RETRIES"),
		RetryInterval: parseDuration(v.GetString("BOOKING_LOCK_RETRY_INTERVAL"), 100*time.Millisecond),
	}

	cfg.Quota = QuotaConfig{
		StudentMonthlyAllowance: v.GetInt("QUOTA_STUDENT_MONTHLY"),
		TeacherMonthlyAllowance: v.GetInt("QUOTA_TEACHER_MONTHLY"),
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:  v.GetBool("ENABLE_SESSION_SWEEPER"),
		Interval: parseDuration(v.GetString("SESSION_SWEEP_INTERVAL"), 15*time.Minute),
		Workers:  v.GetInt("SESSION_SWEEP_WORKERS"),
	}

	cfg.Export = ExportConfig{
		Enabled: v.GetBool("ENABLE_TIMETABLE_EXPORT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutorhive")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BUSY_INDEX_TTL", "10m")
	v.SetDefault("BUSY_INDEX_JITTER", "2m")
	v.SetDefault("BUSY_INDEX_EMPTY_TTL", "2m")
	v.SetDefault("TRIAL_WINDOW_DAYS", 0)
	v.SetDefault("TRIAL_COUNT_CANCELLED", false)

	v.SetDefault("BOOKING_LOCK_TTL", "10s")
	v.SetDefault("BOOKING_LOCK_RETRIES", 3)
	v.SetDefault("BOOKING_LOCK_RETRY_INTERVAL", "100ms")

	v.SetDefault("QUOTA_STUDENT_MONTHLY", 3)
	v.SetDefault("QUOTA_TEACHER_MONTHLY", 3)

	v.SetDefault("ENABLE_SESSION_SWEEPER", false)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "15m")
	v.SetDefault("SESSION_SWEEP_WORKERS", 1)

	v.SetDefault("ENABLE_TIMETABLE_EXPORT", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
