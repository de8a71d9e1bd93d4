package config

import (
	"errors"
	"io/fs"
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

	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Assigner AssignerConfig
	Jobs     JobsConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AssignerConfig holds the defaults applied to assignment runs that leave a setting unset.
type AssignerConfig struct {
	MaxClasses      int
	DefaultCapacity int
	LunchEnabled    bool
	LunchMarker     string
	DuplicatePolicy string
	MaxStudents     int
	ResultTTL       time.Duration
	CacheEnabled    bool
}

// JobsConfig sizes the worker pool used for asynchronous runs.
type JobsConfig struct {
	Workers    int
	QueueSize  int
	RetryDelay time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Assigner = AssignerConfig{
		MaxClasses:      v.GetInt("ASSIGNER_MAX_CLASSES"),
		DefaultCapacity: v.GetInt("ASSIGNER_DEFAULT_CAPACITY"),
		LunchEnabled:    v.GetBool("ASSIGNER_LUNCH_ENABLED"),
		LunchMarker:     v.GetString("ASSIGNER_LUNCH_MARKER"),
		DuplicatePolicy: strings.ToLower(v.GetString("ASSIGNER_DUPLICATE_POLICY")),
		MaxStudents:     v.GetInt("ASSIGNER_MAX_STUDENTS"),
		ResultTTL:       parseDuration(v.GetString("ASSIGNER_RESULT_TTL"), 30*time.Minute),
		CacheEnabled:    v.GetBool("ENABLE_RESULT_CACHE"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("ASSIGNER_WORKERS"),
		QueueSize:  v.GetInt("ASSIGNER_QUEUE_SIZE"),
		RetryDelay: parseDuration(v.GetString("ASSIGNER_RETRY_DELAY"), time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ASSIGNER_MAX_CLASSES", 3)
	v.SetDefault("ASSIGNER_DEFAULT_CAPACITY", 5)
	v.SetDefault("ASSIGNER_LUNCH_ENABLED", true)
	v.SetDefault("ASSIGNER_LUNCH_MARKER", "Lunch")
	v.SetDefault("ASSIGNER_DUPLICATE_POLICY", "allow")
	v.SetDefault("ASSIGNER_MAX_STUDENTS", 5000)
	v.SetDefault("ASSIGNER_RESULT_TTL", "30m")
	v.SetDefault("ENABLE_RESULT_CACHE", false)

	v.SetDefault("ASSIGNER_WORKERS", 2)
	v.SetDefault("ASSIGNER_QUEUE_SIZE", 32)
	v.SetDefault("ASSIGNER_RETRY_DELAY", "1s")
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
