package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "ROOMBOOKING_"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Auth modes.
const (
	AuthLocal    = "local"
	AuthExternal = "external"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config captures the runtime configuration of the booking service.
type Config struct {
	HTTPPort int
	LogLevel slog.Level

	StorageDriver string
	SQLiteDSN     string
	PostgresDSN   string

	AuthMode         string
	JWTSecret        string
	JWTIssuer        string
	JWTPublicKeyFile string
	TokenTTL         time.Duration

	LockBackend   string
	LockTTL       time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string
}

// fileConfig mirrors the optional TOML file. Empty values leave the default
// in place.
type fileConfig struct {
	HTTP struct {
		Port int `toml:"port"`
	} `toml:"http"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	Storage struct {
		Driver      string `toml:"driver"`
		SQLiteDSN   string `toml:"sqlite_dsn"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"storage"`
	Auth struct {
		Mode          string `toml:"mode"`
		JWTSecret     string `toml:"jwt_secret"`
		JWTIssuer     string `toml:"jwt_issuer"`
		PublicKeyFile string `toml:"jwt_public_key_file"`
		TokenTTL      string `toml:"token_ttl"`
	} `toml:"auth"`
	Lock struct {
		Backend string `toml:"backend"`
		TTL     string `toml:"ttl"`
	} `toml:"lock"`
	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`
	Kafka struct {
		Brokers []string `toml:"brokers"`
		Topic   string   `toml:"topic"`
	} `toml:"kafka"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPPort:      8080,
		LogLevel:      slog.LevelInfo,
		StorageDriver: DriverSQLite,
		SQLiteDSN:     "file:roombooking.db",
		AuthMode:      AuthLocal,
		JWTIssuer:     "room-booking",
		TokenTTL:      24 * time.Hour,
		LockBackend:   LockLocal,
		LockTTL:       10 * time.Second,
		KafkaTopic:    "booking-events",
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// ROOMBOOKING_CONFIG_FILE and the process environment, in increasing order of
// precedence. ROOMBOOKING_ENV_FILE names an optional .env file whose entries
// never override variables already present in the environment.
//
// Missing and invalid values are reported together.
func Load() (Config, error) {
	if envFile := lookup("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	}

	cfg := Defaults()
	invalid := make([]string, 0, 2)

	if path := lookup("CONFIG_FILE"); path != "" {
		var file fileConfig
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return Config{}, fmt.Errorf("config: load config file %s: %w", path, err)
		}
		invalid = append(invalid, cfg.applyFile(file)...)
	}

	invalid = append(invalid, cfg.applyEnv()...)
	missing := cfg.missing()

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: required values are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func (c *Config) applyFile(file fileConfig) []string {
	var invalid []string

	if file.HTTP.Port != 0 {
		if file.HTTP.Port < 0 {
			invalid = append(invalid, "http.port")
		} else {
			c.HTTPPort = file.HTTP.Port
		}
	}
	if file.Log.Level != "" {
		if err := c.LogLevel.UnmarshalText([]byte(file.Log.Level)); err != nil {
			invalid = append(invalid, "log.level")
		}
	}
	setString(&c.StorageDriver, strings.ToLower(file.Storage.Driver))
	setString(&c.SQLiteDSN, file.Storage.SQLiteDSN)
	setString(&c.PostgresDSN, file.Storage.PostgresDSN)
	setString(&c.AuthMode, strings.ToLower(file.Auth.Mode))
	setString(&c.JWTSecret, file.Auth.JWTSecret)
	setString(&c.JWTIssuer, file.Auth.JWTIssuer)
	setString(&c.JWTPublicKeyFile, file.Auth.PublicKeyFile)
	if !setDuration(&c.TokenTTL, file.Auth.TokenTTL) {
		invalid = append(invalid, "auth.token_ttl")
	}
	setString(&c.LockBackend, strings.ToLower(file.Lock.Backend))
	if !setDuration(&c.LockTTL, file.Lock.TTL) {
		invalid = append(invalid, "lock.ttl")
	}
	setString(&c.RedisAddr, file.Redis.Addr)
	setString(&c.RedisPassword, file.Redis.Password)
	if file.Redis.DB != 0 {
		c.RedisDB = file.Redis.DB
	}
	if len(file.Kafka.Brokers) > 0 {
		c.KafkaBrokers = file.Kafka.Brokers
	}
	setString(&c.KafkaTopic, file.Kafka.Topic)

	return invalid
}

func (c *Config) applyEnv() []string {
	var invalid []string

	if value := lookup("HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 {
			invalid = append(invalid, envPrefix+"HTTP_PORT")
		} else {
			c.HTTPPort = port
		}
	}
	if value := lookup("LOG_LEVEL"); value != "" {
		if err := c.LogLevel.UnmarshalText([]byte(value)); err != nil {
			invalid = append(invalid, envPrefix+"LOG_LEVEL")
		}
	}

	setString(&c.StorageDriver, strings.ToLower(lookup("STORAGE_DRIVER")))
	setString(&c.SQLiteDSN, lookup("SQLITE_DSN"))
	setString(&c.PostgresDSN, lookup("POSTGRES_DSN"))
	setString(&c.AuthMode, strings.ToLower(lookup("AUTH_MODE")))
	setString(&c.JWTSecret, lookup("JWT_SECRET"))
	setString(&c.JWTIssuer, lookup("JWT_ISSUER"))
	setString(&c.JWTPublicKeyFile, lookup("JWT_PUBLIC_KEY_FILE"))
	if !setDuration(&c.TokenTTL, lookup("TOKEN_TTL")) {
		invalid = append(invalid, envPrefix+"TOKEN_TTL")
	}

	setString(&c.LockBackend, strings.ToLower(lookup("LOCK_BACKEND")))
	if !setDuration(&c.LockTTL, lookup("LOCK_TTL")) {
		invalid = append(invalid, envPrefix+"LOCK_TTL")
	}
	setString(&c.RedisAddr, lookup("REDIS_ADDR"))
	setString(&c.RedisPassword, lookup("REDIS_PASSWORD"))
	if value := lookup("REDIS_DB"); value != "" {
		db, err := strconv.Atoi(value)
		if err != nil || db < 0 {
			invalid = append(invalid, envPrefix+"REDIS_DB")
		} else {
			c.RedisDB = db
		}
	}

	if value := lookup("KAFKA_BROKERS"); value != "" {
		c.KafkaBrokers = splitList(value)
	}
	setString(&c.KafkaTopic, lookup("KAFKA_TOPIC"))

	switch c.StorageDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		invalid = append(invalid, envPrefix+"STORAGE_DRIVER")
	}
	switch c.AuthMode {
	case AuthLocal, AuthExternal:
	default:
		invalid = append(invalid, envPrefix+"AUTH_MODE")
	}
	switch c.LockBackend {
	case LockLocal, LockRedis:
	default:
		invalid = append(invalid, envPrefix+"LOCK_BACKEND")
	}

	return invalid
}

// missing lists the settings required by the selected drivers and modes.
func (c *Config) missing() []string {
	var missing []string
	if c.StorageDriver == DriverSQLite && c.SQLiteDSN == "" {
		missing = append(missing, envPrefix+"SQLITE_DSN")
	}
	if c.StorageDriver == DriverPostgres && c.PostgresDSN == "" {
		missing = append(missing, envPrefix+"POSTGRES_DSN")
	}
	if c.AuthMode == AuthLocal && c.JWTSecret == "" {
		missing = append(missing, envPrefix+"JWT_SECRET")
	}
	if c.AuthMode == AuthExternal && c.JWTPublicKeyFile == "" {
		missing = append(missing, envPrefix+"JWT_PUBLIC_KEY_FILE")
	}
	if c.LockBackend == LockRedis && c.RedisAddr == "" {
		missing = append(missing, envPrefix+"REDIS_ADDR")
	}
	return missing
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

// setDuration reports false when value is set but not a positive duration.
func setDuration(dst *time.Duration, value string) bool {
	if value = strings.TrimSpace(value); value == "" {
		return true
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return false
	}
	*dst = d
	return true
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
