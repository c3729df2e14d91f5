package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TILLPOINT"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "TILLPOINT_APP_ENV"
	EnvDBDSN  = "TILLPOINT_DB_DSN"
	EnvDBHost = "TILLPOINT_DB_HOST"
	EnvDBUser = "TILLPOINT_DB_USER"
	EnvDBName = "TILLPOINT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Sync         SyncConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Feed         FeedPublisherConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TILLPOINT_APP_ENV" required:"true"`
	Port         string `envconfig:"TILLPOINT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TILLPOINT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TILLPOINT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TILLPOINT_DB_DSN"`
	Driver string `envconfig:"TILLPOINT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TILLPOINT_DB_HOST"`
	LegacyPort     int    `envconfig:"TILLPOINT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TILLPOINT_DB_USER"`
	LegacyPassword string `envconfig:"TILLPOINT_DB_PASSWORD"`
	LegacyName     string `envconfig:"TILLPOINT_DB_NAME"`
	LegacySSLMode  string `envconfig:"TILLPOINT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TILLPOINT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TILLPOINT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TILLPOINT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TILLPOINT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TILLPOINT_REDIS_URL" required:"true"`
	DB           int           `envconfig:"TILLPOINT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TILLPOINT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TILLPOINT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TILLPOINT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TILLPOINT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TILLPOINT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TILLPOINT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TILLPOINT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TILLPOINT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TILLPOINT_AUTO_MIGRATE" default:"false"`
}

// SyncConfig tunes the push/pull pipeline.
type SyncConfig struct {
	MaxBatchSize       int           `envconfig:"TILLPOINT_SYNC_MAX_BATCH_SIZE" default:"100"`
	PushResultCacheTTL time.Duration `envconfig:"TILLPOINT_SYNC_PUSH_RESULT_TTL" default:"72h"`
	StatusCacheTTL     time.Duration `envconfig:"TILLPOINT_SYNC_STATUS_CACHE_TTL" default:"30s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TILLPOINT_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"TILLPOINT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FeedTopic        string `envconfig:"TILLPOINT_PUBSUB_FEED_TOPIC" default:"tp-sync-feed"`
	FeedSubscription string `envconfig:"TILLPOINT_PUBSUB_FEED_SUBSCRIPTION"`
}

// FeedPublisherConfig tunes the sync-log relay worker.
type FeedPublisherConfig struct {
	BatchSize      int `envconfig:"TILLPOINT_FEED_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TILLPOINT_FEED_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TILLPOINT_FEED_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
