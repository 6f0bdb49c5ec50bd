package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Commission   CommissionConfig
	Cron         CronConfig
	Idempotency  IdempotencyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"COMMISSION_APP_ENV" required:"true"`
	Port         string   `envconfig:"COMMISSION_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"COMMISSION_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"COMMISSION_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"COMMISSION_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COMMISSION_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COMMISSION_DB_DSN"`
	Driver string `envconfig:"COMMISSION_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMMISSION_DB_HOST"`
	LegacyPort     int    `envconfig:"COMMISSION_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMMISSION_DB_USER"`
	LegacyPassword string `envconfig:"COMMISSION_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMMISSION_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMMISSION_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMMISSION_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMMISSION_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMMISSION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMMISSION_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite dialector should be used.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"COMMISSION_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COMMISSION_REDIS_ADDR"`
	Password     string        `envconfig:"COMMISSION_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMMISSION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMMISSION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMMISSION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMMISSION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMMISSION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMMISSION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COMMISSION_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COMMISSION_AUTO_MIGRATE" default:"false"`
}

// CommissionConfig tunes the payment engine itself.
type CommissionConfig struct {
	LockBackend    string        `envconfig:"COMMISSION_LOCK_BACKEND" default:"local"`
	LockTTL        time.Duration `envconfig:"COMMISSION_LOCK_TTL" default:"30s"`
	LockWait       time.Duration `envconfig:"COMMISSION_LOCK_WAIT" default:"5s"`
	ExportTimeout  time.Duration `envconfig:"COMMISSION_EXPORT_TIMEOUT" default:"30s"`
	DefaultTaxRate string        `envconfig:"COMMISSION_DEFAULT_TAX_RATE" default:"0.15"`
	SnowflakeNode  int64         `envconfig:"COMMISSION_SNOWFLAKE_NODE" default:"1"`
}

func (c CommissionConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LockBackend)) {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvLockBackend, LockBackendLocal, LockBackendRedis, c.LockBackend)
	}
	if c.LockTTL <= 0 || c.LockWait <= 0 {
		return fmt.Errorf("lock ttl and wait must be positive")
	}
	return nil
}

// UsesRedisLock reports whether organizer locks are distributed through redis.
func (c CommissionConfig) UsesRedisLock() bool {
	return strings.EqualFold(strings.TrimSpace(c.LockBackend), LockBackendRedis)
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COMMISSION_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"COMMISSION_CRON_LOCK_TTL" default:"10m"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"COMMISSION_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COMMISSION_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COMMISSION_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COMMISSION_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	CommissionTopic        string `envconfig:"COMMISSION_PUBSUB_COMMISSION_TOPIC" default:"commission-events"`
	CommissionSubscription string `envconfig:"COMMISSION_PUBSUB_COMMISSION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COMMISSION_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COMMISSION_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COMMISSION_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
