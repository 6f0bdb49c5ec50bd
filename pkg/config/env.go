package config

const (
	EnvPrefix = "COMMISSION"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	DefaultSQLiteDSN = "file:commission.db?_foreign_keys=on"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

const (
	EnvAppEnv      = "COMMISSION_APP_ENV"
	EnvPort        = "COMMISSION_APP_PORT"
	EnvLogLevel    = "COMMISSION_LOG_LEVEL"
	EnvDBDSN       = "COMMISSION_DB_DSN"
	EnvDBDriver    = "COMMISSION_DB_DRIVER"
	EnvDBHost      = "COMMISSION_DB_HOST"
	EnvDBUser      = "COMMISSION_DB_USER"
	EnvDBName      = "COMMISSION_DB_NAME"
	EnvDBPassword  = "COMMISSION_DB_PASSWORD"
	EnvRedisURL    = "COMMISSION_REDIS_URL"
	EnvUseSQLite   = "COMMISSION_USE_SQLITE"
	EnvLockBackend = "COMMISSION_LOCK_BACKEND"
	EnvLockWait    = "COMMISSION_LOCK_WAIT"
	EnvGCPProject  = "COMMISSION_GCP_PROJECT_ID"
	EnvPubSubTopic = "COMMISSION_PUBSUB_COMMISSION_TOPIC"
	EnvCronEvery   = "COMMISSION_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
