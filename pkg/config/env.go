package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "FARMLABOR_APP_ENV"
	EnvPort     = "FARMLABOR_APP_PORT"
	EnvLogLevel = "FARMLABOR_LOG_LEVEL"

	EnvDBDSN      = "FARMLABOR_DB_DSN"
	EnvDBHost     = "FARMLABOR_DB_HOST"
	EnvDBUser     = "FARMLABOR_DB_USER"
	EnvDBName     = "FARMLABOR_DB_NAME"
	EnvDBPassword = "FARMLABOR_DB_PASSWORD"

	EnvRedisURL = "FARMLABOR_REDIS_URL"

	EnvJWTSecret  = "FARMLABOR_JWT_SECRET"
	EnvJWTIssuer  = "FARMLABOR_JWT_ISSUER"
	EnvJWTExpMins = "FARMLABOR_JWT_EXPIRATION_MINUTES"

	EnvOrderOfferWindow     = "FARMLABOR_ASSIGNMENT_ORDER_WINDOW"
	EnvTransportOfferWindow = "FARMLABOR_ASSIGNMENT_TRANSPORT_WINDOW"
	EnvTimeoutGrace         = "FARMLABOR_ASSIGNMENT_TIMEOUT_GRACE"

	EnvOutboxBatchSize   = "FARMLABOR_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts = "FARMLABOR_OUTBOX_MAX_ATTEMPTS"

	EnvNotifierBaseURL = "FARMLABOR_NOTIFIER_BASE_URL"

	EnvGCPProjectID          = "FARMLABOR_GCP_PROJECT_ID"
	EnvPubSubAssignmentTopic = "FARMLABOR_PUBSUB_ASSIGNMENT_TOPIC"
	EnvPubSubNotificationSub = "FARMLABOR_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvCronInterval = "FARMLABOR_CRON_INTERVAL"
	EnvCronLockTTL  = "FARMLABOR_CRON_LOCK_TTL"
)
