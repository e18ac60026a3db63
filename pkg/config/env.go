package config

const (
	EnvPrefix = "TIX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	NotifyTransportNone  = "none"
	NotifyTransportKafka = "kafka"
	NotifyTransportAMQP  = "amqp"
)

const (
	EnvAppEnv             = "TIX_APP_ENV"
	EnvPort               = "TIX_APP_PORT"
	EnvLogLevel           = "TIX_LOG_LEVEL"
	EnvDBDSN              = "TIX_DB_DSN"
	EnvDBHost             = "TIX_DB_HOST"
	EnvDBUser             = "TIX_DB_USER"
	EnvDBName             = "TIX_DB_NAME"
	EnvRedisURL           = "TIX_REDIS_URL"
	EnvJWTSecret          = "TIX_JWT_SECRET"
	EnvJWTIssuer          = "TIX_JWT_ISSUER"
	EnvPaymentWindow      = "TIX_BOOKING_PAYMENT_WINDOW"
	EnvConfirmTimeout     = "TIX_BOOKING_CONFIRMATION_TIMEOUT"
	EnvCronInterval       = "TIX_CRON_INTERVAL"
	EnvNotifyTransport    = "TIX_NOTIFY_TRANSPORT"
	EnvNotifyKafkaBrokers = "TIX_NOTIFY_KAFKA_BROKERS"
	EnvNotifyAMQPURL      = "TIX_NOTIFY_AMQP_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
