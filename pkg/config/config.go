package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Booking       BookingConfig
	Cron          CronConfig
	RateLimit     RateLimitConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Notifications NotificationsConfig
	Outbox        OutboxConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Notifications.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TIX_APP_ENV" required:"true"`
	Port         string `envconfig:"TIX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TIX_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TIX_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TIX_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"TIX_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"TIX_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics from background workers. Empty disables it.
	MetricsAddr string `envconfig:"TIX_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"TIX_DB_DSN"`
	Driver string `envconfig:"TIX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TIX_DB_HOST"`
	LegacyPort     int    `envconfig:"TIX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIX_DB_USER"`
	LegacyPassword string `envconfig:"TIX_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIX_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TIX_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TIX_REDIS_URL"`
	Address      string        `envconfig:"TIX_REDIS_ADDR"`
	Password     string        `envconfig:"TIX_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TIX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TIX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TIX_JWT_EXPIRATION_MINUTES" default:"60"`
}

// BookingConfig holds the policy windows of the booking lifecycle.
type BookingConfig struct {
	PaymentWindow       time.Duration `envconfig:"TIX_BOOKING_PAYMENT_WINDOW" default:"2h"`
	ConfirmationTimeout time.Duration `envconfig:"TIX_BOOKING_CONFIRMATION_TIMEOUT" default:"72h"`
	SweepBatchSize      int           `envconfig:"TIX_BOOKING_SWEEP_BATCH_SIZE" default:"200"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TIX_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"TIX_CRON_LOCK_TTL" default:"5m"`
	// NotificationRetentionDays bounds how long read inbox rows are kept.
	NotificationRetentionDays int `envconfig:"TIX_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

type RateLimitConfig struct {
	BookingWindow time.Duration `envconfig:"TIX_RATE_LIMIT_BOOKING_WINDOW" default:"1m"`
	BookingLimit  int           `envconfig:"TIX_RATE_LIMIT_BOOKING_LIMIT" default:"10"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"TIX_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TIX_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"TIX_PUBSUB_DOMAIN_TOPIC" default:"tix-domain-events"`
}

// NotificationsConfig selects the broker used by the booking notification hook.
type NotificationsConfig struct {
	Transport    string        `envconfig:"TIX_NOTIFY_TRANSPORT" default:"none"`
	KafkaBrokers []string      `envconfig:"TIX_NOTIFY_KAFKA_BROKERS"`
	KafkaTopic   string        `envconfig:"TIX_NOTIFY_KAFKA_TOPIC" default:"booking-notifications"`
	AMQPURL      string        `envconfig:"TIX_NOTIFY_AMQP_URL"`
	AMQPQueue    string        `envconfig:"TIX_NOTIFY_AMQP_QUEUE" default:"booking.notifications"`
	Timeout      time.Duration `envconfig:"TIX_NOTIFY_TIMEOUT" default:"5s"`
}

func (n NotificationsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(n.Transport)) {
	case NotifyTransportNone, "":
		return nil
	case NotifyTransportKafka:
		if len(n.KafkaBrokers) == 0 {
			return fmt.Errorf("%s is required for kafka notifications", EnvNotifyKafkaBrokers)
		}
		return nil
	case NotifyTransportAMQP:
		if strings.TrimSpace(n.AMQPURL) == "" {
			return fmt.Errorf("%s is required for amqp notifications", EnvNotifyAMQPURL)
		}
		return nil
	default:
		return fmt.Errorf("unsupported notification transport %q", n.Transport)
	}
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TIX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TIX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TIX_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"TIX_OUTBOX_RETENTION_DAYS" default:"7"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TIX_AUTO_MIGRATE" default:"false"`
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
