package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Events    EventsConfig    `mapstructure:",squash"`
	Lock      LockConfig      `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string `mapstructure:"SERVER_PORT"`
	Host         string `mapstructure:"SERVER_HOST"`
	Env          string `mapstructure:"ENV"`
	ReadTimeout  string `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout string `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"DATABASE_DRIVER"`
	URL             string `mapstructure:"DATABASE_URL"`
	Host            string `mapstructure:"DATABASE_HOST"`
	Port            string `mapstructure:"DATABASE_PORT"`
	Name            string `mapstructure:"DATABASE_NAME"`
	User            string `mapstructure:"DATABASE_USER"`
	Password        string `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool   `mapstructure:"AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL      string `mapstructure:"REDIS_URL"`
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	Cron       string `mapstructure:"SCHEDULER_CRON"`
	Timezone   string `mapstructure:"SCHEDULER_TIMEZONE"`
	BatchSize  int    `mapstructure:"SCHEDULER_BATCH_SIZE"`
	Workers    int    `mapstructure:"SCHEDULER_WORKERS"`
	RunTimeout string `mapstructure:"SCHEDULER_RUN_TIMEOUT"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// BusinessConfig carries the lending policy. Amounts and rates are decimal
// strings; rates are annual fractions (0.24 is 24%).
type BusinessConfig struct {
	MinLoanAmount            string `mapstructure:"MIN_LOAN_AMOUNT"`
	MaxLoanAmount            string `mapstructure:"MAX_LOAN_AMOUNT"`
	MinTenorMonths           int    `mapstructure:"MIN_TENOR_MONTHS"`
	MaxTenorMonths           int    `mapstructure:"MAX_TENOR_MONTHS"`
	MinInterestRate          string `mapstructure:"MIN_INTEREST_RATE"`
	MaxInterestRate          string `mapstructure:"MAX_INTEREST_RATE"`
	MaxActiveLoansPerStation int    `mapstructure:"MAX_ACTIVE_LOANS_PER_STATION"`
	DefaultPenaltyRate       string `mapstructure:"DEFAULT_PENALTY_RATE"`
	DefaultGracePeriodDays   int    `mapstructure:"DEFAULT_GRACE_PERIOD_DAYS"`
	OverpaymentPolicy        string `mapstructure:"OVERPAYMENT_POLICY"`
}

type EventsConfig struct {
	Sink         string `mapstructure:"EVENT_SINK"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
	RedisChannel string `mapstructure:"REDIS_EVENT_CHANNEL"`
}

type LockConfig struct {
	Backend string `mapstructure:"LOCK_BACKEND"`
	TTL     string `mapstructure:"LOCK_TTL"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	OverpaymentReject = "reject"
	OverpaymentCredit = "credit"

	SinkLog   = "log"
	SinkRedis = "redis"
	SinkKafka = "kafka"

	LockLocal = "local"
	LockRedis = "redis"
)

var defaults = map[string]any{
	"SERVER_PORT":                  "8080",
	"SERVER_HOST":                  "0.0.0.0",
	"ENV":                          "development",
	"SERVER_READ_TIMEOUT":          "15s",
	"SERVER_WRITE_TIMEOUT":         "15s",
	"DATABASE_DRIVER":              DriverPostgres,
	"DATABASE_URL":                 "",
	"DATABASE_HOST":                "localhost",
	"DATABASE_PORT":                "5432",
	"DATABASE_NAME":                "dealer_loans",
	"DATABASE_USER":                "postgres",
	"DATABASE_PASSWORD":            "",
	"DATABASE_SSLMODE":             "disable",
	"DATABASE_MAX_OPEN_CONNS":      25,
	"DATABASE_MAX_IDLE_CONNS":      5,
	"DATABASE_CONN_MAX_LIFETIME":   "5m",
	"AUTO_MIGRATE":                 false,
	"REDIS_URL":                    "",
	"REDIS_HOST":                   "",
	"REDIS_PORT":                   "6379",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"SCHEDULER_CRON":               "0 1 * * *",
	"SCHEDULER_TIMEZONE":           "Asia/Jakarta",
	"SCHEDULER_BATCH_SIZE":         200,
	"SCHEDULER_WORKERS":            8,
	"SCHEDULER_RUN_TIMEOUT":        "30m",
	"LOG_LEVEL":                    "info",
	"LOG_FORMAT":                   "json",
	"MIN_LOAN_AMOUNT":              "1000",
	"MAX_LOAN_AMOUNT":              "10000000",
	"MIN_TENOR_MONTHS":             3,
	"MAX_TENOR_MONTHS":             60,
	"MIN_INTEREST_RATE":            "0",
	"MAX_INTEREST_RATE":            "0.5",
	"MAX_ACTIVE_LOANS_PER_STATION": 3,
	"DEFAULT_PENALTY_RATE":         "0.02",
	"DEFAULT_GRACE_PERIOD_DAYS":    7,
	"OVERPAYMENT_POLICY":           OverpaymentReject,
	"EVENT_SINK":                   SinkLog,
	"KAFKA_BROKERS":                "localhost:9092",
	"KAFKA_TOPIC":                  "dealer-loan-events",
	"REDIS_EVENT_CHANNEL":          "dealer-loan-events",
	"LOCK_BACKEND":                 LockLocal,
	"LOCK_TTL":                     "30s",
	"HEALTH_CHECK_TIMEOUT":         "5s",
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// .env values never override variables already set in the environment
	for _, path := range []string{".env", "deployments/.env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("unable to read %s: %w", path, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %s or %s, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Database.URL == "" && c.Database.Name == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_NAME is required")
	}

	for key, value := range map[string]string{
		"MIN_LOAN_AMOUNT":      c.Business.MinLoanAmount,
		"MAX_LOAN_AMOUNT":      c.Business.MaxLoanAmount,
		"MIN_INTEREST_RATE":    c.Business.MinInterestRate,
		"MAX_INTEREST_RATE":    c.Business.MaxInterestRate,
		"DEFAULT_PENALTY_RATE": c.Business.DefaultPenaltyRate,
	} {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid decimal: %w", key, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s cannot be negative", key)
		}
	}
	if c.GetMinLoanAmount().GreaterThan(c.GetMaxLoanAmount()) {
		return fmt.Errorf("MIN_LOAN_AMOUNT must not exceed MAX_LOAN_AMOUNT")
	}
	if c.GetMinInterestRate().GreaterThan(c.GetMaxInterestRate()) {
		return fmt.Errorf("MIN_INTEREST_RATE must not exceed MAX_INTEREST_RATE")
	}
	if c.Business.MinTenorMonths <= 0 || c.Business.MinTenorMonths > c.Business.MaxTenorMonths {
		return fmt.Errorf("tenor bounds must satisfy 0 < MIN_TENOR_MONTHS <= MAX_TENOR_MONTHS")
	}
	if c.Business.MaxActiveLoansPerStation <= 0 {
		return fmt.Errorf("MAX_ACTIVE_LOANS_PER_STATION must be greater than 0")
	}
	if c.Business.DefaultGracePeriodDays < 0 {
		return fmt.Errorf("DEFAULT_GRACE_PERIOD_DAYS cannot be negative")
	}
	switch c.Business.OverpaymentPolicy {
	case OverpaymentReject, OverpaymentCredit:
	default:
		return fmt.Errorf("OVERPAYMENT_POLICY must be %s or %s", OverpaymentReject, OverpaymentCredit)
	}

	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("SCHEDULER_BATCH_SIZE must be greater than 0")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("SCHEDULER_WORKERS must be greater than 0")
	}
	if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
		return fmt.Errorf("SCHEDULER_CRON must be a valid cron spec: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	switch c.Events.Sink {
	case SinkLog, SinkRedis, SinkKafka:
	default:
		return fmt.Errorf("EVENT_SINK must be one of %s, %s, %s", SinkLog, SinkRedis, SinkKafka)
	}
	if c.Events.Sink == SinkKafka && (len(c.GetKafkaBrokers()) == 0 || c.Events.KafkaTopic == "") {
		return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka event sink")
	}

	switch c.Lock.Backend {
	case LockLocal, LockRedis:
	default:
		return fmt.Errorf("LOCK_BACKEND must be %s or %s", LockLocal, LockRedis)
	}
	if (c.Lock.Backend == LockRedis || c.Events.Sink == SinkRedis) && c.RedisAddr() == "" && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL or REDIS_HOST is required for the redis lock or event sink")
	}

	for key, value := range map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"SCHEDULER_RUN_TIMEOUT":      c.Scheduler.RunTimeout,
		"LOCK_TTL":                   c.Lock.TTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// DSN returns the driver-specific connection string
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	if c.Database.Driver == DriverSQLite {
		return c.Database.Name
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     c.Database.Host + ":" + c.Database.Port,
		Path:     c.Database.Name,
		RawQuery: "sslmode=" + c.Database.SSLMode,
	}
	return u.String()
}

// RedisAddr returns host:port, or "" when Redis is not configured
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return c.Redis.Host + ":" + c.Redis.Port
}

// RedisEnabled reports whether any Redis connection settings are present
func (c *Config) RedisEnabled() bool {
	return c.Redis.URL != "" || c.Redis.Host != ""
}

func (c *Config) GetMinLoanAmount() decimal.Decimal {
	return mustDecimal(c.Business.MinLoanAmount)
}

func (c *Config) GetMaxLoanAmount() decimal.Decimal {
	return mustDecimal(c.Business.MaxLoanAmount)
}

func (c *Config) GetMinInterestRate() decimal.Decimal {
	return mustDecimal(c.Business.MinInterestRate)
}

func (c *Config) GetMaxInterestRate() decimal.Decimal {
	return mustDecimal(c.Business.MaxInterestRate)
}

func (c *Config) GetDefaultPenaltyRate() decimal.Decimal {
	return mustDecimal(c.Business.DefaultPenaltyRate)
}

// CreditOverpayments reports whether amounts beyond payoff are recorded instead of rejected
func (c *Config) CreditOverpayments() bool {
	return c.Business.OverpaymentPolicy == OverpaymentCredit
}

// GetKafkaBrokers splits the comma-separated broker list
func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.Events.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// GetSchedulerLocation returns the timezone the cron spec is evaluated in
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GetReadTimeout() time.Duration {
	return mustDuration(c.Server.ReadTimeout)
}

func (c *Config) GetWriteTimeout() time.Duration {
	return mustDuration(c.Server.WriteTimeout)
}

func (c *Config) GetConnMaxLifetime() time.Duration {
	return mustDuration(c.Database.ConnMaxLifetime)
}

func (c *Config) GetSchedulerRunTimeout() time.Duration {
	return mustDuration(c.Scheduler.RunTimeout)
}

func (c *Config) GetLockTTL() time.Duration {
	return mustDuration(c.Lock.TTL)
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	return mustDuration(c.Health.Timeout)
}

// values are checked by Validate, so parse failures fall back to zero
func mustDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
