package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://postgres:@localhost:5432/dealer_loans?sslmode=disable", cfg.DSN())
	assert.True(t, cfg.GetMinLoanAmount().Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.GetMaxInterestRate().Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 3, cfg.Business.MaxActiveLoansPerStation)
	assert.Equal(t, 7, cfg.Business.DefaultGracePeriodDays)
	assert.False(t, cfg.CreditOverpayments())
	assert.Equal(t, 30*time.Second, cfg.GetLockTTL())
	assert.Equal(t, 5*time.Second, cfg.GetHealthTimeout())
	assert.False(t, cfg.RedisEnabled())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_NAME", "/tmp/loans.db")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("MAX_ACTIVE_LOANS_PER_STATION", "5")
	t.Setenv("OVERPAYMENT_POLICY", "credit")
	t.Setenv("EVENT_SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SCHEDULER_WORKERS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/loans.db", cfg.DSN())
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 5, cfg.Business.MaxActiveLoansPerStation)
	assert.True(t, cfg.CreditOverpayments())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.GetKafkaBrokers())
	assert.Equal(t, 2, cfg.Scheduler.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown driver", key: "DATABASE_DRIVER", value: "mysql"},
		{name: "bad amount", key: "MIN_LOAN_AMOUNT", value: "lots"},
		{name: "min above max", key: "MIN_LOAN_AMOUNT", value: "20000000"},
		{name: "bad overpayment policy", key: "OVERPAYMENT_POLICY", value: "refund"},
		{name: "bad cron", key: "SCHEDULER_CRON", value: "every day"},
		{name: "zero workers", key: "SCHEDULER_WORKERS", value: "0"},
		{name: "redis lock without redis", key: "LOCK_BACKEND", value: "redis"},
		{name: "bad duration", key: "LOCK_TTL", value: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestRedisAddr(t *testing.T) {
	cfg := &Config{Redis: RedisConfig{Host: "cache", Port: "6380"}}
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
	assert.True(t, cfg.RedisEnabled())
}
