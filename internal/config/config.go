package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string

	TickEvery      time.Duration
	LockStaleAfter time.Duration

	BotBudgetCents    int64
	PayrollBatchSize  int
	LoanBatchSize     int
	LoanRounds        int
	NetWorthBatchSize int
	NetWorthRounds    int

	MarketVolatility string
	StartupSeed      bool
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadFromEnv() (Config, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("QUICKBUCK_ADDR", ":8080")
	}

	cfg := Config{
		Addr:              addr,
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TickEvery:         envDurationDefault("QUICKBUCK_TICK_EVERY", 5*time.Minute),
		LockStaleAfter:    envDurationDefault("QUICKBUCK_LOCK_STALE_AFTER", 10*time.Minute),
		BotBudgetCents:    envInt64Default("QUICKBUCK_BOT_BUDGET_CENTS", 500_000),
		PayrollBatchSize:  envIntDefault("QUICKBUCK_PAYROLL_BATCH", 10),
		LoanBatchSize:     envIntDefault("QUICKBUCK_LOAN_BATCH", 40),
		LoanRounds:        envIntDefault("QUICKBUCK_LOAN_ROUNDS", 3),
		NetWorthBatchSize: envIntDefault("QUICKBUCK_NETWORTH_BATCH", 6),
		NetWorthRounds:    envIntDefault("QUICKBUCK_NETWORTH_ROUNDS", 3),
		MarketVolatility:  envVolatilityDefault(),
		StartupSeed:       envBoolDefault("QUICKBUCK_STARTUP_SEED", true),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("QBK_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envVolatilityDefault() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("VOLATILITY")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("QUICKBUCK_MARKET_VOLATILITY")))
	}
	switch v {
	case "calm", "normal", "wild":
		return v
	default:
		return "normal"
	}
}
