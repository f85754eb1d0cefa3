package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/simaogato/dealflow-backend/internal/usecase/rebalancer"
)

// Config holds application configuration
type Config struct {
	Port         int
	DBConnStr    string
	PriceFeedURL string // optional; empty means requests must carry a price
	LogLevel     string
	LogPretty    bool

	// Rebalance policy knobs
	SellTolerance     decimal.Decimal
	BuyBackReference  string
	BuyBackFixedPrice decimal.Decimal
	BuyBackMode       string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	sellTolerance, err := getEnvAsDecimal("SELL_TOLERANCE", decimal.NewFromFloat(0.05))
	if err != nil {
		return nil, err
	}
	fixedPrice, err := getEnvAsDecimal("BUYBACK_FIXED_PRICE", decimal.Zero)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:              getEnvAsInt("PORT", 8080),
		DBConnStr:         dbConnStr(),
		PriceFeedURL:      getEnv("PRICE_FEED_URL", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogPretty:         getEnvAsBool("LOG_PRETTY", false),
		SellTolerance:     sellTolerance,
		BuyBackReference:  getEnv("BUYBACK_REFERENCE", string(rebalancer.ReferenceInitPrice)),
		BuyBackFixedPrice: fixedPrice,
		BuyBackMode:       getEnv("BUYBACK_MODE", string(rebalancer.BuyBackFull)),
	}

	// Policy knobs are validated up front so a bad deployment fails at startup
	if _, err := cfg.RebalancePolicy(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RebalancePolicy builds the engine policy from the configured knobs
func (c *Config) RebalancePolicy() (rebalancer.Policy, error) {
	policy := rebalancer.Policy{
		SellTolerance:       c.SellTolerance,
		BuyBackReference:    rebalancer.BuyBackReference(c.BuyBackReference),
		FixedReferencePrice: c.BuyBackFixedPrice,
		BuyBackMode:         rebalancer.BuyBackMode(c.BuyBackMode),
	}

	if err := policy.Validate(); err != nil {
		return rebalancer.Policy{}, fmt.Errorf("invalid rebalance policy: %w", err)
	}

	return policy, nil
}

// dbConnStr returns DB_CONN_STR when set, otherwise builds the connection
// string from individual vars (Docker friendly)
func dbConnStr() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}

	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "dealflow")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal: %w", key, err)
	}
	return parsed, nil
}
