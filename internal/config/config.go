package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Mode selects between simulated and real order placement.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// Config holds every tunable for one run of the trading engine.
type Config struct {
	// Server
	Port    int
	DevMode bool

	// Database
	DatabasePath string

	// Broker gateway
	Mode                Mode
	BrokerGatewayURL    string
	TradernetAPIKey     string
	TradernetAPISecret  string
	RateLimitPerSecond  float64
	RateLimitBurst      int
	CircuitFailureLimit int
	CircuitCooldownSec  int

	// Paper mode
	PaperStartingCashPaise int64
	PaperSlippageBps       int
	PaperResetOnStart      bool

	// Risk
	TradingEnabled       bool
	MaxPositionsPerIndex int
	RiskPctPerTrade      float64
	MinRiskRewardRatio   float64
	MaxSectorExposurePct float64
	MaxPositionPct       float64

	// Signal aggregation
	MinConfidence         float64
	MinAgreeingStrategies int

	// Session
	TickIntervalSeconds          int
	PersistIntervalSeconds       int
	ExpiryFlattenBeforeCloseMins int

	// State
	StateFilePath string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables, loading a .env
// file first if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("GO_PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		DatabasePath: getEnv("DATABASE_PATH", "./data/trading.db"),

		Mode:                Mode(getEnv("TRADING_MODE", string(ModePaper))),
		BrokerGatewayURL:    getEnv("BROKER_GATEWAY_URL", "http://localhost:8000"),
		TradernetAPIKey:     getEnv("TRADERNET_API_KEY", ""),
		TradernetAPISecret:  getEnv("TRADERNET_API_SECRET", ""),
		RateLimitPerSecond:  getEnvAsFloat("RATE_LIMIT_PER_SECOND", 3),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 5),
		CircuitFailureLimit: getEnvAsInt("CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitCooldownSec:  getEnvAsInt("CIRCUIT_COOLDOWN_SECONDS", 30),

		PaperStartingCashPaise: int64(getEnvAsInt("PAPER_STARTING_CASH_PAISE", 1000000*100)),
		PaperSlippageBps:       getEnvAsInt("PAPER_SLIPPAGE_BPS", 5),
		PaperResetOnStart:      getEnvAsBool("PAPER_RESET_ON_START", false),

		TradingEnabled:       getEnvAsBool("TRADING_ENABLED", true),
		MaxPositionsPerIndex: getEnvAsInt("MAX_POSITIONS_PER_INDEX", 3),
		RiskPctPerTrade:      getEnvAsFloat("RISK_PCT_PER_TRADE", 0.01),
		MinRiskRewardRatio:   getEnvAsFloat("MIN_RISK_REWARD_RATIO", 1.5),
		MaxSectorExposurePct: getEnvAsFloat("MAX_SECTOR_EXPOSURE_PCT", 0.30),
		MaxPositionPct:       getEnvAsFloat("MAX_POSITION_PCT", 0.20),

		MinConfidence:         getEnvAsFloat("MIN_CONFIDENCE", 0.7),
		MinAgreeingStrategies: getEnvAsInt("MIN_AGREEING_STRATEGIES", 2),

		TickIntervalSeconds:          getEnvAsInt("TICK_INTERVAL_SECONDS", 30),
		PersistIntervalSeconds:       getEnvAsInt("PERSIST_INTERVAL_SECONDS", 30),
		ExpiryFlattenBeforeCloseMins: getEnvAsInt("EXPIRY_FLATTEN_BEFORE_CLOSE_MINUTES", 15),

		StateFilePath: getEnv("STATE_FILE_PATH", "./data/state.json"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration is present and internally consistent.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.StateFilePath == "" {
		return fmt.Errorf("STATE_FILE_PATH is required")
	}
	if c.Mode != ModePaper && c.Mode != ModeLive {
		return fmt.Errorf("TRADING_MODE must be %q or %q, got %q", ModePaper, ModeLive, c.Mode)
	}
	if c.Mode == ModeLive && (c.TradernetAPIKey == "" || c.TradernetAPISecret == "") {
		return fmt.Errorf("broker API credentials are required in live mode")
	}
	if c.MinRiskRewardRatio <= 0 {
		return fmt.Errorf("MIN_RISK_REWARD_RATIO must be positive")
	}
	return nil
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
