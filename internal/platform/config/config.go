package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	DatabaseURL        string
	Port               string
	IsProduction       bool
	EnableDBCheck      bool
	StorageDriver      string
	MigrationsPath     string
	JWTSecret          string
	RateLimit          string
	CORSAllowedOrigins []string

	DefaultCurrency        string
	ChartCacheTTL          time.Duration
	RejectReReversal       bool
	MatchDateToleranceDays int
	MatchAmountTolerance   decimal.Decimal
	MatchAutoEnabled       bool
	MaxStatementBytes      int64
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", true)
	viper.SetDefault("STORAGE_DRIVER", StoragePostgres)
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("DEFAULT_CURRENCY", "USD")
	viper.SetDefault("CHART_CACHE_TTL", "5m")
	viper.SetDefault("LEDGER_REJECT_REREVERSAL", false)
	viper.SetDefault("MATCH_DATE_TOLERANCE_DAYS", 3)
	viper.SetDefault("MATCH_AMOUNT_TOLERANCE", "0.01")
	viper.SetDefault("MATCH_AUTO_ENABLED", true)
	viper.SetDefault("MAX_STATEMENT_BYTES", 10<<20)

	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:      viper.GetString("PGSQL_URL"),
		Port:             viper.GetString("PORT"),
		IsProduction:     viper.GetBool("IS_PRODUCTION"),
		EnableDBCheck:    viper.GetBool("ENABLE_DB_CHECK"),
		MigrationsPath:   viper.GetString("MIGRATIONS_PATH"),
		RateLimit:        viper.GetString("RATE_LIMIT"),
		DefaultCurrency:  strings.ToUpper(viper.GetString("DEFAULT_CURRENCY")),
		RejectReReversal: viper.GetBool("LEDGER_REJECT_REREVERSAL"),
		MatchAutoEnabled: viper.GetBool("MATCH_AUTO_ENABLED"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.StorageDriver = strings.ToLower(viper.GetString("STORAGE_DRIVER"))
	if cfg.StorageDriver != StoragePostgres && cfg.StorageDriver != StorageMemory {
		log.Printf("Warning: Invalid value for STORAGE_DRIVER ('%s'). Defaulting to %s.\n", cfg.StorageDriver, StoragePostgres)
		cfg.StorageDriver = StoragePostgres
	}
	if cfg.StorageDriver == StoragePostgres && cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret {
		cfg.JWTSecret = defaultJWTSecret // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	for _, origin := range strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if o := strings.TrimSpace(origin); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if len(cfg.DefaultCurrency) != 3 {
		log.Printf("Warning: Invalid value for DEFAULT_CURRENCY ('%s'). Defaulting to USD.\n", cfg.DefaultCurrency)
		cfg.DefaultCurrency = "USD"
	}

	ttlStr := viper.GetString("CHART_CACHE_TTL")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil || ttl <= 0 {
		ttl = 5 * time.Minute
		log.Printf("Warning: Invalid value for CHART_CACHE_TTL ('%s'). Defaulting to %s.\n", ttlStr, ttl)
	}
	cfg.ChartCacheTTL = ttl

	cfg.MatchDateToleranceDays = viper.GetInt("MATCH_DATE_TOLERANCE_DAYS")
	if cfg.MatchDateToleranceDays < 0 {
		log.Printf("Warning: Invalid value for MATCH_DATE_TOLERANCE_DAYS (%d). Defaulting to 3.\n", cfg.MatchDateToleranceDays)
		cfg.MatchDateToleranceDays = 3
	}

	tolStr := viper.GetString("MATCH_AMOUNT_TOLERANCE")
	tol, err := decimal.NewFromString(tolStr)
	if err != nil || tol.IsNegative() || tol.GreaterThan(decimal.NewFromInt(1)) {
		tol = decimal.NewFromFloat(0.01)
		log.Printf("Warning: Invalid value for MATCH_AMOUNT_TOLERANCE ('%s'). Defaulting to %s.\n", tolStr, tol)
	}
	cfg.MatchAmountTolerance = tol

	cfg.MaxStatementBytes = viper.GetInt64("MAX_STATEMENT_BYTES")
	if cfg.MaxStatementBytes <= 0 {
		cfg.MaxStatementBytes = 10 << 20
		log.Printf("Warning: Invalid value for MAX_STATEMENT_BYTES. Defaulting to %d.\n", cfg.MaxStatementBytes)
	}

	return cfg, nil
}
