package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string
	MySQLDSN   string
	RedisAddr  string
	RedisDB    int
	RedisPass  string
	JWTSecret  string

	GatewayKeyID     string
	GatewayKeySecret string
	GatewayTimeout   time.Duration

	InvoiceNumberPrefix string
	// GenerateAppointmentOn decides when appointment and consultation
	// payments get their invoice: "received" or "verified".
	GenerateAppointmentOn string
	SellerName            string
	SellerAddress         string

	DailyRollupCron string
	SwaggerHost     string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		MySQLDSN:   getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/medipay?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:    getEnvInt("REDIS_DB", 0),
		RedisPass:  os.Getenv("REDIS_PASSWORD"),
		JWTSecret:  getEnv("JWT_SECRET", "change-me"),

		GatewayKeyID:     os.Getenv("GATEWAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		GatewayTimeout:   time.Duration(getEnvInt("GATEWAY_TIMEOUT_MS", 15000)) * time.Millisecond,

		InvoiceNumberPrefix:   getEnv("INVOICE_NUMBER_PREFIX", "INV"),
		GenerateAppointmentOn: getEnv("INVOICE_GENERATE_ON_APPOINTMENT", "verified"),
		SellerName:            getEnv("INVOICE_SELLER_NAME", "City Care Hospital"),
		SellerAddress:         getEnv("INVOICE_SELLER_ADDRESS", ""),

		DailyRollupCron: getEnv("DAILY_ROLLUP_CRON", "5 0 * * *"),
		SwaggerHost:     os.Getenv("SWAGGER_HOST"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
