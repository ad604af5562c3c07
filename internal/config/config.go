package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	API         APIConfig
	Gateway     GatewayConfig
	Idempotency IdempotencyConfig
	Kafka       KafkaConfig
	Telegram    TelegramConfig
	Cron        CronConfig
}

type ServerConfig struct {
	Port       int
	Env        string // "development", "production"
	CORSOrigin string
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type APIConfig struct {
	Key string
}

// GatewayConfig carries the Razorpay credentials. The secrets never appear in
// logs or error messages.
type GatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

type IdempotencyConfig struct {
	PaymentTTL time.Duration
	DedupTTL   time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type TelegramConfig struct {
	Token       string
	AdminChatID int64
}

func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.AdminChatID != 0
}

type CronConfig struct {
	MarkerPurge       string
	ReservationExpiry string
}

// MissingSettingError reports a required setting that is unset.
type MissingSettingError struct {
	Name string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("required setting %s is not set", e.Name)
}

// Validate fails on the first missing gateway credential.
func (g GatewayConfig) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"RAZORPAY_KEY_ID", g.KeyID},
		{"RAZORPAY_KEY_SECRET", g.KeySecret},
		{"RAZORPAY_WEBHOOK_SECRET", g.WebhookSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &MissingSettingError{Name: r.name}
		}
	}
	return nil
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("CORS_ORIGIN", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_CHARSET", "utf8mb4")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("RAZORPAY_TIMEOUT", "30s")
	v.SetDefault("IDEMPOTENCY_PAYMENT_TTL", "24h")
	v.SetDefault("WEBHOOK_DEDUP_TTL", "60m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "paysync.payments")
	v.SetDefault("TELEGRAM_ADMIN_CHAT_ID", 0)
	v.SetDefault("CRON_MARKER_PURGE", "0 */15 * * * *")
	v.SetDefault("CRON_RESERVATION_EXPIRY", "0 * * * * *")

	timeout, err := duration(v, "RAZORPAY_TIMEOUT")
	if err != nil {
		return nil, err
	}
	paymentTTL, err := duration(v, "IDEMPOTENCY_PAYMENT_TTL")
	if err != nil {
		return nil, err
	}
	dedupTTL, err := duration(v, "WEBHOOK_DEDUP_TTL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:       v.GetInt("APP_PORT"),
			Env:        v.GetString("APP_ENV"),
			CORSOrigin: v.GetString("CORS_ORIGIN"),
		},
		Database: DatabaseConfig{
			Host:    v.GetString("DB_HOST"),
			Port:    v.GetString("DB_PORT"),
			Name:    v.GetString("DB_NAME"),
			User:    v.GetString("DB_USER"),
			Pass:    v.GetString("DB_PASS"),
			Charset: v.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("REDIS_ADDR"),
			Pass: v.GetString("REDIS_PASS"),
			DB:   v.GetInt("REDIS_DB"),
		},
		API: APIConfig{
			Key: v.GetString("API_KEY"),
		},
		Gateway: GatewayConfig{
			KeyID:         v.GetString("RAZORPAY_KEY_ID"),
			KeySecret:     v.GetString("RAZORPAY_KEY_SECRET"),
			WebhookSecret: v.GetString("RAZORPAY_WEBHOOK_SECRET"),
			BaseURL:       v.GetString("RAZORPAY_BASE_URL"),
			Timeout:       timeout,
		},
		Idempotency: IdempotencyConfig{
			PaymentTTL: paymentTTL,
			DedupTTL:   dedupTTL,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Telegram: TelegramConfig{
			Token:       v.GetString("TELEGRAM_BOT_TOKEN"),
			AdminChatID: v.GetInt64("TELEGRAM_ADMIN_CHAT_ID"),
		},
		Cron: CronConfig{
			MarkerPurge:       v.GetString("CRON_MARKER_PURGE"),
			ReservationExpiry: v.GetString("CRON_RESERVATION_EXPIRY"),
		},
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=UTC"
}
