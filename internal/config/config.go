package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	QR       QRConfig
	Scanner  ScannerConfig
	Auth     AuthConfig
	Issue    IssueConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	ConnectTries  int
	AutoMigrate   bool
	MigrationsDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// CacheTTL bounds how long the check-in fast-path set lives without writes.
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketEvents  string
	CheckinEvents string
}

type QRConfig struct {
	DecodeURL   string
	EncodeURL   string
	Size        int
	Color       string
	BgColor     string
	ECC         string
	HTTPTimeout time.Duration
}

type ScannerConfig struct {
	Interval              time.Duration
	CameraMaxFailures     int
	CameraSnapshotTimeout time.Duration
}

type AuthConfig struct {
	OIDCIssuer string
	JWTSecret  string
}

type IssueConfig struct {
	MaxAttempts int
	MaxQuantity int
}

type LogConfig struct {
	Dir   string
	Level string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8084"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectTries:  getEnvInt("DB_CONNECT_TRIES", 5),
			AutoMigrate:   getEnvBool("MIGRATIONS_AUTO", true),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("CHECKIN_CACHE_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "ticket-lifecycle-"+hostname()),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				TicketEvents:  getEnv("KAFKA_TOPIC_TICKETS", "ticketly.tickets.lifecycle"),
				CheckinEvents: getEnv("KAFKA_TOPIC_CHECKINS", "ticketly.tickets.checkins"),
			},
		},
		QR: QRConfig{
			DecodeURL:   getEnv("QR_DECODE_URL", "https://api.qrserver.com/v1/read-qr-code/"),
			EncodeURL:   getEnv("QR_ENCODE_URL", "https://api.qrserver.com/v1/create-qr-code/"),
			Size:        getEnvInt("QR_SIZE", 256),
			Color:       getEnv("QR_COLOR", "000000"),
			BgColor:     getEnv("QR_BGCOLOR", "ffffff"),
			ECC:         getEnv("QR_ECC", "M"),
			HTTPTimeout: getEnvDuration("QR_HTTP_TIMEOUT", 10*time.Second),
		},
		Scanner: ScannerConfig{
			Interval:              getEnvDuration("SCAN_INTERVAL", 1200*time.Millisecond),
			CameraMaxFailures:     getEnvInt("SCAN_CAMERA_MAX_FAILURES", 10),
			CameraSnapshotTimeout: getEnvDuration("SCAN_CAMERA_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			JWTSecret:  getEnv("JWT_SECRET", ""),
		},
		Issue: IssueConfig{
			MaxAttempts: getEnvInt("ISSUE_MAX_ATTEMPTS", 3),
			MaxQuantity: getEnvInt("ISSUE_MAX_QUANTITY", 1000),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "INFO"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("1200ms", "5s").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// hostname keeps the default consumer group per instance, so every door
// instance sees every check-in.
func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}
