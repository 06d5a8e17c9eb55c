package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Messaging MessagingConfig
	Tracing   TracingConfig
	Map       MapConfig
	Admin     AdminConfig
	Log       LogConfig
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host        string
	HTTPPort    int
	GRPCPort    int
	MetricsPort int // Port for Prometheus metrics HTTP server
}

// CacheConfig represents display-name cache configuration
type CacheConfig struct {
	Backend        string // memory or redis
	MaxMemoryBytes int64
	TTLMinutes     int
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Path     string // SQLite file path
}

// AuthConfig holds the static API tokens and capability rules
type AuthConfig struct {
	Tokens []APIToken
	// Rules maps a capability to a CEL expression over `subject`
	Rules map[string]string
}

// APIToken binds a bearer token to a login and role
type APIToken struct {
	Token string
	Login string
	Role  string
}

// MessagingConfig holds the relationship event publisher settings
type MessagingConfig struct {
	Brokers []string
	Topic   string
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	ServiceName  string
	OTLPEndpoint string
}

// MapConfig holds map embed settings
type MapConfig struct {
	APIKey string
}

// AdminConfig holds admin report settings
type AdminConfig struct {
	// EditURL is a format string receiving the record ID
	EditURL string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string // json or console
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot)

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	SetDefaults()

	return nil
}

// SetDefaults registers the default value of every key
func SetDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("HTTP_PORT", 8080)
	viper.SetDefault("GRPC_PORT", 50051)
	viper.SetDefault("METRICS_PORT", 9090)

	viper.SetDefault("DB_DRIVER", DriverPostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "nichesite")
	viper.SetDefault("DB_NAME", "nichesite_dev")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "nichesite.db")

	viper.SetDefault("CACHE_BACKEND", "memory")
	viper.SetDefault("CACHE_MAX_MEMORY_BYTES", 16*1024*1024) // 16MB
	viper.SetDefault("CACHE_TTL_MINUTES", 5)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("CAP_EDIT_POSTS", `subject.role in ["administrator", "editor", "author", "contributor"]`)
	viper.SetDefault("CAP_MANAGE_OPTIONS", `subject.role == "administrator"`)

	viper.SetDefault("KAFKA_TOPIC", "nichesite.relationships")
	viper.SetDefault("OTEL_SERVICE_NAME", "nichesite-directory")
	viper.SetDefault("ADMIN_EDIT_URL", "/wp-admin/post.php?post=%d&action=edit")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
}

// Load loads configuration from viper
func Load() (*Config, error) {
	driver := viper.GetString("DB_DRIVER")
	switch driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want postgres, mysql or sqlite3)", driver)
	}

	// DB_PASSWORD is required for networked databases
	dbPassword := viper.GetString("DB_PASSWORD")
	if dbPassword == "" && driver != DriverSQLite {
		return nil, fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
	}

	tokens, err := ParseAPITokens(viper.GetString("API_TOKENS"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			HTTPPort:    viper.GetInt("HTTP_PORT"),
			GRPCPort:    viper.GetInt("GRPC_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: dbPassword,
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			Path:     viper.GetString("DB_PATH"),
		},
		Cache: CacheConfig{
			Backend:        viper.GetString("CACHE_BACKEND"),
			MaxMemoryBytes: viper.GetInt64("CACHE_MAX_MEMORY_BYTES"),
			TTLMinutes:     viper.GetInt("CACHE_TTL_MINUTES"),
			RedisAddr:      viper.GetString("REDIS_ADDR"),
			RedisPassword:  viper.GetString("REDIS_PASSWORD"),
			RedisDB:        viper.GetInt("REDIS_DB"),
		},
		Auth: AuthConfig{
			Tokens: tokens,
			Rules: map[string]string{
				"edit_posts":     viper.GetString("CAP_EDIT_POSTS"),
				"manage_options": viper.GetString("CAP_MANAGE_OPTIONS"),
			},
		},
		Messaging: MessagingConfig{
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_TOPIC"),
		},
		Tracing: TracingConfig{
			ServiceName:  viper.GetString("OTEL_SERVICE_NAME"),
			OTLPEndpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Map: MapConfig{
			APIKey: viper.GetString("MAPS_API_KEY"),
		},
		Admin: AdminConfig{
			EditURL: viper.GetString("ADMIN_EDIT_URL"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	return config, nil
}

// ParseAPITokens parses "token:login:role" entries separated by commas
func ParseAPITokens(raw string) ([]APIToken, error) {
	var tokens []APIToken
	for _, entry := range splitList(raw) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid API_TOKENS entry %q (want token:login:role)", entry)
		}
		tokens = append(tokens, APIToken{Token: parts[0], Login: parts[1], Role: parts[2]})
	}
	return tokens, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ConnectionString returns the driver-specific data source name
func (c *DatabaseConfig) ConnectionString() string {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Database
		mc.ParseTime = true
		mc.MultiStatements = true
		return mc.FormatDSN()
	case DriverSQLite:
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", c.Path)
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host,
			c.Port,
			c.User,
			c.Password,
			c.Database,
			c.SSLMode,
		)
	}
}

// Redacted returns a log-safe description of the target database
func (c *DatabaseConfig) Redacted() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("sqlite3:%s", c.Path)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Driver, c.User, c.Host, c.Port, c.Database)
}
