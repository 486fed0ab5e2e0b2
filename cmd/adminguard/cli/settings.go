package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/connector"
	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/server"
	"github.com/consultease/adminguard/internal/service"
)

// settings is the effective configuration after merging defaults, the
// config file, environment variables and bound flags.
type settings struct {
	Host            string
	Port            int
	CORSOrigins     []string
	LoginRateLimit  int
	ShutdownTimeout time.Duration

	StoreDriver          string
	StoreDSN             string
	StoreMaxOpenConns    int
	StoreMaxIdleConns    int
	StoreConnMaxLifetime time.Duration

	MinPasswordLength int
	LockoutThreshold  int
	LockoutDuration   time.Duration
	BcryptCost        int

	LogLevel  string
	LogFormat string

	MCPTransport string
}

// setDefaults registers the built-in defaults with viper so every key has a
// value even without a config file.
func setDefaults() {
	d := config.DefaultYAMLConfig()
	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	viper.SetDefault("server.login_rate_limit", d.Server.LoginRateLimit)
	viper.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	viper.SetDefault("store.driver", d.Store.Driver)
	viper.SetDefault("store.dsn", d.Store.DSN)
	viper.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	viper.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	viper.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime)
	viper.SetDefault("security.min_password_length", d.Security.MinPasswordLength)
	viper.SetDefault("security.password_lockout_threshold", d.Security.PasswordLockoutThreshold)
	viper.SetDefault("security.password_lockout_duration", d.Security.PasswordLockoutDuration)
	viper.SetDefault("security.bcrypt_cost", d.Security.BcryptCost)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
	viper.SetDefault("mcp.transport", d.MCP.Transport)
}

func loadSettings() settings {
	return settings{
		Host:            viper.GetString("server.host"),
		Port:            viper.GetInt("server.port"),
		CORSOrigins:     viper.GetStringSlice("server.cors_origins"),
		LoginRateLimit:  viper.GetInt("server.login_rate_limit"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),

		StoreDriver:          viper.GetString("store.driver"),
		StoreDSN:             viper.GetString("store.dsn"),
		StoreMaxOpenConns:    viper.GetInt("store.max_open_conns"),
		StoreMaxIdleConns:    viper.GetInt("store.max_idle_conns"),
		StoreConnMaxLifetime: viper.GetDuration("store.conn_max_lifetime"),

		MinPasswordLength: viper.GetInt("security.min_password_length"),
		LockoutThreshold:  viper.GetInt("security.password_lockout_threshold"),
		LockoutDuration:   secondsOrDuration("security.password_lockout_duration"),
		BcryptCost:        viper.GetInt("security.bcrypt_cost"),

		LogLevel:  viper.GetString("logging.level"),
		LogFormat: viper.GetString("logging.format"),

		MCPTransport: viper.GetString("mcp.transport"),
	}
}

// secondsOrDuration reads key as a Go duration such as "15m", or as a whole
// number of seconds when it holds a bare integer. An unparsable value reads as
// zero so the built-in default applies.
func secondsOrDuration(key string) time.Duration {
	raw := strings.TrimSpace(viper.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// lockoutPolicy returns the configured lockout policy. Zero values fall back
// to the defaults inside the lockout package.
func (s settings) lockoutPolicy() lockout.Policy {
	return lockout.Policy{Threshold: s.LockoutThreshold, Duration: s.LockoutDuration}
}

func (s settings) serverConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Host = s.Host
	cfg.Port = s.Port
	cfg.CORSOrigins = s.CORSOrigins
	cfg.LoginRateLimit = s.LoginRateLimit
	if s.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = s.ShutdownTimeout
	}
	cfg.Version = versionString()
	return cfg
}

// newLogger builds the process logger. dev forces debug level.
func newLogger(w io.Writer, s settings, dev bool) *slog.Logger {
	level := parseLevel(s.LogLevel)
	if dev {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore opens the configured administrator store. The sqlite driver with
// no DSN uses adminguard.db in the data directory. Pool settings apply to the
// network backends only; SQLite always runs on a single connection.
func openStore(s settings) (*config.Store, error) {
	driver := s.StoreDriver
	if driver == "" {
		driver = "sqlite"
	}
	if driver == "sqlite" && s.StoreDSN == "" {
		return config.NewStore(resolveDataDir())
	}
	if s.StoreDSN == "" {
		return nil, fmt.Errorf("store.dsn is required for driver %q", driver)
	}
	return config.Open(connector.ConnectionConfig{
		Driver:          driver,
		DSN:             s.StoreDSN,
		MaxOpenConns:    s.StoreMaxOpenConns,
		MaxIdleConns:    s.StoreMaxIdleConns,
		ConnMaxLifetime: s.StoreConnMaxLifetime,
	})
}

// newAuthService wires the validator and lockout policy from settings.
func newAuthService(store *config.Store, s settings, logger *slog.Logger) *service.AuthService {
	validator := credential.NewValidator(
		credential.NewPolicy(s.MinPasswordLength),
		credential.NewHasher(s.BcryptCost),
	)
	return service.NewAuthService(store, validator, s.lockoutPolicy(), logger)
}

// openAuthService loads settings, opens the store and builds the service.
// The caller closes the returned store. Logs go to stderr.
func openAuthService() (*service.AuthService, *config.Store, settings, error) {
	s := loadSettings()
	store, err := openStore(s)
	if err != nil {
		return nil, nil, s, fmt.Errorf("open store: %w", err)
	}
	logger := newLogger(os.Stderr, s, false)
	return newAuthService(store, s, logger), store, s, nil
}
