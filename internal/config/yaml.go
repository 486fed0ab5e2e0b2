package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level adminguard configuration file.
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Security SecurityConfig `yaml:"security"`
	MCP      MCPConfig      `yaml:"mcp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"cors_origins"`
	LoginRateLimit  int      `yaml:"login_rate_limit"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

// StoreConfig selects the administrator record backend. An empty DSN with
// the sqlite driver uses adminguard.db in the data directory.
type StoreConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// SecurityConfig holds the password policy and lockout parameters.
type SecurityConfig struct {
	MinPasswordLength        int    `yaml:"min_password_length"`
	PasswordLockoutThreshold int    `yaml:"password_lockout_threshold"`
	PasswordLockoutDuration  string `yaml:"password_lockout_duration"`
	BcryptCost               int    `yaml:"bcrypt_cost"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			LoginRateLimit:  20,
			ShutdownTimeout: "30s",
		},
		Store: StoreConfig{
			Driver:          "sqlite",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: "5m",
		},
		Security: SecurityConfig{
			MinPasswordLength:        8,
			PasswordLockoutThreshold: 5,
			PasswordLockoutDuration:  "15m",
			BcryptCost:               12,
		},
		MCP: MCPConfig{
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ---------------------------------------------------------------------------
// Legacy import
// ---------------------------------------------------------------------------

// LegacyImport is the file format accepted by `adminguard admin import`. It
// carries accounts exported from the system that predates bcrypt, with their
// SHA-256 digests and salts.
type LegacyImport struct {
	Admins []LegacyAdmin `yaml:"admins"`
}

// LegacyAdmin is one exported account.
type LegacyAdmin struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Salt         string `yaml:"salt"`
	IsActive     *bool  `yaml:"is_active,omitempty"`
}

// Active reports whether the account should be imported as active. Accounts
// without an explicit flag are active.
func (a LegacyAdmin) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// LoadLegacyImport reads and validates a legacy import file. No environment
// expansion is applied since hashes and salts may contain '$'.
func LoadLegacyImport(path string) (*LegacyImport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	var imp LegacyImport
	if err := yaml.Unmarshal(data, &imp); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}

	seen := make(map[string]bool, len(imp.Admins))
	for i, a := range imp.Admins {
		switch {
		case a.Username == "":
			return nil, fmt.Errorf("import entry %d: username is required", i+1)
		case a.PasswordHash == "":
			return nil, fmt.Errorf("import entry %d (%s): password_hash is required", i+1, a.Username)
		case seen[a.Username]:
			return nil, fmt.Errorf("import entry %d: %w: %s", i+1, ErrDuplicate, a.Username)
		}
		seen[a.Username] = true
	}
	return &imp, nil
}
