// Package config loads runtime startup configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDataDir    = "data"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "pagecraft"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
)

// Backend names accepted by storage.backend.
const (
	BackendJSONFile = "jsonfile"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int           `yaml:"port"`
	Env            string        `yaml:"env"` // "development" | "production"
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Storage        StorageConfig `yaml:"storage"`
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// DataDir holds the jsonfile document and the sqlite database file.
	DataDir string `yaml:"data_dir"`
	// PostgresURL is a pgx connection string (postgres://...).
	PostgresURL string                `yaml:"postgres_url"`
	MySQL       DatabaseRuntimeConfig `yaml:"mysql"`
}

// DatabaseRuntimeConfig describes a MySQL connection either as a full DSN
// or as discrete fields assembled by DSNValue.
type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	return Parse(content, path)
}

// Parse decodes YAML content. Unknown keys are rejected so typos fail at
// startup instead of silently falling back to defaults.
func Parse(content []byte, path string) (*AppConfig, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	normalize(&cfg)
	if err := validate(&cfg, path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when keys are absent: a jsonfile
// backend writing under ./data, development env, port 2333.
func Default() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Storage: StorageConfig{
			Backend: BackendJSONFile,
			DataDir: defaultDataDir,
			MySQL: DatabaseRuntimeConfig{
				Host:      defaultDBHost,
				Port:      defaultDBPort,
				User:      defaultDBUser,
				Password:  defaultDBPassword,
				Name:      defaultDBName,
				Charset:   defaultDBCharset,
				ParseTime: true,
				Loc:       defaultDBLoc,
			},
		},
	}
}

func normalize(cfg *AppConfig) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendJSONFile
	}
	cfg.Storage.DataDir = strings.TrimSpace(cfg.Storage.DataDir)
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir
	}
	cfg.Storage.PostgresURL = strings.TrimSpace(cfg.Storage.PostgresURL)

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.AllowedOrigins = origins
}

func validate(cfg *AppConfig, path string) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	switch cfg.Storage.Backend {
	case BackendJSONFile, BackendSQLite, BackendPostgres, BackendMySQL:
	default:
		return fmt.Errorf("invalid storage.backend %q in %q, expected jsonfile|sqlite|postgres|mysql",
			cfg.Storage.Backend, path)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// DSNValue returns the explicit DSN when set, otherwise assembles one from
// the discrete fields (user:pass@tcp(host:port)/name?charset=...).
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		user = defaultDBUser
	}
	password := c.Password
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}
	loc := strings.TrimSpace(c.Loc)
	if loc == "" {
		loc = defaultDBLoc
	}

	params := neturl.Values{}
	for key, value := range c.Params {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			params.Set(k, v)
		}
	}
	if params.Get("charset") == "" {
		params.Set("charset", charset)
	}
	if params.Get("parseTime") == "" {
		params.Set("parseTime", strconv.FormatBool(c.ParseTime))
	}
	if params.Get("loc") == "" {
		params.Set("loc", loc)
	}

	auth := user
	if password != "" {
		auth += ":" + password
	}
	return fmt.Sprintf("%s@tcp(%s)/%s?%s",
		auth, net.JoinHostPort(host, strconv.Itoa(port)), name, params.Encode())
}
