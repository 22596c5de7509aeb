package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	LibraryAPI LibraryAPIConfig `yaml:"library_api"`
	Mapping    MappingConfig    `yaml:"mapping"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Output     OutputConfig     `yaml:"output"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LibraryAPIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	TokenPath    string        `yaml:"token_path"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
	VerifyTLS    bool          `yaml:"verify_tls"`
}

type MappingConfig struct {
	BranchCode      string `yaml:"branch_code"`
	DefaultCategory string `yaml:"default_category"`
	// TablesFile overrides the embedded category/department/major tables.
	TablesFile string `yaml:"tables_file"`
}

type ReconcileConfig struct {
	// Universal IDs whose badge number is never corrected; the access
	// report is known to carry the wrong number for them.
	BadgeExceptions []string `yaml:"badge_exceptions"`
	NameExceptions  []string `yaml:"name_exceptions"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type DatabaseConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	Charset            string        `yaml:"charset"`
	ParseTime          bool          `yaml:"parse_time"`
	Loc                string        `yaml:"loc"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
}

type RedisConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size"`
	SnapshotKey string `yaml:"snapshot_key"`
}

type StorageConfig struct {
	S3            S3Config `yaml:"s3"`
	ArchivePrefix string   `yaml:"archive_prefix"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:    "patron-sync",
			Version: "1.2.0",
			Env:     "development",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LibraryAPI: LibraryAPIConfig{
			TokenPath: "/oauth/token",
			Timeout:   60 * time.Second,
			VerifyTLS: true,
		},
		Mapping: MappingConfig{
			BranchCode:      "SF",
			DefaultCategory: "STAFF",
		},
		Reconcile: ReconcileConfig{
			BadgeExceptions: []string{"1458769"},
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Database: DatabaseConfig{
			Port:               3306,
			Charset:            "utf8mb4",
			ParseTime:          true,
			Loc:                "Local",
			MaxConnections:     5,
			MaxIdleConnections: 2,
			ConnectionLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Port:        6379,
			PoolSize:    2,
			SnapshotKey: "patron-sync:prox-snapshot",
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region: "us-west-1",
				UseSSL: true,
			},
			ArchivePrefix: "archive",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads CONFIG_PATH (default config.yaml) over the defaults. A missing
// default file is fine; a missing file named by CONFIG_PATH is not.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = "config.yaml"
	}

	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("KOHA_API_ROOT"); v != "" {
		c.LibraryAPI.BaseURL = v
	}
	if v := os.Getenv("KOHA_CLIENT_ID"); v != "" {
		c.LibraryAPI.ClientID = v
	}
	if v := os.Getenv("KOHA_CLIENT_SECRET"); v != "" {
		c.LibraryAPI.ClientSecret = v
	}
	if v := os.Getenv("SSL_VERIFY"); v != "" {
		verify, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SSL_VERIFY value %q: %w", v, err)
		}
		c.LibraryAPI.VerifyTLS = verify
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset, c.Database.ParseTime, c.Database.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) TokenURL() string {
	return c.LibraryAPI.BaseURL + c.LibraryAPI.TokenPath
}
