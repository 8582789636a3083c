package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultFile is the config file looked up in the working directory
	// when --config is not given.
	DefaultFile = "reign-demo.yaml"

	envPrefix = "REIGN_DEMO"
)

// ErrNoDSN is returned by RequireDB when no database DSN is configured.
var ErrNoDSN = errors.New("db.dsn is not set")

// Config holds resolved configuration for the importer, the journal and the
// step server.
type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	Site    SiteConfig    `mapstructure:"site"`
	Theme   ThemeConfig   `mapstructure:"theme"`
	Demos   DemosConfig   `mapstructure:"demos"`
	Journal JournalConfig `mapstructure:"journal"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type DBConfig struct {
	DSN            string        `mapstructure:"dsn"`
	Prefix         string        `mapstructure:"prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type SiteConfig struct {
	HomeURL string `mapstructure:"home_url"`
}

// ThemeConfig controls how the active theme is healed after an import.
type ThemeConfig struct {
	Hint     string `mapstructure:"hint"`
	Fallback string `mapstructure:"fallback"`
	Dir      string `mapstructure:"dir"`
}

type DemosConfig struct {
	Dir string `mapstructure:"dir"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type AdminConfig struct {
	Login string `mapstructure:"login"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RateLimit is the number of step requests allowed per admin per minute.
	RateLimit int `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.prefix", "wp_")
	v.SetDefault("db.connect_timeout", "30s")
	v.SetDefault("site.home_url", "")
	v.SetDefault("theme.hint", "reign")
	v.SetDefault("theme.fallback", "reign-theme")
	v.SetDefault("theme.dir", "wp-content/themes")
	v.SetDefault("demos.dir", "wp-content/uploads/reign-demos")
	v.SetDefault("journal.path", filepath.Join(".reign-demo", "history.db"))
	v.SetDefault("admin.login", "")
	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from defaults, the optional YAML file at path and
// REIGN_DEMO_* environment variables, in increasing order of precedence.
// An empty path looks for DefaultFile in the working directory; a missing
// default file is not an error, a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	file := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		file = v.ConfigFileUsed()
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path as YAML. It refuses
// to overwrite an existing file.
func WriteDefault(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Validate checks values that are wrong regardless of which command runs.
func (c *Config) Validate() error {
	var problems []string
	if c.DB.Prefix == "" {
		problems = append(problems, "db.prefix must not be empty")
	}
	if c.Server.RateLimit < 1 {
		problems = append(problems, "server.rate_limit must be at least 1")
	}
	if c.DB.ConnectTimeout < 0 {
		problems = append(problems, "db.connect_timeout must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireDB reports ErrNoDSN when a command that touches the WordPress
// database runs without a DSN.
func (c *Config) RequireDB() error {
	if strings.TrimSpace(c.DB.DSN) == "" {
		return ErrNoDSN
	}
	return nil
}

// JournalDir is the directory holding the history database.
func (c *Config) JournalDir() string {
	return filepath.Dir(c.Journal.Path)
}

// JournalExists checks if the history database file exists.
// It returns an error for non-existence failures (e.g. permission errors).
func (c *Config) JournalExists() (bool, error) {
	if _, err := os.Stat(c.Journal.Path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Redacted returns the DSN with its password replaced, for display.
func (c *Config) Redacted() string {
	dsn := c.DB.DSN
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	creds := dsn[:at]
	colon := strings.Index(creds, ":")
	if colon < 0 {
		return dsn
	}
	return creds[:colon+1] + "****" + dsn[at:]
}
