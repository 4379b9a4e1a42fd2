package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

//go:embed default.ini
var DefaultConfigINI []byte

// DefaultPath is where annotate looks for its config when none is given.
const DefaultPath = "../app.ini"

// ErrNoDBSection is returned when a config file lacks a [db] section.
var ErrNoDBSection = errors.New("no db section in config file")

type Config struct {
	Environment string  `yaml:"environment" ini:"environment"`
	Public      int     `yaml:"public" ini:"public"`
	DB          DB      `yaml:"db"`
	Metrics     Metrics `yaml:"metrics"`
	S3          S3      `yaml:"s3"`

	path string
}

type DB struct {
	Driver   string `yaml:"driver" ini:"driver"`
	Host     string `yaml:"host" ini:"host"`
	Port     int    `yaml:"port" ini:"port"`
	User     string `yaml:"user" ini:"user"`
	Password string `yaml:"password" ini:"password"`
	Schema   string `yaml:"schema" ini:"schema"`
	Corpus   string `yaml:"corpus" ini:"corpus"`
	// Path is the database file when Driver is sqlite.
	Path string `yaml:"path" ini:"path"`
}

type Metrics struct {
	Pushgateway string `yaml:"pushgateway" ini:"pushgateway"`
	Job         string `yaml:"job" ini:"job"`
}

type S3 struct {
	Region   string `yaml:"region" ini:"region"`
	Endpoint string `yaml:"endpoint" ini:"endpoint"`
}

// ConfigDir returns the XDG config directory for burstkit.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "burstkit")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ../app.ini > ./app.ini > ~/.config/burstkit/app.ini
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	candidates := []string{DefaultPath, "app.ini", filepath.Join(ConfigDir(), "app.ini")}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n\nRun 'burstkit init' to create a default config",
		strings.Join(candidates, "\n  "),
	)
}

// LoadEnv reads a .env file from the working directory if one exists.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads a config file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as INI.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = parseYAML(data)
	default:
		cfg, err = parseINI(data)
	}
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)
	cfg.path = path
	return cfg, nil
}

// parseINI parses an INI config. Keys before the first section header, such
// as public, live in the default section. Keys are case-insensitive and only
// whole-line comments are recognized, so values may contain # and ;.
func parseINI(data []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         true,
		IgnoreInlineComment: true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	dbSec, err := f.GetSection("db")
	if err != nil {
		return nil, ErrNoDBSection
	}

	cfg := defaults()
	root := f.Section(ini.DefaultSection)
	cfg.Environment = root.Key("environment").MustString(cfg.Environment)
	if root.HasKey("public") {
		public, err := root.Key("public").Int()
		if err != nil {
			return nil, fmt.Errorf("parsing public flag: %w", err)
		}
		cfg.Public = public
	}

	if err := dbSec.StrictMapTo(&cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db section: %w", err)
	}
	if sec, err := f.GetSection("metrics"); err == nil {
		if err := sec.StrictMapTo(&cfg.Metrics); err != nil {
			return nil, fmt.Errorf("parsing metrics section: %w", err)
		}
	}
	if sec, err := f.GetSection("s3"); err == nil {
		if err := sec.StrictMapTo(&cfg.S3); err != nil {
			return nil, fmt.Errorf("parsing s3 section: %w", err)
		}
	}

	return cfg, nil
}

func parseYAML(data []byte) (*Config, error) {
	var probe struct {
		DB *yaml.Node `yaml:"db"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if probe.DB == nil {
		return nil, ErrNoDBSection
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Environment: "production",
		DB: DB{
			Driver: "mysql",
			Port:   3306,
		},
		Metrics: Metrics{Job: "burstkit"},
		S3:      S3{Region: "us-east-1"},
	}
}

// applyEnv lets secrets and per-host settings come from the environment
// instead of the checked-in file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BURSTKIT_DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("BURSTKIT_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("BURSTKIT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.DB.Port = port
		}
	}
	if v := os.Getenv("BURSTKIT_PUSHGATEWAY"); v != "" {
		cfg.Metrics.Pushgateway = v
	}
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// IsPublic reports whether loaded annotations are marked public.
func (c *Config) IsPublic() bool {
	return c.Public != 0
}

// SQLitePath returns the database file for the sqlite driver, resolved
// relative to the config file.
func (c *Config) SQLitePath() string {
	p := c.DB.Path
	if p == "" {
		p = "bursts.db"
	}
	if filepath.IsAbs(p) || c.path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.path), p)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
