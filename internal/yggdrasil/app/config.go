package app

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

// Config holds all runtime settings. Values are layered: built-in defaults,
// then the optional YAML config file, then command-line flags.
type Config struct {
	Env string `koanf:"env"` // dev, staging, prod

	Server struct {
		Listen              string        `koanf:"listen"`
		BaseURL             string        `koanf:"base_url"` // public URL texture links are built from
		ShutdownGracePeriod time.Duration `koanf:"shutdown_grace_period"`
	} `koanf:"server"`

	Meta struct {
		ServerName   string   `koanf:"server_name"`
		HomepageLink string   `koanf:"homepage_link"`
		RegisterLink string   `koanf:"register_link"`
		SkinDomains  []string `koanf:"skin_domains"`
	} `koanf:"meta"`

	Database struct {
		File string `koanf:"file"`
	} `koanf:"database"`

	Security struct {
		SigningKeyFile string `koanf:"signing_key_file"`
		PepperFile     string `koanf:"pepper_file"`
	} `koanf:"security"`

	Textures struct {
		Backend string `koanf:"backend"` // fs or s3
		FSRoot  string `koanf:"fs_root"`
		S3      struct {
			Region    string `koanf:"region"`
			Endpoint  string `koanf:"endpoint"` // optional, for S3-compatible stores
			Bucket    string `koanf:"bucket"`
			AccessKey string `koanf:"access_key"`
			SecretKey string `koanf:"secret_key"`
		} `koanf:"s3"`
	} `koanf:"textures"`

	Fallback struct {
		Endpoints []EndpointConfig `koanf:"endpoints"`
	} `koanf:"fallback"`

	Housekeeping struct {
		Interval time.Duration `koanf:"interval"`
	} `koanf:"housekeeping"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
}

// EndpointConfig describes one upstream authentication server consulted when
// a lookup misses locally. Lower priority values are tried first.
type EndpointConfig struct {
	Name        string        `koanf:"name"`
	Priority    int           `koanf:"priority"`
	SessionURL  string        `koanf:"session_url"`
	AccountURL  string        `koanf:"account_url"`
	ServicesURL string        `koanf:"services_url"`
	Timeout     time.Duration `koanf:"timeout"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
	SkinDomains []string      `koanf:"skin_domains"`
}

// Endpoints converts the configured upstreams into domain values.
func (c Config) Endpoints() []domain.FallbackEndpoint {
	out := make([]domain.FallbackEndpoint, 0, len(c.Fallback.Endpoints))
	for _, e := range c.Fallback.Endpoints {
		out = append(out, domain.FallbackEndpoint{
			Name:        e.Name,
			Priority:    e.Priority,
			SessionURL:  e.SessionURL,
			AccountURL:  e.AccountURL,
			ServicesURL: e.ServicesURL,
			Timeout:     e.Timeout,
			CacheTTL:    e.CacheTTL,
			SkinDomains: e.SkinDomains,
		})
	}
	return out
}

// LoadConfig parses flags from args (excluding the program name), overlays
// the config file if one exists, and returns the resolved configuration.
func LoadConfig(args []string) (Config, error) {
	fs := pflag.NewFlagSet("yggdrasil", pflag.ContinueOnError)
	fs.String("config", "config.yaml", "path to the YAML config file")

	fs.String("env", "dev", "environment (dev, staging, prod)")
	fs.String("server.listen", ":8080", "address the HTTP server binds to")
	fs.String("server.base_url", "http://localhost:8080", "public base URL for texture links")
	fs.Duration("server.shutdown_grace_period", 10*time.Second, "graceful shutdown timeout")
	fs.String("meta.server_name", "Yggdrasil", "server name advertised in the index document")
	fs.String("database.file", "yggdrasil.db", "path to the SQLite database file")
	fs.String("security.signing_key_file", "signing_key.pem", "path to the RSA signing key (created if missing)")
	fs.String("security.pepper_file", "pepper.txt", "path to the password pepper file (created if missing)")
	fs.String("textures.backend", "fs", "texture blob backend (fs or s3)")
	fs.String("textures.fs_root", "textures", "directory for the fs texture backend")
	fs.Duration("housekeeping.interval", time.Minute, "interval between cleanup sweeps")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")
	fs.String("log.format", "json", "log format (json, text)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	k := koanf.New(".")

	path, _ := fs.GetString("config")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if fs.Changed("config") {
		// An explicitly requested file must exist.
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	// Flags fill in defaults and override file values when set explicitly.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Textures.Backend {
	case "fs", "s3":
	default:
		return fmt.Errorf("textures.backend must be fs or s3, got %q", c.Textures.Backend)
	}
	if c.Textures.Backend == "s3" && c.Textures.S3.Bucket == "" {
		return fmt.Errorf("textures.s3.bucket is required for the s3 backend")
	}
	for _, e := range c.Fallback.Endpoints {
		if e.Name == "" {
			return fmt.Errorf("fallback endpoints must have a name")
		}
		if e.SessionURL == "" && e.AccountURL == "" && e.ServicesURL == "" {
			return fmt.Errorf("fallback endpoint %s has no URLs", e.Name)
		}
	}
	return nil
}
