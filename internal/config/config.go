package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CLIENTFORGE_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	CI       CIConfig       `koanf:"ci"`
	Storage  StorageConfig  `koanf:"storage"`
	Build    BuildConfig    `koanf:"build"`
	Jobs     JobsConfig     `koanf:"jobs"`
	CORS     CORSConfig     `koanf:"cors"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// PublicURL is the externally reachable base URL; the build workflow
	// downloads branding images from it.
	PublicURL string `koanf:"public_url"`
}

type DatabaseConfig struct {
	Driver         string `koanf:"driver"`
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type AuthConfig struct {
	JWTSecret     string        `koanf:"jwt_secret"`
	JWTExpiry     time.Duration `koanf:"jwt_expiry"`
	AdminEmail    string        `koanf:"admin_email"`
	AdminPassword string        `koanf:"admin_password"`
	// CallbackToken authenticates status reports from the build workflow.
	CallbackToken string `koanf:"callback_token"`
	// UploadToken authenticates build output uploads. It is also handed to
	// the workflow inside the extras document.
	UploadToken string `koanf:"upload_token"`
	// ExternalToken authenticates third-party triggers.
	ExternalToken string `koanf:"external_token"`
}

type CIConfig struct {
	APIBase string        `koanf:"api_base"`
	Owner   string        `koanf:"owner"`
	Repo    string        `koanf:"repo"`
	Ref     string        `koanf:"ref"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

type StorageConfig struct {
	ImagesPath     string `koanf:"images_path"`
	OutputsPath    string `koanf:"outputs_path"`
	MaxImageBytes  int64  `koanf:"max_image_bytes"`
	MaxOutputBytes int64  `koanf:"max_output_bytes"`
}

type BuildConfig struct {
	DefaultServer       string `koanf:"default_server"`
	DefaultKey          string `koanf:"default_key"`
	DefaultURLLink      string `koanf:"default_url_link"`
	DefaultDownloadLink string `koanf:"default_download_link"`
	DefaultCompany      string `koanf:"default_company"`
	// GenURL is reported to the workflow as the generator's address.
	// Empty means server.public_url.
	GenURL string `koanf:"gen_url"`
}

type JobsConfig struct {
	StaleAfter    time.Duration `koanf:"stale_after"`
	Retention     time.Duration `koanf:"retention"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load layers defaults, the TOML file at configPath (if any) and
// CLIENTFORGE_* environment variables, in that order.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	// CLIENTFORGE_AUTH_JWT_SECRET -> auth.jwt_secret. Empty values are
	// skipped so they cannot blank out file settings.
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && !k.Exists("database.url") {
		k.Set("database.url", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")
	if cfg.Build.GenURL == "" {
		cfg.Build.GenURL = cfg.Server.PublicURL
	}
	return &cfg, nil
}

func envKey(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	section, rest, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_")
	if !ok {
		return section, value
	}
	if section == "cors" && rest == "allowed_origins" {
		return "cors.allowed_origins", splitList(value)
	}
	return section + "." + rest, value
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every setting serve cannot run without.
func (c *Config) Validate() error {
	var errs []error
	require := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	switch c.Database.Driver {
	case "postgres":
		require(c.Database.URL, "database.url")
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}

	require(c.Auth.JWTSecret, "auth.jwt_secret")
	require(c.Auth.AdminEmail, "auth.admin_email")
	require(c.Auth.AdminPassword, "auth.admin_password")
	require(c.Auth.CallbackToken, "auth.callback_token")
	require(c.CI.Owner, "ci.owner")
	require(c.CI.Repo, "ci.repo")
	require(c.CI.Token, "ci.token")
	require(c.Server.PublicURL, "server.public_url")
	require(c.Storage.ImagesPath, "storage.images_path")
	require(c.Storage.OutputsPath, "storage.outputs_path")

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}
	if c.Jobs.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("jobs.sweep_interval must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
