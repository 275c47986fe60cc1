package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultOrigin       = "https://www.airtoolpro.com"
	defaultSiteName     = "AirTool Pro"
	defaultAPIBasePath  = "/php/api"
	defaultAPITimeout   = 10 * time.Second
	defaultImageTTL     = 30 * time.Second
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	defaultLogLevel     = "info"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server ServerConfig
	Site   SiteConfig
	API    APIConfig
	Images ImageConfig
	Admin  AdminConfig
	Log    LogConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SiteConfig describes the public site.
type SiteConfig struct {
	Origin string
	Name   string
}

// APIConfig locates the PHP image API.
type APIConfig struct {
	Origin   string
	BasePath string
	Timeout  time.Duration
}

// BaseURL joins origin and base path.
func (c APIConfig) BaseURL() string {
	return strings.TrimRight(c.Origin, "/") + "/" + strings.Trim(c.BasePath, "/")
}

// ImageConfig tunes the image cache.
type ImageConfig struct {
	CacheTTL time.Duration
}

// AdminConfig guards mutation routes. An empty token disables them.
type AdminConfig struct {
	Token string
}

// Enabled reports whether admin routes should be mounted.
func (c AdminConfig) Enabled() bool {
	return c.Token != ""
}

type LogConfig struct {
	Level string
}

// ValidationError is returned when configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises the loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, .env overrides, environment
// variables and the explicit map, in increasing order of precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	var invalid []string
	duration := func(key string, fallback time.Duration) time.Duration {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return fallback
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return fallback
		}
		return d
	}

	siteOrigin := stringWithDefault(lookup, "SITE_ORIGIN", defaultOrigin)
	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SITE_WEB_PORT", stringWithDefault(lookup, "PORT", defaultPort)),
			ReadTimeout:  duration("SITE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: duration("SITE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  duration("SITE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Site: SiteConfig{
			Origin: strings.TrimRight(siteOrigin, "/"),
			Name:   stringWithDefault(lookup, "SITE_NAME", defaultSiteName),
		},
		API: APIConfig{
			Origin:   strings.TrimRight(stringWithDefault(lookup, "SITE_API_ORIGIN", siteOrigin), "/"),
			BasePath: stringWithDefault(lookup, "SITE_API_BASE_PATH", defaultAPIBasePath),
			Timeout:  duration("SITE_API_TIMEOUT", defaultAPITimeout),
		},
		Images: ImageConfig{
			CacheTTL: duration("SITE_IMAGE_CACHE_TTL", defaultImageTTL),
		},
		Admin: AdminConfig{
			Token: stringWithDefault(lookup, "SITE_ADMIN_TOKEN", ""),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
	}

	if !validOrigin(cfg.Site.Origin) {
		invalid = append(invalid, "SITE_ORIGIN")
	}
	if !validOrigin(cfg.API.Origin) {
		invalid = append(invalid, "SITE_API_ORIGIN")
	}
	if !strings.HasPrefix(cfg.API.BasePath, "/") {
		invalid = append(invalid, "SITE_API_BASE_PATH")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		invalid = append(invalid, "LOG_LEVEL")
	}
	if len(invalid) > 0 {
		return Config{}, &ValidationError{fields: invalid}
	}
	return cfg, nil
}

func validOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}
