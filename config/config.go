// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads client settings from a TOML file, an optional .env
// file and FREEFALL_* environment variables, in increasing precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	rpc "github.com/luxfi/freefall-rpc"
	"github.com/luxfi/freefall-rpc/internal/logging"
)

const (
	EnvEndpoint       = "FREEFALL_ENDPOINT"
	EnvProtocol       = "FREEFALL_PROTOCOL"
	EnvTransport      = "FREEFALL_TRANSPORT"
	EnvAddr           = "FREEFALL_ADDR"
	EnvMaxTrace       = "FREEFALL_MAX_TRACE"
	EnvUserReportRate = "FREEFALL_USER_REPORT_RATE"
	EnvReportProtocol = "FREEFALL_REPORT_PROTOCOL"
	EnvHTTPTimeout    = "FREEFALL_HTTP_TIMEOUT"
)

const DefaultEndpoint = "http://localhost:3000/api"

// Config is the resolved client configuration.
type Config struct {
	Endpoint       string
	Protocol       string
	Transport      string
	Addr           string
	MaxTrace       int
	UserReportRate int
	ReportProtocol string
	// HTTPTimeout bounds each HTTP exchange. Zero means no timeout.
	HTTPTimeout time.Duration
	LogLevel    zerolog.Level
	Headers     map[string]string
}

type fileConfig struct {
	Endpoint       string            `toml:"endpoint"`
	Protocol       string            `toml:"protocol"`
	Transport      string            `toml:"transport"`
	Addr           string            `toml:"addr"`
	MaxTrace       int               `toml:"max_trace"`
	UserReportRate int               `toml:"user_report_rate"`
	ReportProtocol string            `toml:"report_protocol"`
	HTTPTimeout    string            `toml:"http_timeout"`
	LogLevel       string            `toml:"log_level"`
	Headers        map[string]string `toml:"headers"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Protocol:       rpc.JSON.Name(),
		Transport:      rpc.DefaultTransport,
		MaxTrace:       rpc.MaxTrace,
		UserReportRate: rpc.UserReportRate,
		ReportProtocol: rpc.JSON.Name(),
		LogLevel:       zerolog.InfoLevel,
		Headers:        map[string]string{},
	}
}

// Overrides are values set explicitly by the caller, typically from
// command line flags. They take precedence over every other source.
type Overrides struct {
	Endpoint  string
	Protocol  string
	Transport string
	Addr      string
}

func (o Overrides) apply(cfg *Config) {
	for _, f := range []struct {
		v   string
		dst *string
	}{
		{o.Endpoint, &cfg.Endpoint},
		{o.Protocol, &cfg.Protocol},
		{o.Transport, &cfg.Transport},
		{o.Addr, &cfg.Addr},
	} {
		if v := strings.TrimSpace(f.v); v != "" {
			*f.dst = v
		}
	}
}

// Load resolves the configuration. An empty path skips the TOML file. A
// missing .env file is not an error.
func Load(path string, envFiles ...string) (Config, error) {
	return Resolve(path, envFiles, Overrides{})
}

// Resolve is Load with explicit overrides applied last.
func Resolve(path string, envFiles []string, o Overrides) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := LoadEnvFiles(envFiles...); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	o.apply(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. No arguments means ".env".
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config env load failed (%s): %w", p, err)
		}
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("protocol") {
		cfg.Protocol = strings.TrimSpace(raw.Protocol)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("max_trace") {
		cfg.MaxTrace = raw.MaxTrace
	}
	if meta.IsDefined("user_report_rate") {
		cfg.UserReportRate = raw.UserReportRate
	}
	if meta.IsDefined("report_protocol") {
		cfg.ReportProtocol = strings.TrimSpace(raw.ReportProtocol)
	}
	if meta.IsDefined("http_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HTTPTimeout))
		if err != nil {
			return fmt.Errorf("parse http_timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if meta.IsDefined("log_level") {
		lvl, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = lvl
	}
	for k, v := range raw.Headers {
		cfg.Headers[k] = v
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str(EnvEndpoint, &cfg.Endpoint)
	str(EnvProtocol, &cfg.Protocol)
	str(EnvTransport, &cfg.Transport)
	str(EnvAddr, &cfg.Addr)
	str(EnvReportProtocol, &cfg.ReportProtocol)
	if err := num(EnvMaxTrace, &cfg.MaxTrace); err != nil {
		return err
	}
	if err := num(EnvUserReportRate, &cfg.UserReportRate); err != nil {
		return err
	}
	if v := strings.TrimSpace(getenv(EnvHTTPTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvHTTPTimeout, err)
		}
		cfg.HTTPTimeout = d
	}
	if lvl, ok := logging.ParseLevel(getenv(logging.EnvLogLevel)); ok {
		cfg.LogLevel = lvl
	}
	return nil
}

// Validate rejects configurations no session could be built from.
func Validate(cfg Config) error {
	codecs := rpc.DefaultCodecs()
	if _, err := codecs.Lookup(cfg.Protocol); err != nil {
		return fmt.Errorf("config protocol %q: %w", cfg.Protocol, err)
	}
	if _, err := codecs.Lookup(cfg.ReportProtocol); err != nil {
		return fmt.Errorf("config report_protocol %q: %w", cfg.ReportProtocol, err)
	}
	if !rpc.HasTransport(cfg.Transport) {
		return fmt.Errorf("config transport %q: %w", cfg.Transport, rpc.ErrUnknownTransport)
	}
	if cfg.Transport == rpc.TransportHTTP {
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return fmt.Errorf("config missing endpoint")
		}
	} else if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("config transport %s requires addr", cfg.Transport)
	}
	if cfg.MaxTrace < 1 {
		return fmt.Errorf("config max_trace must be positive, got %d", cfg.MaxTrace)
	}
	if cfg.UserReportRate < 1 {
		return fmt.Errorf("config user_report_rate must be positive, got %d", cfg.UserReportRate)
	}
	if cfg.HTTPTimeout < 0 {
		return fmt.Errorf("config http_timeout must not be negative")
	}
	return nil
}

// TransportConfig returns the transport settings described by cfg.
func (c Config) TransportConfig() rpc.TransportConfig {
	tc := rpc.TransportConfig{Addr: c.Addr}
	if c.HTTPTimeout > 0 {
		tc.HTTPClient = &http.Client{Timeout: c.HTTPTimeout}
	}
	if len(c.Headers) > 0 {
		tc.Headers = make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			tc.Headers.Set(k, v)
		}
	}
	return tc
}

// NewSession dials the configured transport and returns a session using
// it. Extra options are applied after the configured ones.
func (c Config) NewSession(ctx context.Context, log zerolog.Logger, opts ...rpc.Option) (*rpc.Session, error) {
	t, err := rpc.Dial(ctx, c.Transport, c.TransportConfig())
	if err != nil {
		return nil, err
	}
	base := []rpc.Option{
		rpc.WithTransport(t),
		rpc.WithLogger(log),
		rpc.WithTraceCapacity(c.MaxTrace),
		rpc.WithSampler(rpc.NewRateSampler(c.UserReportRate, 0)),
		rpc.WithReportProtocol(c.ReportProtocol),
	}
	return rpc.NewSession(c.Endpoint, append(base, opts...)...), nil
}
