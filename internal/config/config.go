// Package config loads the host configuration of the storage commands:
// an optional .env file, an optional YAML settings file, AWS_* environment
// variables and command-line flags, merged through viper.
//
// Usage:
//
//	fs := pflag.NewFlagSet("s3-sync-meta", pflag.ContinueOnError)
//	config.RegisterFlags(fs)
//	_ = fs.Parse(os.Args[1:])
//	cfg, err := config.Load(config.ConfigPath(fs), fs)
//	st, err := cfg.Open(ctx, settings.VariantStatic, nil, log)
package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/filestore"
	"github.com/koustreak/s3storage/internal/filestore/memstore"
	"github.com/koustreak/s3storage/internal/filestore/minio"
	"github.com/koustreak/s3storage/internal/filestore/s3"
	"github.com/koustreak/s3storage/internal/logger"
	"github.com/koustreak/s3storage/internal/settings"
)

// Host option names. Storage options use the AWS_* names of package settings.
const (
	KeyBackend   = "STORAGE_BACKEND"
	KeyLogLevel  = "LOG_LEVEL"
	KeyLogFormat = "LOG_FORMAT"
)

// Flag names registered by RegisterFlags.
const (
	FlagConfig    = "config"
	FlagValues    = "values"
	FlagBackend   = "backend"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

// Config is the loaded host configuration.
type Config struct {
	Backend filestore.Provider
	Log     *logger.Config

	v      *viper.Viper
	values settings.Values
}

// RegisterFlags adds the host flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "path to a YAML settings file")
	fs.String(FlagValues, "", "path to a YAML file of storage values that beat env and --config")
	fs.String(FlagBackend, string(filestore.ProviderS3), "object store backend: s3, minio or memory")
	fs.String(FlagLogLevel, "info", "log level: debug, info, warn, error")
	fs.String(FlagLogFormat, "console", "log format: json or console")
}

// ConfigPath returns the value of the --config flag, or "" when fs does
// not define it.
func ConfigPath(fs *pflag.FlagSet) string {
	if fs == nil {
		return ""
	}
	path, _ := fs.GetString(FlagConfig)
	return path
}

// Load builds the host configuration. A .env file in the working directory
// is loaded first when present. path names an optional YAML settings file;
// environment variables beat file values and changed flags beat both.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to load .env", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetDefault(KeyBackend, string(filestore.ProviderS3))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to read config file", err)
		}
	}

	if fs != nil {
		for key, flag := range map[string]string{
			KeyBackend:   FlagBackend,
			KeyLogLevel:  FlagLogLevel,
			KeyLogFormat: FlagLogFormat,
		} {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to bind flag "+flag, err)
				}
			}
		}
	}

	backend, err := filestore.ParseProvider(v.GetString(KeyBackend))
	if err != nil {
		return nil, err
	}

	log := logger.DefaultConfig()
	log.Level = v.GetString(KeyLogLevel)
	log.Format = v.GetString(KeyLogFormat)

	cfg := &Config{Backend: backend, Log: log, v: v}
	if fs != nil {
		if path, _ := fs.GetString(FlagValues); path != "" {
			vals, err := settings.LoadYAML(path)
			if err != nil {
				return nil, err
			}
			cfg.values = vals
		}
	}
	return cfg, nil
}

// Source exposes the merged values as a settings.Source. Values loaded
// through --values come first.
func (c *Config) Source() settings.Source {
	if c.values == nil {
		return settings.FromViper(c.v)
	}
	return settings.Chain(c.values, settings.FromViper(c.v))
}

// Settings resolves the storage settings of variant.
func (c *Config) Settings(variant settings.Variant, kw settings.Overrides) (settings.Settings, error) {
	return settings.Resolve(c.Source(), variant, kw)
}

// Open resolves the settings of variant, connects the configured backend
// and returns the storage adapter over it.
func (c *Config) Open(ctx context.Context, variant settings.Variant, kw settings.Overrides, log *logger.Logger) (*filestore.Storage, error) {
	s, err := c.Settings(variant, kw)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, c.Backend, s)
	if err != nil {
		return nil, err
	}
	return filestore.New(s, store, log)
}

// NewStore connects the ObjectStore of provider p.
func NewStore(ctx context.Context, p filestore.Provider, s settings.Settings) (filestore.ObjectStore, error) {
	switch p {
	case filestore.ProviderS3:
		d, err := s3.New(ctx, s)
		if err != nil {
			return nil, err
		}
		return d, nil
	case filestore.ProviderMinIO:
		d, err := minio.New(ctx, s)
		if err != nil {
			return nil, err
		}
		return d, nil
	case filestore.ProviderMemory:
		return memstore.New(memstore.Config{Bucket: s.BucketName}), nil
	}
	return nil, errs.Newf(errs.ErrKindConfiguration, "unknown storage backend %q", p)
}
