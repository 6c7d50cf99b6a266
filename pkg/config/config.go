// Package config loads server settings from an optional YAML file, then
// applies GRIDCASCADE_* environment overrides and validates the result.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/risk"
	gridtls "github.com/dd0wney/gridcascade/pkg/tls"
	"github.com/dd0wney/gridcascade/pkg/topology"
	"github.com/dd0wney/gridcascade/pkg/validation"
)

// Archive kinds.
const (
	ArchiveNone = "none"
	ArchiveFile = "file"
	ArchiveS3   = "s3"
)

// Config is the complete server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Topology   TopologyConfig   `yaml:"topology"`
	Centrality CentralityConfig `yaml:"centrality"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Auth       AuthConfig       `yaml:"auth"`
	Risk       RiskConfig       `yaml:"risk"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig enables HTTPS on the API listener.
type TLSConfig struct {
	Enabled           bool          `yaml:"enabled"`
	CertFile          string        `yaml:"cert_file"`
	KeyFile           string        `yaml:"key_file"`
	ClientCAFile      string        `yaml:"client_ca_file"`
	RequireClientCert bool          `yaml:"require_client_cert"`
	SelfSigned        bool          `yaml:"self_signed"`
	Hosts             []string      `yaml:"hosts"`
	MinVersion        string        `yaml:"min_version"`
	ExpiryWarning     time.Duration `yaml:"expiry_warning"`
}

// Options converts the section for tls.ServerConfig.
func (t TLSConfig) Options() gridtls.Config {
	return gridtls.Config{
		CertFile:          t.CertFile,
		KeyFile:           t.KeyFile,
		ClientCAFile:      t.ClientCAFile,
		RequireClientCert: t.RequireClientCert,
		SelfSigned:        t.SelfSigned,
		Hosts:             t.Hosts,
		MinVersion:        t.MinVersion,
	}
}

type TopologyConfig struct {
	Source       string        `yaml:"source"`
	Path         string        `yaml:"path"`
	DSN          string        `yaml:"dsn"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Database     string        `yaml:"database"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// SourceOptions converts the section for topology.OpenSource.
func (t TopologyConfig) SourceOptions() topology.SourceOptions {
	return topology.SourceOptions{
		Kind:     topology.SourceKind(t.Source),
		Path:     t.Path,
		DSN:      t.DSN,
		Username: t.Username,
		Password: t.Password,
		Database: t.Database,
	}
}

type CentralityConfig struct {
	BatchInterval         time.Duration `yaml:"batch_interval"`
	MaxSnapshotAge        time.Duration `yaml:"max_snapshot_age"`
	MinComponentSize      int           `yaml:"min_component_size"`
	ExactBetweennessLimit int           `yaml:"exact_betweenness_limit"`
	SampleSources         int           `yaml:"sample_sources"`
	Seed                  int64         `yaml:"seed"`
	ReachDepth            int           `yaml:"reach_depth"`
	Workers               int           `yaml:"workers"`
}

// EngineOptions converts the section for centrality.NewEngine. Zero values
// keep the engine defaults.
func (c CentralityConfig) EngineOptions() centrality.Options {
	return centrality.Options{
		MinComponentSize:      c.MinComponentSize,
		ExactBetweennessLimit: c.ExactBetweennessLimit,
		SampleSources:         c.SampleSources,
		Seed:                  c.Seed,
		ReachDepth:            c.ReachDepth,
		Workers:               c.Workers,
	}
}

type ArchiveConfig struct {
	Kind            string `yaml:"kind"`
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// S3Options converts the section for centrality.NewS3Archive.
func (a ArchiveConfig) S3Options() centrality.S3Options {
	return centrality.S3Options{
		Bucket:          a.Bucket,
		Prefix:          a.Prefix,
		Region:          a.Region,
		Endpoint:        a.Endpoint,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
	}
}

// OpenArchive opens the configured snapshot archive. ArchiveNone yields a
// nil Archive.
func OpenArchive(ctx context.Context, a ArchiveConfig) (centrality.Archive, error) {
	switch a.Kind {
	case ArchiveFile:
		archive, err := centrality.NewFileArchive(a.Dir)
		if err != nil {
			return nil, fmt.Errorf("open file archive: %w", err)
		}
		return archive, nil
	case ArchiveS3:
		archive, err := centrality.NewS3Archive(ctx, a.S3Options())
		if err != nil {
			return nil, fmt.Errorf("open s3 archive: %w", err)
		}
		return archive, nil
	case ArchiveNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive kind %q", a.Kind)
	}
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
	Issuer  string `yaml:"issuer"`
}

type RiskConfig struct {
	SystemLoadMW   float64 `yaml:"system_load_mw"`
	PeakCapacityMW float64 `yaml:"peak_capacity_mw"`
	Timezone       string  `yaml:"timezone"`
}

// Location resolves Timezone; empty means UTC.
func (r RiskConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// LoadReader returns the diurnal load estimate for this section.
func (r RiskConfig) LoadReader() (risk.DiurnalLoad, error) {
	loc, err := r.Location()
	if err != nil {
		return risk.DiurnalLoad{}, err
	}
	return risk.DiurnalLoad{SystemLoadMW: r.SystemLoadMW, PeakCapacityMW: r.PeakCapacityMW, Location: loc}, nil
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration that serves the bundled sample grid.
func Default() Config {
	eng := centrality.DefaultOptions()
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
			MaxBodyBytes:    10 << 20,
			TLS: TLSConfig{
				Hosts:         []string{"localhost", "127.0.0.1"},
				MinVersion:    "1.2",
				ExpiryWarning: 14 * 24 * time.Hour,
			},
		},
		Topology: TopologyConfig{
			Source:       string(topology.SourceFile),
			Path:         "grid.yaml",
			SyncInterval: topology.DefaultSyncInterval,
		},
		Centrality: CentralityConfig{
			BatchInterval:         centrality.DefaultBatchInterval,
			MaxSnapshotAge:        ranking.DefaultMaxSnapshotAge,
			MinComponentSize:      eng.MinComponentSize,
			ExactBetweennessLimit: eng.ExactBetweennessLimit,
			SampleSources:         eng.SampleSources,
			Seed:                  eng.Seed,
			ReachDepth:            eng.ReachDepth,
		},
		Archive: ArchiveConfig{Kind: ArchiveNone, Dir: "snapshots", Prefix: "centrality/"},
		Risk: RiskConfig{
			SystemLoadMW:   800,
			PeakCapacityMW: 1000,
			Timezone:       "UTC",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (optional), overlays the environment and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	errs = append(errs, validation.NewConfigValidator("server").
		Required("addr", c.Server.Addr).
		MinDuration("shutdown_timeout", c.Server.ShutdownTimeout, time.Second).
		MinDuration("request_timeout", c.Server.RequestTimeout, time.Second).
		Custom("max_body_bytes", func() error {
			if c.Server.MaxBodyBytes <= 0 {
				return errors.New("must be positive")
			}
			return nil
		}).
		Validate())

	errs = append(errs, validation.NewConfigValidator("server.tls").
		When(c.Server.TLS.Enabled, func(cv *validation.ConfigValidator) {
			cv.OneOf("min_version", c.Server.TLS.MinVersion, []string{"", "1.2", "1.3"}).
				Custom("cert_file", func() error {
					t := c.Server.TLS
					if (t.CertFile == "") != (t.KeyFile == "") {
						return errors.New("cert_file and key_file must be set together")
					}
					if t.CertFile == "" && !t.SelfSigned {
						return errors.New("required unless self_signed is set")
					}
					return nil
				}).
				When(c.Server.TLS.RequireClientCert, func(cv *validation.ConfigValidator) {
					cv.Required("client_ca_file", c.Server.TLS.ClientCAFile)
				})
		}).
		Validate())

	errs = append(errs, validation.NewConfigValidator("topology").
		OneOf("source", c.Topology.Source, []string{
			string(topology.SourceFile), string(topology.SourcePostgres),
			string(topology.SourceSQLite), string(topology.SourceNeo4j),
		}).
		When(c.Topology.Source == string(topology.SourceFile) || c.Topology.Source == string(topology.SourceSQLite),
			func(cv *validation.ConfigValidator) { cv.Required("path", c.Topology.Path) }).
		When(c.Topology.Source == string(topology.SourcePostgres) || c.Topology.Source == string(topology.SourceNeo4j),
			func(cv *validation.ConfigValidator) { cv.Required("dsn", c.Topology.DSN) }).
		MinDuration("sync_interval", c.Topology.SyncInterval, time.Second).
		Validate())

	errs = append(errs, validation.NewConfigValidator("centrality").
		MinDuration("batch_interval", c.Centrality.BatchInterval, time.Minute).
		MinDuration("max_snapshot_age", c.Centrality.MaxSnapshotAge, c.Centrality.BatchInterval).
		RangeInt("min_component_size", c.Centrality.MinComponentSize, 2, 1_000_000).
		Positive("exact_betweenness_limit", c.Centrality.ExactBetweennessLimit).
		Positive("sample_sources", c.Centrality.SampleSources).
		RangeInt("reach_depth", c.Centrality.ReachDepth, 1, 10).
		RangeInt("workers", c.Centrality.Workers, 0, 1024).
		Validate())

	errs = append(errs, validation.NewConfigValidator("archive").
		OneOf("kind", c.Archive.Kind, []string{ArchiveNone, ArchiveFile, ArchiveS3}).
		When(c.Archive.Kind == ArchiveFile, func(cv *validation.ConfigValidator) { cv.Required("dir", c.Archive.Dir) }).
		When(c.Archive.Kind == ArchiveS3, func(cv *validation.ConfigValidator) { cv.Required("bucket", c.Archive.Bucket) }).
		Validate())

	errs = append(errs, validation.NewConfigValidator("auth").
		When(c.Auth.Enabled, func(cv *validation.ConfigValidator) {
			cv.Custom("secret", func() error {
				if len(c.Auth.Secret) < 32 {
					return errors.New("must be at least 32 bytes when auth is enabled")
				}
				return nil
			})
		}).
		Validate())

	errs = append(errs, validation.NewConfigValidator("risk").
		NonNegativeFloat("system_load_mw", c.Risk.SystemLoadMW).
		PositiveFloat("peak_capacity_mw", c.Risk.PeakCapacityMW).
		Custom("timezone", func() error {
			_, err := c.Risk.Location()
			return err
		}).
		Validate())

	errs = append(errs, validation.NewConfigValidator("logging").
		OneOf("level", c.Logging.Level, []string{"debug", "info", "warn", "warning", "error"}).
		Validate())

	return errors.Join(errs...)
}

// LogLevel returns the configured level.
func (c Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}
