package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

func envMap(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gridcascade.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
topology:
  source: sqlite
  path: /var/lib/grid/topology.db
  sync_interval: 2m
centrality:
  batch_interval: 10m
  max_snapshot_age: 6h
archive:
  kind: s3
  bucket: grid-snapshots
  region: us-east-1
risk:
  timezone: America/Chicago
  peak_capacity_mw: 2400
`), 0o600))

	t.Setenv("GRIDCASCADE_ADDR", ":7070")
	t.Setenv("GRIDCASCADE_CENTRALITY_SAMPLE_SOURCES", "250")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "env overrides file")
	assert.Equal(t, "sqlite", cfg.Topology.Source)
	assert.Equal(t, 2*time.Minute, cfg.Topology.SyncInterval)
	assert.Equal(t, 6*time.Hour, cfg.Centrality.MaxSnapshotAge)
	assert.Equal(t, 250, cfg.Centrality.SampleSources)
	assert.Equal(t, 5000, cfg.Centrality.ExactBetweennessLimit, "unset keys keep defaults")
	assert.Equal(t, "grid-snapshots", cfg.Archive.S3Options().Bucket)
	assert.Equal(t, 2400.0, cfg.Risk.PeakCapacityMW)

	opts := cfg.Topology.SourceOptions()
	assert.Equal(t, topology.SourceSQLite, opts.Kind)
	assert.Equal(t, "/var/lib/grid/topology.db", opts.Path)

	assert.Equal(t, 250, cfg.Centrality.EngineOptions().SampleSources)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestApplyEnvRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"GRIDCASCADE_CENTRALITY_WORKERS":    "many",
		"GRIDCASCADE_AUTH_ENABLED":          "sometimes",
		"GRIDCASCADE_RISK_SYSTEM_LOAD_MW":   "lots",
		"GRIDCASCADE_TOPOLOGY_SYNC_INTERVAL": "5 minutes",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(envMap(map[string]string{key: value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestApplyEnvList(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(envMap(map[string]string{
		"GRIDCASCADE_CORS_ORIGINS": " https://ops.example.com, ,https://map.example.com ",
		"GRIDCASCADE_AUTH_ENABLED": "true",
	})))
	assert.Equal(t, []string{"https://ops.example.com", "https://map.example.com"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Auth.Enabled)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Topology.Source = "postgres"
	cfg.Topology.DSN = ""
	cfg.Archive.Kind = "s3"
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = "short"
	cfg.Risk.PeakCapacityMW = 0
	cfg.Risk.Timezone = "Mars/Olympus_Mons"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"topology.dsn", "archive.bucket", "auth.secret",
		"risk.peak_capacity_mw", "risk.timezone", "logging.level",
	} {
		assert.True(t, strings.Contains(err.Error(), want), "missing %s in %v", want, err)
	}
}

func TestRiskLoadReader(t *testing.T) {
	r := RiskConfig{SystemLoadMW: 500, PeakCapacityMW: 1000, Timezone: "Australia/Sydney"}
	load, err := r.LoadReader()
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", load.Location.String())

	_, err = RiskConfig{Timezone: "Nowhere/Special"}.LoadReader()
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	assert.Equal(t, logging.DebugLevel, cfg.LogLevel())
}

func TestOpenArchive(t *testing.T) {
	ctx := context.Background()

	none, err := OpenArchive(ctx, ArchiveConfig{Kind: ArchiveNone})
	require.NoError(t, err)
	assert.Nil(t, none)

	file, err := OpenArchive(ctx, ArchiveConfig{Kind: ArchiveFile, Dir: filepath.Join(t.TempDir(), "snapshots")})
	require.NoError(t, err)
	assert.NotNil(t, file)

	_, err = OpenArchive(ctx, ArchiveConfig{Kind: "tape"})
	assert.Error(t, err)
}

func TestTLSValidation(t *testing.T) {
	tests := []struct {
		name    string
		tls     TLSConfig
		wantErr string
	}{
		{"disabled ignores fields", TLSConfig{CertFile: "only-cert.pem"}, ""},
		{"self signed", TLSConfig{Enabled: true, SelfSigned: true}, ""},
		{"files", TLSConfig{Enabled: true, CertFile: "a.crt", KeyFile: "a.key", MinVersion: "1.3"}, ""},
		{"no certificate", TLSConfig{Enabled: true}, "server.tls.cert_file"},
		{"cert without key", TLSConfig{Enabled: true, CertFile: "a.crt"}, "set together"},
		{"bad version", TLSConfig{Enabled: true, SelfSigned: true, MinVersion: "1.0"}, "min_version"},
		{"client cert needs ca", TLSConfig{Enabled: true, SelfSigned: true, RequireClientCert: true}, "client_ca_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.TLS = tt.tls
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTLSEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(envMap(map[string]string{
		"GRIDCASCADE_TLS_ENABLED":     "true",
		"GRIDCASCADE_TLS_SELF_SIGNED": "true",
	})))
	assert.True(t, cfg.Server.TLS.Enabled)
	opts := cfg.Server.TLS.Options()
	assert.True(t, opts.SelfSigned)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, opts.Hosts)
}
