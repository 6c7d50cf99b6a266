package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to every override variable.
const EnvPrefix = "GRIDCASCADE_"

type lookupFunc func(string) (string, bool)

// applyEnv overlays GRIDCASCADE_* variables. Malformed values are errors
// rather than silently ignored.
func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.setString("ADDR", &c.Server.Addr)
	e.setDuration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	e.setDuration("REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	e.setInt64("MAX_BODY_BYTES", &c.Server.MaxBodyBytes)
	e.setList("CORS_ORIGINS", &c.Server.CORSOrigins)
	e.setBool("TLS_ENABLED", &c.Server.TLS.Enabled)
	e.setString("TLS_CERT_FILE", &c.Server.TLS.CertFile)
	e.setString("TLS_KEY_FILE", &c.Server.TLS.KeyFile)
	e.setString("TLS_CLIENT_CA_FILE", &c.Server.TLS.ClientCAFile)
	e.setBool("TLS_SELF_SIGNED", &c.Server.TLS.SelfSigned)

	e.setString("TOPOLOGY_SOURCE", &c.Topology.Source)
	e.setString("TOPOLOGY_PATH", &c.Topology.Path)
	e.setString("TOPOLOGY_DSN", &c.Topology.DSN)
	e.setString("TOPOLOGY_USERNAME", &c.Topology.Username)
	e.setString("TOPOLOGY_PASSWORD", &c.Topology.Password)
	e.setString("TOPOLOGY_DATABASE", &c.Topology.Database)
	e.setDuration("TOPOLOGY_SYNC_INTERVAL", &c.Topology.SyncInterval)

	e.setDuration("CENTRALITY_BATCH_INTERVAL", &c.Centrality.BatchInterval)
	e.setDuration("CENTRALITY_MAX_SNAPSHOT_AGE", &c.Centrality.MaxSnapshotAge)
	e.setInt("CENTRALITY_EXACT_LIMIT", &c.Centrality.ExactBetweennessLimit)
	e.setInt("CENTRALITY_SAMPLE_SOURCES", &c.Centrality.SampleSources)
	e.setInt("CENTRALITY_WORKERS", &c.Centrality.Workers)

	e.setString("ARCHIVE_KIND", &c.Archive.Kind)
	e.setString("ARCHIVE_DIR", &c.Archive.Dir)
	e.setString("ARCHIVE_BUCKET", &c.Archive.Bucket)
	e.setString("ARCHIVE_PREFIX", &c.Archive.Prefix)
	e.setString("ARCHIVE_REGION", &c.Archive.Region)
	e.setString("ARCHIVE_ENDPOINT", &c.Archive.Endpoint)
	e.setString("ARCHIVE_ACCESS_KEY_ID", &c.Archive.AccessKeyID)
	e.setString("ARCHIVE_SECRET_ACCESS_KEY", &c.Archive.SecretAccessKey)

	e.setBool("AUTH_ENABLED", &c.Auth.Enabled)
	e.setString("JWT_SECRET", &c.Auth.Secret)
	e.setString("JWT_ISSUER", &c.Auth.Issuer)

	e.setFloat("RISK_SYSTEM_LOAD_MW", &c.Risk.SystemLoadMW)
	e.setFloat("RISK_PEAK_CAPACITY_MW", &c.Risk.PeakCapacityMW)
	e.setString("RISK_TIMEZONE", &c.Risk.Timezone)

	e.setString("LOG_LEVEL", &c.Logging.Level)

	return e.err
}

type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key, v string, err error) {
	e.err = fmt.Errorf("%s%s=%q: %w", EnvPrefix, key, v, err)
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	out := make([]string, 0)
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
