package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/pubsub"
)

// TopicUpdated is published on the bus whenever a new graph version goes live.
const TopicUpdated = "topology.updated"

// DefaultSyncInterval is used when no interval is configured.
const DefaultSyncInterval = 5 * time.Minute

// ErrNoTopology is returned by consumers when no graph has been loaded yet.
var ErrNoTopology = errors.New("no topology loaded")

// UpdateEvent is the payload published on TopicUpdated.
type UpdateEvent struct {
	Version   uint64
	Checksum  uint64
	Nodes     int
	Edges     int
	Discarded int
	LoadedAt  time.Time
}

// Syncer periodically reloads the topology from a Source and publishes an
// immutable Graph. Readers call Current and never block on a refresh.
type Syncer struct {
	source   Source
	interval time.Duration
	bus      *pubsub.PubSub
	logger   logging.Logger
	metrics  *metrics.Registry

	current atomic.Pointer[Graph]
	version atomic.Uint64
	refresh sync.Mutex
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithSyncInterval sets the refresh period used by Run.
func WithSyncInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBus publishes update events on bus.
func WithBus(bus *pubsub.PubSub) SyncerOption {
	return func(s *Syncer) { s.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = logger }
}

// WithMetrics records sync outcomes in reg.
func WithMetrics(reg *metrics.Registry) SyncerOption {
	return func(s *Syncer) { s.metrics = reg }
}

// NewSyncer creates a Syncer over source. Nothing is loaded until Refresh or
// Run is called.
func NewSyncer(source Source, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		source:   source,
		interval: DefaultSyncInterval,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Component("topology"))
	return s
}

// Current returns the published graph, or nil before the first successful load.
func (s *Syncer) Current() *Graph {
	return s.current.Load()
}

// Refresh loads the source once. A new version is published only when the
// content checksum differs from the current graph. On error the current graph
// is left untouched.
func (s *Syncer) Refresh(ctx context.Context) (bool, error) {
	s.refresh.Lock()
	defer s.refresh.Unlock()

	start := time.Now()

	nodes, edges, err := s.source.Load(ctx)
	if err != nil {
		s.recordSync("error", time.Since(start), nil)
		return false, fmt.Errorf("load topology: %w", err)
	}

	nodes, edges, discarded := sanitize(nodes, edges)
	g := Build(nodes, edges)

	if prev := s.current.Load(); prev != nil && prev.Checksum() == g.Checksum() {
		s.recordSync("unchanged", time.Since(start), prev)
		s.logger.Debug("topology unchanged", logging.TopologyVersion(prev.Version()))
		return false, nil
	}

	version := s.version.Add(1)
	g = g.Stamp(version, time.Now())
	s.current.Store(g)
	s.recordSync("success", time.Since(start), g)

	s.logger.Info("topology published",
		logging.TopologyVersion(version),
		logging.Int("nodes", g.Len()),
		logging.Int("edges", g.EdgeCount()),
		logging.Int("dropped_edges", g.DroppedEdges()),
		logging.Int("discarded_records", discarded),
		logging.Latency(time.Since(start)),
	)

	if s.bus != nil {
		s.bus.Publish(TopicUpdated, UpdateEvent{
			Version:   version,
			Checksum:  g.Checksum(),
			Nodes:     g.Len(),
			Edges:     g.EdgeCount(),
			Discarded: discarded,
			LoadedAt:  g.LoadedAt(),
		})
	}

	return true, nil
}

// Run refreshes immediately and then on every interval tick until ctx is
// cancelled. Load failures are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("initial topology load failed", logging.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("topology refresh failed, keeping previous graph", logging.Error(err))
			}
		}
	}
}

func (s *Syncer) recordSync(status string, d time.Duration, g *Graph) {
	if s.metrics == nil {
		return
	}
	if g == nil {
		s.metrics.RecordTopologySync(status, d, 0, 0, 0, 0)
		return
	}
	s.metrics.RecordTopologySync(status, d, g.Len(), g.EdgeCount(), g.DroppedEdges(), g.Version())
}
