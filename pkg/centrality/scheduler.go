package centrality

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/pubsub"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// TopicSnapshot is published on the bus after every successful batch.
const TopicSnapshot = "centrality.snapshot"

// DefaultBatchInterval is used when no interval is configured.
const DefaultBatchInterval = 15 * time.Minute

// GraphProvider supplies the graph a batch runs over. *topology.Syncer
// satisfies it.
type GraphProvider interface {
	Current() *topology.Graph
}

// SnapshotEvent is the payload published on TopicSnapshot.
type SnapshotEvent struct {
	Version         uint64
	TopologyVersion uint64
	Nodes           int
	ComponentSize   int
	Method          Method
	Duration        time.Duration
}

// Status describes the scheduler's recent activity.
type Status struct {
	Running         bool          `json:"running"`
	Runs            uint64        `json:"runs"`
	Failures        uint64        `json:"failures"`
	LastStarted     time.Time     `json:"last_started,omitempty"`
	LastFinished    time.Time     `json:"last_finished,omitempty"`
	LastDuration    time.Duration `json:"last_duration_ns"`
	LastError       string        `json:"last_error,omitempty"`
	SnapshotVersion uint64        `json:"snapshot_version"`
	SnapshotAge     time.Duration `json:"snapshot_age_ns"`
}

// Scheduler runs the centrality batch out of band. Batches never overlap;
// triggers that arrive while one is running collapse into a single follow-up.
type Scheduler struct {
	store    *Store
	graphs   GraphProvider
	interval time.Duration
	bus      *pubsub.PubSub
	archive  Archive
	metrics  *metrics.Registry
	logger   logging.Logger

	compute func(context.Context, *topology.Graph) (*Snapshot, error)
	trigger chan struct{}
	batch   sync.Mutex

	mu     sync.Mutex
	status Status
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the periodic batch interval.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBus subscribes to topology updates and publishes snapshot events.
func WithBus(bus *pubsub.PubSub) SchedulerOption {
	return func(s *Scheduler) { s.bus = bus }
}

// WithArchive saves every published snapshot.
func WithArchive(a Archive) SchedulerOption {
	return func(s *Scheduler) { s.archive = a }
}

// WithMetrics records batch outcomes.
func WithMetrics(reg *metrics.Registry) SchedulerOption {
	return func(s *Scheduler) { s.metrics = reg }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates a Scheduler. Call Run to start it.
func NewScheduler(engine *Engine, store *Store, graphs GraphProvider, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:    store,
		graphs:   graphs,
		interval: DefaultBatchInterval,
		logger:   logging.NewNopLogger(),
		trigger:  make(chan struct{}, 1),
	}
	s.compute = engine.Compute
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Component("scheduler"))
	return s
}

// Trigger requests a batch. It never blocks; if one is already pending the
// request is merged into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Status returns a copy of the current status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()

	if snap := s.store.Current(); snap != nil {
		st.SnapshotVersion = snap.Version
		st.SnapshotAge = snap.Age(time.Now())
	}
	return st
}

// Restore seeds the store from the archive. A missing archive is not an error.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	snap, err := s.archive.LoadLatest(ctx)
	if errors.Is(err, ErrNoArchivedSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	version := s.store.Publish(snap)
	s.logger.Info("snapshot restored from archive",
		logging.SnapshotVersion(version),
		logging.TopologyVersion(snap.TopologyVersion),
		logging.Int("nodes", snap.Len()),
	)
	return nil
}

// Run executes a batch immediately and then on every interval tick, topology
// update and Trigger call until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.bus != nil {
		sub, err := s.bus.Subscribe(ctx, topology.TopicUpdated)
		if err != nil {
			return fmt.Errorf("subscribe to topology updates: %w", err)
		}
		go func() {
			for range sub.Channel() {
				s.Trigger()
			}
		}()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Trigger()
		case <-s.trigger:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("centrality batch failed, keeping previous snapshot", logging.Error(err))
			}
		}
	}
}

// RunOnce computes and publishes one snapshot. On failure the store is left
// untouched.
func (s *Scheduler) RunOnce(ctx context.Context) (snap *Snapshot, err error) {
	g := s.graphs.Current()
	if g == nil {
		return nil, topology.ErrNoTopology
	}

	s.batch.Lock()
	defer s.batch.Unlock()

	start := time.Now()
	s.mu.Lock()
	s.status.Running = true
	s.status.LastStarted = start
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("centrality batch panicked: %v", r)
		}
		s.finish(start, err)
	}()

	snap, err = s.compute(ctx, g)
	if err != nil {
		return nil, err
	}

	version := s.store.Publish(snap)

	if s.metrics != nil {
		s.metrics.RecordSnapshot(version, snap.ExactCount(), snap.ComponentSize)
	}

	if s.archive != nil {
		if aerr := s.archive.Save(ctx, snap); aerr != nil {
			s.logger.Warn("snapshot archive failed", logging.SnapshotVersion(version), logging.Error(aerr))
		}
	}

	if s.bus != nil {
		s.bus.Publish(TopicSnapshot, SnapshotEvent{
			Version:         version,
			TopologyVersion: snap.TopologyVersion,
			Nodes:           snap.Len(),
			ComponentSize:   snap.ComponentSize,
			Method:          snap.Method,
			Duration:        snap.Duration,
		})
	}

	s.logger.Info("snapshot published",
		logging.SnapshotVersion(version),
		logging.TopologyVersion(snap.TopologyVersion),
		logging.Int("exact_nodes", snap.ExactCount()),
		logging.Latency(time.Since(start)),
	)
	return snap, nil
}

func (s *Scheduler) finish(start time.Time, err error) {
	d := time.Since(start)

	s.mu.Lock()
	s.status.Running = false
	s.status.Runs++
	s.status.LastFinished = time.Now()
	s.status.LastDuration = d
	s.status.LastError = ""
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.RecordCentralityBatch(status, d)
	}
}
