// Command gridcascade-batch runs one centrality batch out of band and writes
// the snapshot to the configured archive, where gridcascade-server restores
// it on start.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/config"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// summary is printed to stdout when the batch succeeds.
type summary struct {
	SnapshotVersion uint64              `json:"snapshot_version"`
	TopologyVersion uint64              `json:"topology_version"`
	Nodes           int                 `json:"nodes"`
	ExactNodes      int                 `json:"exact_nodes"`
	ComponentSize   int                 `json:"component_size"`
	Method          centrality.Method   `json:"method"`
	DurationMS      int64               `json:"duration_ms"`
	Archived        bool                `json:"archived"`
	TopCandidates   []ranking.Candidate `json:"top_candidates,omitempty"`
}

func main() {
	configPath := flag.String("config", os.Getenv("GRIDCASCADE_CONFIG"), "Path to YAML config file (optional)")
	timeout := flag.Duration("timeout", time.Hour, "Abort the batch after this long")
	top := flag.Int("top", 10, "Number of top candidates to include in the summary")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(2)
	}
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	out, err := runBatch(ctx, cfg, logger, *top)
	if err != nil {
		logger.Error("centrality batch failed", logging.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func runBatch(ctx context.Context, cfg config.Config, logger logging.Logger, top int) (*summary, error) {
	source, err := topology.OpenSource(ctx, cfg.Topology.SourceOptions())
	if err != nil {
		return nil, fmt.Errorf("open topology source: %w", err)
	}
	defer source.Close()

	reg := metrics.NewRegistry()
	syncer := topology.NewSyncer(source, topology.WithLogger(logger), topology.WithMetrics(reg))
	if _, err := syncer.Refresh(ctx); err != nil {
		return nil, err
	}

	archive, err := config.OpenArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}

	// Seed the store so the new snapshot continues the archived version
	// sequence.
	store := centrality.NewStore()
	if archive != nil {
		prev, err := archive.LoadLatest(ctx)
		switch {
		case err == nil:
			store.Publish(prev)
		case !errors.Is(err, centrality.ErrNoArchivedSnapshot):
			return nil, fmt.Errorf("read archive: %w", err)
		}
	}

	scheduler := centrality.NewScheduler(
		centrality.NewEngine(cfg.Centrality.EngineOptions(), logger),
		store, syncer,
		centrality.WithMetrics(reg),
		centrality.WithLogger(logger),
	)
	snap, err := scheduler.RunOnce(ctx)
	if err != nil {
		return nil, err
	}

	out := &summary{
		SnapshotVersion: snap.Version,
		TopologyVersion: snap.TopologyVersion,
		Nodes:           snap.Len(),
		ExactNodes:      snap.ExactCount(),
		ComponentSize:   snap.ComponentSize,
		Method:          snap.Method,
		DurationMS:      snap.Duration.Milliseconds(),
	}

	if archive != nil {
		if err := archive.Save(ctx, snap); err != nil {
			return nil, fmt.Errorf("archive snapshot: %w", err)
		}
		out.Archived = true
	}

	if top > 0 {
		ranked, err := ranking.NewRanker().RankPatientZeroCandidates(syncer.Current(), snap, top, false)
		if err != nil {
			return nil, err
		}
		out.TopCandidates = ranked.Candidates
	}
	return out, nil
}
