package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pnldash/internal/log"
)

// Target is one source and sub-range to keep snapshotted.
type Target struct {
	SourceID string
	SubRange string
}

// Pruner deletes old snapshots.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotProcessorConfig holds configuration for the snapshot processor.
type SnapshotProcessorConfig struct {
	// Interval between snapshot rounds (default: 15m)
	Interval time.Duration

	// Concurrency bounds parallel fetches per round (default: 4)
	Concurrency int

	// RetainFor is how long snapshots are kept; zero keeps them forever
	RetainFor time.Duration

	// CleanupInterval is how often old snapshots are pruned (default: 1h)
	CleanupInterval time.Duration
}

// DefaultSnapshotProcessorConfig returns sensible defaults.
func DefaultSnapshotProcessorConfig() SnapshotProcessorConfig {
	return SnapshotProcessorConfig{
		Interval:        15 * time.Minute,
		Concurrency:     4,
		CleanupInterval: time.Hour,
	}
}

// SnapshotProcessor periodically rebuilds reports for a set of targets so
// every round lands in the history store.
type SnapshotProcessor struct {
	reports *ReportService
	targets []Target
	pruner  Pruner
	config  SnapshotProcessorConfig
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSnapshotProcessor creates a processor. pruner may be nil.
func NewSnapshotProcessor(reports *ReportService, targets []Target, pruner Pruner, config SnapshotProcessorConfig, logger *log.Logger) *SnapshotProcessor {
	def := DefaultSnapshotProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotProcessor{
		reports: reports,
		targets: targets,
		pruner:  pruner,
		config:  config,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the loop. Returns an error if already running.
func (p *SnapshotProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Snapshot processor started",
		"interval", p.config.Interval.String(),
		"targets", len(p.targets))
	return nil
}

// Stop signals the loop and waits for the current round to finish.
func (p *SnapshotProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Snapshot processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Snapshot processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active.
func (p *SnapshotProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SnapshotProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(p.config.CleanupInterval)
	defer cleanup.Stop()

	_ = p.RunOnce(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.RunOnce(ctx)
		case <-cleanup.C:
			p.prune(ctx)
		}
	}
}

// RunOnce rebuilds every target, bypassing caches, with bounded
// concurrency. Individual failures are logged; the first one is returned
// after all targets ran.
func (p *SnapshotProcessor) RunOnce(ctx context.Context) error {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		firstEr error
	)
	g.SetLimit(p.config.Concurrency)
	for _, tgt := range p.targets {
		g.Go(func() error {
			p.reports.Invalidate(tgt.SourceID, tgt.SubRange)
			if _, err := p.reports.Build(ctx, tgt.SourceID, tgt.SubRange); err != nil {
				p.logger.ErrorContext(ctx, "Snapshot round failed for target",
					log.FieldSourceID, tgt.SourceID, log.FieldSubRange, tgt.SubRange, log.FieldError, err)
				mu.Lock()
				if firstEr == nil {
					firstEr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return firstEr
}

func (p *SnapshotProcessor) prune(ctx context.Context) {
	if p.pruner == nil || p.config.RetainFor <= 0 {
		return
	}
	n, err := p.pruner.PruneBefore(ctx, time.Now().Add(-p.config.RetainFor))
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to prune snapshots", log.FieldError, err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Pruned old snapshots", "count", n)
	}
}
