package cli

import (
	"context"
	"fmt"

	"pnldash/internal/backend"
	"pnldash/internal/config"
	"pnldash/internal/log"
	"pnldash/internal/services"
	"pnldash/internal/sheets/cached"
)

// Reports bundles the report service with the cache in front of its backend.
type Reports struct {
	Service *services.ReportService
	Cache   *cached.Fetcher
	Cleanup backend.CleanupFunc
}

// BuildReports creates the configured backend, wraps it in the fetch cache
// and returns a report service over it. history may be nil.
func BuildReports(ctx context.Context, cfg *config.Config, history services.SnapshotStore, logger *log.Logger) (*Reports, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}

	fetcher := cached.New(result.Fetcher, cfg.CacheSize, cfg.CacheTTL, logger).WithTimeout(cfg.FetchTimeout)
	reportCfg := services.ReportConfig{Policy: cfg.Policy(), Layout: layout}
	return &Reports{
		Service: services.NewReportService(fetcher, reportCfg, history, logger),
		Cache:   fetcher,
		Cleanup: result.Cleanup,
	}, nil
}

// Close releases backend resources.
func (r *Reports) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// SnapshotTargets converts configured targets for the snapshot processor.
func SnapshotTargets(cfg *config.Config) []services.Target {
	targets := cfg.Targets()
	out := make([]services.Target, len(targets))
	for i, t := range targets {
		out[i] = services.Target{SourceID: t.SourceID, SubRange: t.SubRange}
	}
	return out
}
