package services

import (
	"context"
	"fmt"

	"pnldash/internal/amqp"
	"pnldash/internal/log"
)

// RefreshPublisher announces refresh requests to other processes.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, sourceID, subRange string) error
}

// RefreshService drops cached data, rebuilds a report and tells other
// processes to do the same.
type RefreshService struct {
	reports   *ReportService
	publisher RefreshPublisher
	logger    *log.Logger
}

// NewRefreshService creates the service. publisher may be nil.
func NewRefreshService(reports *ReportService, publisher RefreshPublisher, logger *log.Logger) *RefreshService {
	if logger == nil {
		logger = log.Discard()
	}
	return &RefreshService{reports: reports, publisher: publisher, logger: logger.WithComponent(log.ComponentReport)}
}

// Refresh invalidates the local cache, rebuilds the report and publishes a
// refresh event. A failed publish is logged but does not fail the refresh.
func (s *RefreshService) Refresh(ctx context.Context, sourceID, subRange string) (*Report, error) {
	s.reports.Invalidate(sourceID, subRange)

	r, err := s.reports.Build(ctx, sourceID, subRange)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No refresh publisher configured, skipping event")
		return r, nil
	}
	if err := s.publisher.PublishRefresh(ctx, sourceID, subRange); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish refresh event",
			log.FieldSourceID, sourceID, log.FieldSubRange, subRange, log.FieldError, err)
	}
	return r, nil
}

// HandleRefresh processes a refresh event from another process.
func (s *RefreshService) HandleRefresh(ctx context.Context, msg *amqp.RefreshMessage) error {
	s.reports.Invalidate(msg.SourceID, msg.SubRange)
	r, err := s.reports.Build(ctx, msg.SourceID, msg.SubRange)
	if err != nil {
		if IsStructuralError(err) {
			// Retrying cannot fix a sheet without a header.
			s.logger.WarnContext(ctx, "Refresh skipped, sheet not usable",
				log.FieldSourceID, msg.SourceID, log.FieldError, err)
			return nil
		}
		return err
	}
	s.logger.InfoContext(ctx, "Refresh processed",
		"id", msg.ID,
		log.FieldSourceID, msg.SourceID,
		log.FieldSubRange, msg.SubRange,
		log.FieldRows, r.Table.NumRows(),
		log.FieldWarnings, len(r.KPIs.Warnings))
	return nil
}
