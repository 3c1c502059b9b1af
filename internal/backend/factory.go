package backend

import (
	"context"
	"fmt"

	"pnldash/internal/log"
	"pnldash/internal/sheets/csvexport"
	gsheet "pnldash/internal/sheets/google"
	"pnldash/internal/sheets/memory"
	"pnldash/internal/sheets/xlsx"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case CSVBackend:
		return f.createCSVBackend(config)
	case XLSXBackend:
		return f.createXLSXBackend()
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend")

	return &BackendResult{Fetcher: cli}, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	cli := csvexport.New(config.CSVExportBaseURL, nil, config.FetchTimeout)

	f.logger.Info("Initialized CSV export backend", "base_url", cli.BaseURL(), "timeout", config.FetchTimeout.String())

	return &BackendResult{Fetcher: cli}, nil
}

func (f *DefaultFactory) createXLSXBackend() (*BackendResult, error) {
	f.logger.Info("Initialized XLSX workbook backend")

	return &BackendResult{Fetcher: xlsx.Reader{}}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromDir(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir, "tables", store.Len())

	return &BackendResult{Fetcher: store}, nil
}
