package backend

import (
	"context"
	"time"

	"pnldash/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the fetcher and optional cleanup function
type BackendResult struct {
	Fetcher sheets.TableFetcher
	Cleanup CleanupFunc
}

// Factory creates table fetchers based on configuration
type Factory interface {
	// CreateBackend creates a fetcher for the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// CSV export specific
	CSVExportBaseURL string
	FetchTimeout     time.Duration

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
	CSVBackend    BackendType = "csv"
	XLSXBackend   BackendType = "xlsx"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, CSVBackend, XLSXBackend:
		return true
	default:
		return false
	}
}
