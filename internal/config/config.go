package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pnldash/internal/kpi"
	"pnldash/internal/log"
	"pnldash/internal/sheets"
	"pnldash/internal/table"
)

type Config struct {
	// HTTP Server
	Port             string
	RefreshRateLimit int

	// Logging
	LogLevel  string
	LogFormat string

	// Source
	DataBackend      string
	SourceID         string
	SourceTab        string
	DataDir          string
	CSVExportBaseURL string
	FetchTimeout     time.Duration

	// Cache
	CacheTTL  time.Duration
	CacheSize int

	// Header detection
	HeaderPolicy   string
	HeaderFixedRow int
	HeaderMinCells int

	// KPI layout; cells use A1 notation relative to the raw sheet
	KPISubscribersCell string
	KPIMRRCell         string
	KPIEbitdaCells     string
	KPIEbitdaMode      string
	KPIValueColumn     string

	// Snapshot history
	SQLiteDBPath      string
	SnapshotInterval  time.Duration
	SnapshotRetention time.Duration
	SnapshotTargets   string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSheets = "sheets"
	BackendCSV    = "csv"
	BackendXLSX   = "xlsx"
)

var validBackends = []string{BackendMemory, BackendSheets, BackendCSV, BackendXLSX}

func Load() *Config {
	cfg := &Config{
		Port:             getEnv("PORT", "8081"),
		RefreshRateLimit: getEnvInt("REFRESH_RATE_LIMIT", 6),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:      getEnv("DATA_BACKEND", BackendMemory),
		SourceID:         getEnv("SOURCE_ID", ""),
		SourceTab:        getEnv("SOURCE_TAB", ""),
		DataDir:          getEnv("DATA_DIR", "./data"),
		CSVExportBaseURL: getEnv("CSV_EXPORT_BASE_URL", ""),
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 10*time.Second),

		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 64),

		HeaderPolicy:   getEnv("HEADER_POLICY", string(table.HeaderHeuristic)),
		HeaderFixedRow: getEnvInt("HEADER_FIXED_ROW", 0),
		HeaderMinCells: getEnvInt("HEADER_MIN_CELLS", table.DefaultMinCells),

		KPISubscribersCell: getEnv("KPI_SUBSCRIBERS_CELL", ""),
		KPIMRRCell:         getEnv("KPI_MRR_CELL", ""),
		KPIEbitdaCells:     getEnv("KPI_EBITDA_CELLS", ""),
		KPIEbitdaMode:      getEnv("KPI_EBITDA_MODE", string(kpi.EbitdaRow)),
		KPIValueColumn:     getEnv("KPI_VALUE_COLUMN", ""),

		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", ""),
		SnapshotInterval:  getEnvDuration("SNAPSHOT_INTERVAL", 15*time.Minute),
		SnapshotRetention: getEnvDuration("SNAPSHOT_RETENTION", 0),
		SnapshotTargets:   getEnv("SNAPSHOT_TARGETS", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pnldash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "kpi_refresh"),
	}

	if cfg.SourceID == "" && cfg.DataBackend == BackendMemory {
		cfg.SourceID = "demo"
	}
	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Validate data backend
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.SourceID == "" {
		errors = append(errors, fmt.Sprintf("SOURCE_ID is required for the %s backend", c.DataBackend))
	}
	if c.DataBackend == BackendXLSX && c.SourceID != "" {
		if _, err := os.Stat(c.SourceID); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("workbook does not exist: %s", c.SourceID))
		}
	}
	if c.CSVExportBaseURL != "" {
		if u, err := url.Parse(c.CSVExportBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid CSV export base URL '%s': must be http or https", c.CSVExportBaseURL))
		}
	}
	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	}

	// Validate cache
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}

	// Validate header policy
	if mode, err := table.ParseHeaderMode(c.HeaderPolicy); err != nil {
		errors = append(errors, err.Error())
	} else if mode == table.HeaderFixed && c.HeaderFixedRow < 0 {
		errors = append(errors, fmt.Sprintf("invalid header row %d: must not be negative", c.HeaderFixedRow))
	}
	if c.HeaderMinCells < 1 {
		errors = append(errors, fmt.Sprintf("invalid header min cells %d: must be at least 1", c.HeaderMinCells))
	}

	// Validate KPI layout
	if _, err := c.Layout(); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate SQLite configuration if history is enabled
	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.SnapshotInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at least 1 minute", c.SnapshotInterval))
	} else if c.SnapshotInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at most 24 hours", c.SnapshotInterval))
	}
	if c.SnapshotRetention < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot retention %v: must not be negative", c.SnapshotRetention))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RefreshRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid refresh rate limit %d: must be at least 1", c.RefreshRateLimit))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Policy builds the header detection policy.
func (c *Config) Policy() table.HeaderPolicy {
	mode, err := table.ParseHeaderMode(c.HeaderPolicy)
	if err == nil && mode == table.HeaderFixed {
		return table.FixedPolicy(c.HeaderFixedRow)
	}
	p := table.DefaultPolicy()
	if c.HeaderMinCells > 0 {
		p.MinCells = c.HeaderMinCells
	}
	return p
}

// Layout builds the KPI layout from the configured cells.
func (c *Config) Layout() (kpi.Layout, error) {
	layout := kpi.DefaultLayout()
	layout.ValueColumn = strings.TrimSpace(c.KPIValueColumn)

	mode, err := kpi.ParseEbitdaMode(c.KPIEbitdaMode)
	if err != nil {
		return layout, err
	}
	layout.EbitdaMode = mode

	if s := strings.TrimSpace(c.KPISubscribersCell); s != "" {
		ref, err := kpi.ParseSheetRef(s)
		if err != nil {
			return layout, fmt.Errorf("KPI_SUBSCRIBERS_CELL: %w", err)
		}
		layout.SubscribersCell = &ref
	}
	if s := strings.TrimSpace(c.KPIMRRCell); s != "" {
		ref, err := kpi.ParseSheetRef(s)
		if err != nil {
			return layout, fmt.Errorf("KPI_MRR_CELL: %w", err)
		}
		layout.MRRCell = &ref
	}
	refs, err := kpi.ParseSheetRefs(c.KPIEbitdaCells)
	if err != nil {
		return layout, fmt.Errorf("KPI_EBITDA_CELLS: %w", err)
	}
	layout.EbitdaCells = refs
	if mode == kpi.EbitdaSum && len(refs) == 0 {
		return layout, fmt.Errorf("KPI_EBITDA_CELLS is required when KPI_EBITDA_MODE is %s", kpi.EbitdaSum)
	}
	return layout, nil
}

// Targets lists the source and tab pairs the worker snapshots. Entries are
// "source!tab" or "source"; empty means the configured source.
func (c *Config) Targets() []Target {
	var out []Target
	for _, part := range strings.Split(c.SnapshotTargets, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, tab, _ := strings.Cut(part, "!")
		out = append(out, Target{SourceID: src, SubRange: tab})
	}
	if len(out) == 0 && c.SourceID != "" {
		out = append(out, Target{SourceID: c.SourceID, SubRange: c.SourceTab})
	}
	return out
}

// Target is a source and sub-range pair.
type Target struct {
	SourceID string
	SubRange string
}

// String renders the target the way sheets keys are written.
func (t Target) String() string {
	return sheets.Key(t.SourceID, t.SubRange)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
