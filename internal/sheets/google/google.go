package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

// defaultRange covers the first visible tab when no sub-range is given.
const defaultRange = "A1:ZZ"

// Client reads ranges through the Sheets API v4.
type Client struct {
	svc *gsheet.Service
}

// Ensure interface conformance
var _ ports.TableFetcher = (*Client)(nil)

// New wraps an existing service.
func New(svc *gsheet.Service) *Client {
	return &Client{svc: svc}
}

// NewFromEnv creates a read-only Sheets client from service account
// credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func NewFromEnv(ctx context.Context) (*Client, error) {
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "scope", gsheet.SpreadsheetsReadonlyScope)
	return New(svc), nil
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials", "size", len(inline))
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account file", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// NewHTTPClient returns a pooled client suitable for option.WithHTTPClient.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Fetch reads subRange (a tab name, "Tab!A1:F80" or a bare A1 range) from the
// spreadsheet sourceID using formatted values, so cells arrive as a person
// sees them in the sheet.
func (c *Client) Fetch(ctx context.Context, sourceID, subRange string) (table.Raw, error) {
	if c.svc == nil {
		return nil, fmt.Errorf("%w: sheets service not initialized", ports.ErrSourceUnavailable)
	}
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil, fmt.Errorf("%w: empty spreadsheet id", ports.ErrRangeNotFound)
	}
	rng := strings.TrimSpace(subRange)
	if rng == "" {
		rng = defaultRange
	}

	resp, err := c.svc.Spreadsheets.Values.Get(sourceID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, classify(rng, err)
	}
	return toRaw(resp.Values), nil
}

// classify maps API errors onto the fetcher error taxonomy.
func classify(rng string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: read %s: %v", ports.ErrRangeNotFound, rng, err)
		case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "unable to parse range"):
			return fmt.Errorf("%w: read %s: %v", ports.ErrRangeNotFound, rng, err)
		}
	}
	return fmt.Errorf("%w: read %s: %v", ports.ErrSourceUnavailable, rng, err)
}

func toRaw(values [][]interface{}) table.Raw {
	out := make(table.Raw, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
