// Package csvexport fetches tabs through a spreadsheet's published CSV export.
package csvexport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

// DefaultBaseURL is the Google Sheets document root.
const DefaultBaseURL = "https://docs.google.com/spreadsheets/d"

// defaultMaxBody bounds the size of an export we are willing to read.
const defaultMaxBody = 32 << 20

// Client downloads <base>/<sourceID>/export?format=csv[&sheet=<tab>].
type Client struct {
	base    string
	http    *http.Client
	maxBody int64
}

var _ ports.TableFetcher = (*Client)(nil)

// New creates an export client. A nil httpClient gets a default with the
// given timeout.
func New(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{base: baseURL, http: httpClient, maxBody: defaultMaxBody}
}

// BaseURL is the document root exports are fetched from.
func (c *Client) BaseURL() string { return c.base }

// ExportURL builds the download URL for a source and optional tab.
func (c *Client) ExportURL(sourceID, subRange string) string {
	q := url.Values{}
	q.Set("format", "csv")
	if tab := strings.TrimSpace(subRange); tab != "" {
		q.Set("sheet", tab)
	}
	return c.base + "/" + url.PathEscape(strings.TrimSpace(sourceID)) + "/export?" + q.Encode()
}

// Fetch downloads and parses the export.
func (c *Client) Fetch(ctx context.Context, sourceID, subRange string) (table.Raw, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, fmt.Errorf("%w: empty source id", ports.ErrRangeNotFound)
	}
	u := c.ExportURL(sourceID, subRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ports.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get export: %v", ports.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: export %s returned %d", ports.ErrRangeNotFound, sourceID, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: export %s returned %d", ports.ErrSourceUnavailable, sourceID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read export: %v", ports.ErrSourceUnavailable, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: export %s exceeds %d bytes", ports.ErrSourceUnavailable, sourceID, c.maxBody)
	}

	raw, err := table.ReadCSV(decodeBody(bytes.NewReader(body), resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrSourceUnavailable, err)
	}
	return raw, nil
}

// decodeBody converts single-byte encodings declared in the content type to
// UTF-8. Anything else is passed through.
func decodeBody(r io.Reader, contentType string) io.Reader {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r
	}
	switch strings.ToLower(params["charset"]) {
	case "iso-8859-1", "latin1", "latin-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder())
	default:
		return r
	}
}
