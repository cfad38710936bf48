package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilant/internal/export"
	"bilant/internal/log"
	ports "bilant/internal/sheets"
)

// Client pushes export tables into tabs of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabPrefix     string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ ports.TableWriter = (*Client)(nil)
	_ ports.TableReader = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to reach it.
// ServiceAccountJSON wins over ServiceAccountFile; with neither set,
// GOOGLE_APPLICATION_CREDENTIALS is used.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	// TabPrefix is prepended to every tab name, e.g. "2025 ".
	TabPrefix string
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.TabPrefix, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, tabPrefix string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tabPrefix:     tabPrefix,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.ServiceAccountJSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(cfg.ServiceAccountFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// newHTTPClientWithPooling returns an HTTP client with connection pooling
// and bounded timeouts for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) tabName(tab string) string {
	return strings.TrimSpace(c.tabPrefix + tab)
}

// a1 quotes a tab name for use in an A1 range.
func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

func toValues(t export.Table) [][]any {
	records := t.Records()
	out := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		out[i] = row
	}
	return out
}

// WriteTable creates the tab if needed, clears it and writes the table
// from A1. Cells are USER_ENTERED so numbers stay numbers.
func (c *Client) WriteTable(ctx context.Context, tab string, t export.Table) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	name := c.tabName(tab)
	if name == "" {
		return "", errors.New("empty tab name")
	}

	if err := c.ensureTab(ctx, name); err != nil {
		return "", err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(name, "A:Z"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", name, err)
	}

	vr := &gsheet.ValueRange{Values: toValues(t)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(name, "A1"), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", name, err)
	}

	c.logger.InfoContext(ctx, "Pushed table to sheet", "tab", name, log.FieldRows, len(t.Rows), log.FieldOperation, log.OpExport)
	return resp.UpdatedRange, nil
}

func (c *Client) ensureTab(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	c.logger.DebugContext(ctx, "Created sheet tab", "tab", name)
	return nil
}

// ReadTable returns the formatted cell values of a tab.
func (c *Client) ReadTable(ctx context.Context, tab string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := a1(c.tabName(tab), "A:Z")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		out = append(out, toStrings(row))
	}
	return out, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
