package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	ports "fintrack/internal/sheets"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.Exporter = (*Client)(nil)

type Config struct {
	SpreadsheetID          string
	SheetName              string
	ServiceAccountJSON     string
	ServiceAccountFile     string
	ApplicationCredentials string // GOOGLE_APPLICATION_CREDENTIALS fallback
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// New creates a Sheets exporter authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	hc, err := authorizedClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg.SpreadsheetID, cfg.SheetName, goption.WithHTTPClient(hc))
}

// authorizedClient layers service-account token refresh over the pooled transport.
func authorizedClient(ctx context.Context, creds []byte) (*http.Client, error) {
	gc, err := googleoauth.CredentialsFromJSON(ctx, creds, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	base := newHTTPClientWithPooling()
	hc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), gc.TokenSource)
	hc.Timeout = base.Timeout
	return hc, nil
}

// NewWithOptions builds a client from explicit API options (tests point it at a fake endpoint).
func NewWithOptions(ctx context.Context, spreadsheetID, sheet string, opts ...goption.ClientOption) (*Client, error) {
	if sheet == "" {
		sheet = "Transactions"
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(cfg.ApplicationCredentials)
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between exports.
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

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:I1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Sheet header written", "sheet", c.sheet)
	return nil
}

// Export appends r below the last row and returns the updated A1 range.
func (c *Client) Export(ctx context.Context, r ports.Row) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if r.TransactionID <= 0 {
		return "", errors.New("export row: missing transaction id")
	}

	rng := fmt.Sprintf("%s!A:I", c.sheet)
	vr := &gsheet.ValueRange{Values: [][]any{r.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Transaction exported to sheet",
		"transaction_id", r.TransactionID,
		"range", ref)
	return ref, nil
}

// Exported scans the ID column for transactionID.
func (c *Client) Exported(ctx context.Context, transactionID int64) (bool, error) {
	if c.svc == nil {
		return false, errors.New("sheets service not initialized")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return false, err
	}
	_, ok := ids[transactionID]
	return ok, nil
}

func (c *Client) readIDs(ctx context.Context) (map[int64]struct{}, error) {
	rng := fmt.Sprintf("%s!A2:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseIDColumn(resp.Values), nil
}

// parseIDColumn ignores blank, commented and non-numeric cells.
func parseIDColumn(values [][]any) map[int64]struct{} {
	out := make(map[int64]struct{}, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
