// Package sheets exports expenses to a Google Sheets spreadsheet using a
// service account.
package sheets

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

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensebot/internal/core"
	"expensebot/internal/services"
)

const collaborator = "sheets"

// Config locates the spreadsheet and the service account key. The inline
// JSON wins over the file path.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

// Client writes monthly tabs into one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ services.SheetWriter = (*Client)(nil)

// New creates a Sheets client from service account credentials.
// Missing credentials yield a CollaboratorError wrapping
// core.ErrMissingCredentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := readCredentials(cfg)
	if err != nil {
		return nil, &core.CollaboratorError{Collaborator: collaborator, Err: fmt.Errorf("%w: %v", core.ErrMissingCredentials, err)}
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, &core.CollaboratorError{Collaborator: collaborator, Err: fmt.Errorf("create sheets service: %w", err)}
	}
	slog.InfoContext(ctx, "Google Sheets export initialized", "spreadsheet_id", cfg.SpreadsheetID)
	return NewWithService(svc, cfg.SpreadsheetID), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

func readCredentials(cfg Config) ([]byte, error) {
	if v := strings.TrimSpace(cfg.CredentialsJSON); v != "" {
		return []byte(v), nil
	}
	if cfg.CredentialsFile == "" {
		return nil, errors.New("set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE")
	}
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// newHTTPClientWithPooling returns an HTTP client tuned for the Google APIs.
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
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ReplaceSheet creates the tab when missing, clears it and writes rows
// from A1. It returns the range reported by the API.
func (c *Client) ReplaceSheet(ctx context.Context, title string, rows [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	rng := quoteSheet(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", c.fail(fmt.Errorf("clear %s: %w", title, err))
	}

	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng+"!A1", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", c.fail(fmt.Errorf("write %s: %w", title, err))
	}
	return resp.UpdatedRange, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return c.fail(fmt.Errorf("read spreadsheet: %w", err))
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return c.fail(fmt.Errorf("add sheet %s: %w", title, err))
	}
	slog.InfoContext(ctx, "Sheet created", "title", title)
	return nil
}

func (c *Client) fail(err error) error {
	return &core.CollaboratorError{Collaborator: collaborator, Err: err}
}

// quoteSheet wraps a tab title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
