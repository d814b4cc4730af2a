// Package rest implements the cashapi ports against the central cash service.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cashdesk/internal/cashapi"
	"cashdesk/internal/core"
)

// Session carries the per-page-session state for talking to the service.
// It is created once at startup and passed in explicitly; nothing here is
// global.
type Session struct {
	// BaseURL of the cash service, without a trailing slash.
	BaseURL string
	// Token is sent as a bearer credential when non-empty.
	Token string
	// HTTPClient defaults to http.DefaultClient. Requests carry no client
	// timeout: an in-flight call settles or is cancelled via its context,
	// matching the service's last-writer-wins consistency model.
	HTTPClient *http.Client
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

// Compile-time port conformance.
var (
	_ cashapi.RowService      = (*Client)(nil)
	_ cashapi.PayoutService   = (*Client)(nil)
	_ cashapi.CreditRegistrar = (*Client)(nil)
)

func New(s Session) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("rest: missing base URL")
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: base, token: s.Token, http: hc}, nil
}

// ListRows implements cashapi.RowLister.
func (c *Client) ListRows(ctx context.Context) ([]core.LedgerRow, error) {
	var rows []core.LedgerRow
	if err := c.call(ctx, "list rows", http.MethodGet, "/cash/rows", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateRow implements cashapi.RowCreator. The service assigns id and
// creation time; the body is the all-zero row the table starts from.
func (c *Client) CreateRow(ctx context.Context) (core.LedgerRow, error) {
	body := map[string]any{
		"client_name": "",
		"application": 0,
		"state_duty":  0,
		"dkp":         0,
		"insurance":   0,
		"plates":      0,
		"total":       0,
	}
	var row core.LedgerRow
	if err := c.call(ctx, "create row", http.MethodPost, "/cash/rows", body, &row); err != nil {
		return core.LedgerRow{}, err
	}
	return row, nil
}

// UpdateRow implements cashapi.RowUpdater.
func (c *Client) UpdateRow(ctx context.Context, id int64, patch core.RowPatch) (core.LedgerRow, error) {
	var row core.LedgerRow
	path := fmt.Sprintf("/cash/rows/%d", id)
	if err := c.call(ctx, "update row", http.MethodPatch, path, patch, &row); err != nil {
		return core.LedgerRow{}, err
	}
	return row, nil
}

// DeleteRow implements cashapi.RowDeleter.
func (c *Client) DeleteRow(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/cash/rows/%d", id)
	return c.call(ctx, "delete row", http.MethodDelete, path, nil, nil)
}

// ListUnpaidCredits implements cashapi.PayoutReader.
func (c *Client) ListUnpaidCredits(ctx context.Context) (core.PayoutPreview, error) {
	var preview core.PayoutPreview
	if err := c.call(ctx, "list credits", http.MethodGet, "/cash/plate-payouts", nil, &preview); err != nil {
		return core.PayoutPreview{}, err
	}
	return preview, nil
}

// PayAllCredits implements cashapi.PayoutPayer.
func (c *Client) PayAllCredits(ctx context.Context) (core.PayoutResult, error) {
	var result core.PayoutResult
	if err := c.call(ctx, "pay credits", http.MethodPost, "/cash/plate-payouts/pay", nil, &result); err != nil {
		return core.PayoutResult{}, err
	}
	return result, nil
}

// RegisterCredit implements cashapi.CreditRegistrar.
func (c *Client) RegisterCredit(ctx context.Context, credit core.PlateCredit) (core.PlateCredit, error) {
	var created core.PlateCredit
	if err := c.call(ctx, "register credit", http.MethodPost, "/cash/plate-credits", credit, &created); err != nil {
		return core.PlateCredit{}, err
	}
	return created, nil
}

// call performs one round trip and classifies every failure mode: transport
// errors as network, non-2xx statuses as server (with the service's detail
// message when the body provides one), and undecodable success bodies as
// malformed-response.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &cashapi.Error{Kind: cashapi.KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &cashapi.Error{
			Kind:   cashapi.KindServer,
			Op:     op,
			Status: resp.StatusCode,
			Detail: errorDetail(resp.Body),
		}
		if resp.StatusCode == http.StatusNotFound {
			apiErr.Err = cashapi.ErrNotFound
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &cashapi.Error{Kind: cashapi.KindMalformed, Op: op, Err: err}
	}
	return nil
}

// errorDetail pulls the {"detail": "..."} message the service attaches to
// failures. A body that is not that shape just yields an empty detail.
func errorDetail(r io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Detail
}
