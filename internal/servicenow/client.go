// Package servicenow is a minimal client for the ServiceNow Table API.
package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Tables written by the provisioning flow.
const (
	TableAccount      = "customer_account"
	TableContact      = "customer_contact"
	TableLocation     = "cmn_location"
	TableRelationship = "account_address_relationship"
)

// ErrMissingSysID is returned when a create call succeeds but yields no identifier.
var ErrMissingSysID = errors.New("servicenow: response missing sys_id")

// Client talks to one ServiceNow instance using basic auth.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client for the instance at base.
func New(base, username, password string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	if trimmed == "" {
		return nil, errors.New("servicenow: base url required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid servicenow url: %w", err)
	}
	cli := &Client{
		baseURL:    trimmed,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents a non-2xx response from ServiceNow.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("servicenow request failed with status %d", e.Status)
	}
	return fmt.Sprintf("servicenow request failed (%d): %s", e.Status, e.Message)
}

// Record is a loosely typed table row.
type Record map[string]any

// SysID returns the record identifier, or "" when absent.
func (r Record) SysID() string {
	if v, ok := r["sys_id"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Create inserts a row into table and returns its sys_id.
func (c *Client) Create(ctx context.Context, table string, fields any) (string, error) {
	var resp struct {
		Result Record `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, c.tablePath(table, ""), nil, fields, &resp); err != nil {
		return "", err
	}
	id := resp.Result.SysID()
	if id == "" {
		return "", ErrMissingSysID
	}
	return id, nil
}

// Query returns rows of table matching an encoded sysparm_query.
func (c *Client) Query(ctx context.Context, table, query string, limit int, fields ...string) ([]Record, error) {
	params := url.Values{}
	params.Set("sysparm_query", query)
	if limit > 0 {
		params.Set("sysparm_limit", strconv.Itoa(limit))
	}
	if len(fields) > 0 {
		params.Set("sysparm_fields", strings.Join(fields, ","))
	}
	var resp struct {
		Result []Record `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, c.tablePath(table, ""), params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Delete removes the row sysID from table.
func (c *Client) Delete(ctx context.Context, table, sysID string) error {
	if strings.TrimSpace(sysID) == "" {
		return errors.New("servicenow: sys_id required")
	}
	return c.do(ctx, http.MethodDelete, c.tablePath(table, sysID), nil, nil, nil)
}

// ContactExists reports whether a contact with exactly this email is on record.
func (c *Client) ContactExists(ctx context.Context, email string) (bool, error) {
	rows, err := c.Query(ctx, TableContact, "email="+email, 1, "sys_id")
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (c *Client) tablePath(table, sysID string) string {
	path := "/api/now/table/" + url.PathEscape(table)
	if sysID != "" {
		path += "/" + url.PathEscape(sysID)
	}
	return path
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, v any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	msg := strings.TrimSpace(payload.Error.Message)
	if detail := strings.TrimSpace(payload.Error.Detail); detail != "" {
		msg = strings.TrimSpace(msg + ": " + detail)
	}
	return msg
}
