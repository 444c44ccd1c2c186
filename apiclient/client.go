// Package apiclient maps requests and responses to the remote attendance API.
// It owns nothing beyond the wire contract: success envelopes become values,
// explicit denials become *APIError, transport failures become *NetworkError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bumisarana/absensi-client/models"
)

const defaultUserAgent = "absensi-client/1.0 (+https://github.com/bumisarana/absensi-client)"

// NetworkError wraps a transport level failure: connection refused, DNS,
// timeout, or an unreadable response body.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is an explicit denial from the remote API: success=false or a
// non-2xx status with a message.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: request rejected (status %d)", e.Op, e.Status)
}

// IsNetworkError reports whether err is a transport failure rather than an
// explicit rejection. The auth flow uses this to pick its offline fallback.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Client talks to the remote attendance API. The embedded http.Client carries
// no global timeout: attendance submissions are deliberately not cancelled
// client-side, and callers that need a deadline pass one via context.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// New creates a client for the given base URL, e.g. "http://localhost:3001/api".
func New(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}
}

// NewWithHTTPClient creates a client with a caller-supplied http.Client.
// Used by tests and by deployments that need custom transports.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	c := New(baseURL)
	c.http = hc
	return c
}

// GenerateOTP asks the API to issue an OTP for the given NIK.
func (c *Client) GenerateOTP(ctx context.Context, karNik string) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "generate otp", "/auth/generate-otp", map[string]string{"kar_nik": karNik}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Op: "generate otp", Message: orDefault(resp.Message, "failed to generate OTP")}
	}
	return nil
}

// VerifyOTP exchanges (nik, otp, browser info) for a session token and user
// profile.
func (c *Client) VerifyOTP(ctx context.Context, karNik, otp string, info models.BrowserInfo) (string, *models.User, error) {
	payload := map[string]any{
		"kar_nik":      karNik,
		"otp":          otp,
		"browser_info": info,
	}
	var resp struct {
		Success bool         `json:"success"`
		Token   string       `json:"token"`
		User    *models.User `json:"user"`
		Message string       `json:"message"`
	}
	if err := c.postJSON(ctx, "verify otp", "/auth/verify-otp", payload, &resp); err != nil {
		return "", nil, err
	}
	if !resp.Success || resp.Token == "" || resp.User == nil {
		return "", nil, &APIError{Op: "verify otp", Message: orDefault(resp.Message, "login rejected")}
	}
	return resp.Token, resp.User, nil
}

// VerifyToken asks the API whether a stored token is still valid and returns
// the refreshed user profile when it is.
func (c *Client) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	var resp struct {
		Success bool         `json:"success"`
		User    *models.User `json:"user"`
		Message string       `json:"message"`
	}
	if err := c.postJSON(ctx, "verify token", "/auth/verify-token", map[string]string{"token": token}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, &APIError{Op: "verify token", Message: orDefault(resp.Message, "token rejected")}
	}
	return resp.User, nil
}

// Logout notifies the API that the session ends. Best effort; the caller
// ignores the result.
func (c *Client) Logout(ctx context.Context) error {
	var resp struct {
		Success bool `json:"success"`
	}
	return c.postJSON(ctx, "logout", "/auth/logout", nil, &resp)
}

// GetUnit fetches the unit record for a unit code.
func (c *Client) GetUnit(ctx context.Context, kdUnit string) (*models.Unit, error) {
	var resp struct {
		Success bool          `json:"success"`
		Data    []models.Unit `json:"data"`
		Message string        `json:"message"`
	}
	path := "/unit/" + url.PathEscape(kdUnit)
	if err := c.getJSON(ctx, "get unit", path, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return nil, &APIError{Op: "get unit", Message: orDefault(resp.Message, "unit not found")}
	}
	unit := resp.Data[0]
	return &unit, nil
}

// Submission is one attendance event. The API infers check-in vs check-out
// from the day's existing record; latitude and longitude travel as strings.
type Submission struct {
	KarNik    string `json:"kar_nik"`
	Tanggal   string `json:"tanggal"`
	KdCabang  string `json:"kd_cabang"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// SubmitAttendance posts one attendance event.
func (c *Client) SubmitAttendance(ctx context.Context, sub Submission) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "submit attendance", "/absensi/tambahcoba", sub, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Op: "submit attendance", Message: orDefault(resp.Message, "submission rejected")}
	}
	return nil
}

// TodayAttendance returns today's record for the named employee. A day with
// no submissions yet yields a zero record, not an error.
func (c *Client) TodayAttendance(ctx context.Context, karNama string) (models.AttendanceRecord, error) {
	var resp struct {
		Success bool                      `json:"success"`
		Data    []models.AttendanceRecord `json:"data"`
		Message string                    `json:"message"`
	}
	if err := c.postJSON(ctx, "today attendance", "/absensi/hari-ini", map[string]string{"kar_nama": karNama}, &resp); err != nil {
		return models.AttendanceRecord{}, err
	}
	if !resp.Success {
		return models.AttendanceRecord{}, &APIError{Op: "today attendance", Message: orDefault(resp.Message, "query rejected")}
	}
	if len(resp.Data) == 0 {
		return models.AttendanceRecord{}, nil
	}
	return resp.Data[0], nil
}

// AttendanceHistory returns past records for the named employee. The record
// shape is owned by the server, so entries pass through loosely typed.
func (c *Client) AttendanceHistory(ctx context.Context, karNama string) ([]map[string]any, error) {
	var resp struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
		Message string           `json:"message"`
	}
	if err := c.postJSON(ctx, "attendance history", "/absensi/history", map[string]string{"kar_nama": karNama}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{Op: "attendance history", Message: orDefault(resp.Message, "query rejected")}
	}
	return resp.Data, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The API reports denials with a JSON message even on error statuses.
		var denial struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&denial)
		return &APIError{Op: op, Status: resp.StatusCode, Message: denial.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
