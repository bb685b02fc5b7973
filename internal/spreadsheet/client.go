// Package spreadsheet talks to the spreadsheet-backed web app that stores
// settings and proxies Drive file downloads.
package spreadsheet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no web app URL is set.
var ErrNotConfigured = errors.New("spreadsheet web app URL not configured")

// Client talks to the web app over its action-based JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the web app at baseURL. hc may be nil.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimSpace(baseURL), http: hc}
}

// DriveFile is a file the web app downloaded from Drive on our behalf.
type DriveFile struct {
	Data     []byte
	FileName string
	MIMEType string
}

// FetchSettings returns the stored model credential list.
func (c *Client) FetchSettings(ctx context.Context) ([]string, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?action=get_settings", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet get_settings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("spreadsheet get_settings: status %d: %s", resp.StatusCode, string(b))
	}

	var raw struct {
		GeminiKeys json.RawMessage `json:"geminiKeys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("spreadsheet get_settings decode: %w", err)
	}
	var keys []string
	if len(raw.GeminiKeys) > 0 && json.Unmarshal(raw.GeminiKeys, &keys) != nil {
		// A non-array value means no keys are stored yet.
		keys = nil
	}
	return keys, nil
}

// SaveSettings replaces the stored model credential list.
func (c *Client) SaveSettings(ctx context.Context, keys []string) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	if keys == nil {
		keys = []string{}
	}
	resp, err := c.post(ctx, map[string]any{"action": "save_settings", "geminiKeys": keys})
	if err != nil {
		return fmt.Errorf("spreadsheet save_settings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("spreadsheet save_settings: status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// FetchFileData asks the web app to download a Drive file.
func (c *Client) FetchFileData(ctx context.Context, driveURL string) (*DriveFile, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	resp, err := c.post(ctx, map[string]any{"action": "get_file_data", "url": driveURL})
	if err != nil {
		return nil, fmt.Errorf("spreadsheet get_file_data: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spreadsheet get_file_data: status %d", resp.StatusCode)
	}

	var raw struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Data     string `json:"data"`
		FileName string `json:"fileName"`
		MIMEType string `json:"mimeType"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("spreadsheet get_file_data decode: %w", err)
	}
	if raw.Status != "success" {
		return nil, fmt.Errorf("spreadsheet get_file_data: %s %s", raw.Status, raw.Message)
	}
	data, mime, err := decodeDataURL(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet get_file_data: %w", err)
	}
	if raw.MIMEType == "" {
		raw.MIMEType = mime
	}
	return &DriveFile{Data: data, FileName: raw.FileName, MIMEType: raw.MIMEType}, nil
}

// decodeDataURL accepts "data:<mime>;base64,<payload>" or bare base64.
func decodeDataURL(s string) ([]byte, string, error) {
	mime := ""
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errors.New("malformed data URL")
		}
		mime, _, _ = strings.Cut(header, ";")
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	return data, mime, nil
}

// post sends an action body. The web app only accepts text/plain posts.
func (c *Client) post(ctx context.Context, body map[string]any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	return c.http.Do(req)
}

// LoadCredentials and SaveCredentials let the client back a settings.Pool.
func (c *Client) LoadCredentials(ctx context.Context) ([]string, error) { return c.FetchSettings(ctx) }

func (c *Client) SaveCredentials(ctx context.Context, creds []string) error {
	return c.SaveSettings(ctx, creds)
}
