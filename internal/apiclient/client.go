// Package apiclient talks to the appeals, penalties and company profile
// REST APIs on behalf of the signed-in user.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// StatusError is returned for responses a call does not expect.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// base carries what every API client shares.
type base struct {
	baseURL string
	http    *http.Client
}

func newBase(baseURL string, client *http.Client) base {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return base{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// requestJSON performs a single request with the user's bearer token. Calls
// are not retried: the user can resubmit the page.
func (b base) requestJSON(ctx context.Context, method, path, token string, payload any) (response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return response{}, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return response{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}

func (b base) unexpected(method, path string, resp response) error {
	text := string(resp.body)
	if len(text) > 512 {
		text = text[:512]
	}
	return &StatusError{Method: method, URL: b.baseURL + path, Status: resp.status, Body: text}
}
