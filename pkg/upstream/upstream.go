// Package upstream holds the bearer-authenticated JSON GET shared by the Headscale and
// peerlab-gateway clients.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"peerlab-bird/pkg/version"
)

// DefaultTimeout bounds a single fetch when the caller does not supply an http.Client.
const DefaultTimeout = 30 * time.Second

// Error is returned when a service answers with a non-2xx status.
type Error struct {
	Service string
	Status  string
	Code    int
	Body    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s API returned error status %s: %s", e.Service, e.Status, e.Body)
}

// GetJSON performs GET url with a bearer token and decodes the JSON body into out.
func GetJSON(ctx context.Context, client *http.Client, service, url, token string, out any) error {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request to %s API: %w", service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &Error{Service: service, Status: resp.Status, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse %s API response: %w", service, err)
	}
	return nil
}
