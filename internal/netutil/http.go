// File: internal/netutil/http.go

// Package netutil holds the small HTTP plumbing the driver layer needs:
// fetch a URL, decode the JSON body, nothing more.
package netutil

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/json-iterator/go"
)

const (
	// DefaultTimeout bounds a whole discovery fetch; the debugging endpoint
	// is local, so anything slower than this means the browser is not up.
	DefaultTimeout = 30 * time.Second

	// userAgent mirrors a desktop Chromium so endpoints that sniff the UA
	// treat these requests like browser traffic.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DefaultClient is the client used when callers pass nil.
var DefaultClient = &http.Client{Timeout: DefaultTimeout}

// GetJSON fetches url and decodes its JSON body into v. A non-2xx status is
// an error; the caller never sees a half-decoded body.
func GetJSON(ctx context.Context, client *http.Client, url string, v any) error {
	if client == nil {
		client = DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}
