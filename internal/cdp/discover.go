package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/milohq/milo-memory/internal/apperr"
)

// Target is an entry of the browser's /json listing.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

var discoverClient = &http.Client{Timeout: 5 * time.Second}

// DiscoverTarget returns the debugger URL of the first page target at
// host:port, falling back to the browser-level URL from /json/version.
func DiscoverTarget(ctx context.Context, host string, port int) (string, error) {
	base := "http://" + net.JoinHostPort(host, strconv.Itoa(port))

	var targets []Target
	if err := getJSON(ctx, base+"/json", &targets); err != nil {
		return "", unreachable(host, port, err)
	}
	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := getJSON(ctx, base+"/json/version", &version); err != nil {
		return "", unreachable(host, port, err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", apperr.NotFound("cdp discover", "no debuggable target at %s:%d", host, port)
	}
	return version.WebSocketDebuggerURL, nil
}

func unreachable(host string, port int, err error) error {
	if isTimeout(err) {
		return apperr.ExternalTimeout("cdp discover", err)
	}
	return fmt.Errorf("cannot reach the browser debugger at %s:%d (start it with --remote-debugging-port=%d): %w",
		host, port, port, err)
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := discoverClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
