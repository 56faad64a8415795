// Package webhook sends the assembled push description to the configured
// receiver and interprets its verdict.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const userAgent = "Refguard/1.0"

// Options bounds a single delivery. Zero timeouts leave the corresponding
// phase unbounded.
type Options struct {
	URL            string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	MaxRedirects   int
}

// Result is the receiver's verdict: the HTTP status decides, the optional
// JSON body contributes message lines.
type Result struct {
	Accepted bool
	Messages []string
}

// Deliver POSTs the payload as JSON. Exactly one request is attempted; any
// transport failure is returned to the caller, whose reject-on-error policy
// decides the disposition.
func Deliver(opts Options, body []byte) (*Result, error) {
	client := newClient(opts)
	defer client.CloseIdleConnections()

	req, err := http.NewRequest(http.MethodPost, opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	delivery := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Refguard-Delivery", delivery)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()

	accepted := resp.StatusCode >= 200 && resp.StatusCode <= 299
	slog.Debug("webhook delivered",
		"url", opts.URL,
		"delivery", delivery,
		"status", resp.StatusCode,
	)

	return &Result{
		Accepted: accepted,
		Messages: decodeMessages(resp),
	}, nil
}

// decodeMessages extracts the optional message lines. Receivers answer with
// either a bare JSON array of strings or {"messages": [...]}. A missing,
// non-JSON, or malformed body yields none; the status code alone carries
// the verdict.
func decodeMessages(resp *http.Response) []string {
	// Drain the body even when it is not used.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil
	}

	var messages []string
	if err := json.Unmarshal(body, &messages); err == nil {
		return messages
	}

	var wrapped struct {
		Messages []string `json:"messages"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		slog.Debug("webhook response body ignored", "error", err)
		return nil
	}
	return wrapped.Messages
}

func newClient(opts Options) *http.Client {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		DialContext:       dialer.DialContext,
		ForceAttemptHTTP2: false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", opts.MaxRedirects)
			}
			return nil
		},
	}
}
