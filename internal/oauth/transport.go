package oauth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const maxErrorSummary = 200

// platformHTTP is the rate-limited client every provider talks through.
type platformHTTP struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newPlatformHTTP(rps float64, burst int, timeout time.Duration) *platformHTTP {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &platformHTTP{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	h.client = &http.Client{
		Timeout:   timeout,
		Transport: &limitedTransport{next: http.DefaultTransport, limiter: h.limiter},
	}
	return h
}

// Client returns an http.Client whose requests wait on the limiter.
func (h *platformHTTP) Client() *http.Client {
	return h.client
}

// Do sends req and returns the body of a 2xx response.
func (h *platformHTTP) Do(req *http.Request) ([]byte, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrPlatformUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrPlatformUnavailable, resp.StatusCode,
			summarizeBody(resp.Header.Get("Content-Type"), body))
	}
	return body, nil
}

type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// summarizeBody turns an error body into a short single line. Gateways in
// front of the platform APIs answer with HTML pages; only their text is kept.
func summarizeBody(contentType string, body []byte) string {
	text := string(body)
	if strings.Contains(contentType, "text/html") || bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if title == "" {
				title = strings.TrimSpace(doc.Find("h1").First().Text())
			}
			if title == "" {
				title = strings.TrimSpace(doc.Find("body").Text())
			}
			text = title
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxErrorSummary {
		text = text[:maxErrorSummary] + "..."
	}
	return text
}

func postForm(ctx context.Context, endpoint string, body string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}
