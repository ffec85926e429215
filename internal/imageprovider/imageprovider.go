// Package imageprovider finds one representative image URL for a species name.
package imageprovider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/httpclient"
	"github.com/birdsong-go/birdsong/internal/logger"
)

// Provider names accepted in imageprovider.provider.
const (
	ProviderDuckDuckGo = "duckduckgo"
	ProviderWikimedia  = "wikimedia"
	ProviderNone       = "none"
)

// maxResponseBytes bounds search page and JSON bodies.
const maxResponseBytes = 2 << 20

// ErrLookup is matched by every failed search: network errors, timeouts,
// non-2xx responses, rate limiting and malformed payloads. A search with no
// results is not an error.
var ErrLookup = errors.NewStd("image lookup failed")

// Locator finds an image URL for a species. found is false when the search
// succeeded but returned nothing.
type Locator interface {
	Locate(ctx context.Context, speciesName string) (imageURL string, found bool, err error)
	Name() string
}

// Query returns the search phrase used for a species.
func Query(speciesName string) string {
	return strings.TrimSpace(speciesName) + " bird"
}

// New returns the configured provider. client may be shared with other components.
func New(settings *conf.ImageProviderSettings, client *httpclient.Client) (Locator, error) {
	limiter := newLimiter(settings.RateLimit, settings.Burst)

	switch strings.ToLower(settings.Provider) {
	case ProviderDuckDuckGo, "":
		return NewDuckDuckGoProvider(client, settings.DuckDuckGo.BaseURL, settings.Timeout, limiter), nil
	case ProviderWikimedia:
		return NewWikimediaProvider(client, settings.Wikimedia.BaseURL, settings.Timeout, limiter), nil
	case ProviderNone:
		return NoneProvider{}, nil
	default:
		return nil, errors.Newf("unknown image provider %q", settings.Provider).
			Component("imageprovider").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// newLimiter returns nil (no limiting) for a non-positive rate.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, burst))
}

// newRequestID returns a short id for correlating provider log lines.
func newRequestID() string {
	return uuid.New().String()[:8]
}

// lookupError wraps reason so that it matches ErrLookup.
func lookupError(provider, reqID, species, operation string, reason error) error {
	return errors.New(fmt.Errorf("%w: %s: %w", ErrLookup, provider, reason)).
		Component("imageprovider").
		Category(errors.CategoryImageLookup).
		Context("provider", provider).
		Context("request_id", reqID).
		Context("species", species).
		Context("operation", operation).
		Build()
}

// statusError describes a non-2xx response
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	if e.RateLimited() {
		return fmt.Sprintf("rate limited by provider (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}

// RateLimited reports whether the provider refused the request as too frequent.
func (e *statusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusForbidden
}

// fetchBody performs a GET after waiting on the limiter and returns the body
// of a 2xx response.
func fetchBody(ctx context.Context, client *httpclient.Client, limiter *rate.Limiter, req *http.Request, log logger.Logger) ([]byte, int, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug("provider response",
		logger.String("url", req.URL.Redacted()),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))

	body, err := httpclient.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, &statusError{StatusCode: resp.StatusCode}
	}
	return body, resp.StatusCode, nil
}

// withTimeout applies the provider timeout when positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// NoneProvider never finds an image.
type NoneProvider struct{}

func (NoneProvider) Locate(context.Context, string) (string, bool, error) { return "", false, nil }
func (NoneProvider) Name() string { return ProviderNone }
