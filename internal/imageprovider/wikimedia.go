package imageprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"golang.org/x/time/rate"

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/httpclient"
	"github.com/birdsong-go/birdsong/internal/logger"
)

// DefaultWikimediaURL is the English Wikipedia REST API root.
const DefaultWikimediaURL = "https://en.wikipedia.org/api/rest_v1"

// WikimediaProvider uses the lead image of the species' Wikipedia article.
type WikimediaProvider struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	log     logger.Logger
}

// NewWikimediaProvider creates the provider. An empty baseURL uses DefaultWikimediaURL.
func NewWikimediaProvider(client *httpclient.Client, baseURL string, timeout time.Duration, limiter *rate.Limiter) *WikimediaProvider {
	if baseURL == "" {
		baseURL = DefaultWikimediaURL
	}
	return &WikimediaProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		limiter: limiter,
		log:     GetLogger().With(logger.String("provider", ProviderWikimedia)),
	}
}

func (p *WikimediaProvider) Name() string { return ProviderWikimedia }

// Locate fetches the page summary for the species and returns its original
// image, falling back to the thumbnail. A missing page is not an error.
func (p *WikimediaProvider) Locate(ctx context.Context, speciesName string) (string, bool, error) {
	reqID := newRequestID()
	log := p.log.With(logger.String("request_id", reqID), logger.String("species", speciesName))

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	// Summaries are keyed by article title, so the bare name is used rather than Query
	title := url.PathEscape(strings.ReplaceAll(strings.TrimSpace(speciesName), " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/page/summary/"+title, http.NoBody)
	if err != nil {
		return "", false, lookupError(ProviderWikimedia, reqID, speciesName, "build_request", err)
	}
	req.Header.Set("Accept", "application/json")

	body, status, err := fetchBody(ctx, p.client, p.limiter, req, log)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && status == http.StatusNotFound {
			log.Info("no Wikipedia page for species")
			return "", false, nil
		}
		log.Warn("page summary request failed", logger.Error(err))
		return "", false, lookupError(ProviderWikimedia, reqID, speciesName, "page_summary", err)
	}

	imageURL, found, err := parseSummaryImage(body)
	if err != nil {
		log.Warn("malformed page summary", logger.Error(err))
		return "", false, lookupError(ProviderWikimedia, reqID, speciesName, "parse_summary", err)
	}
	if !found {
		log.Info("Wikipedia page has no image")
		return "", false, nil
	}

	log.Debug("image located", logger.String("image_url", imageURL))
	return imageURL, true, nil
}

func parseSummaryImage(body []byte) (string, bool, error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return "", false, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, key := range []string{"originalimage", "thumbnail"} {
		if src, err := obj.GetString(key, "source"); err == nil && src != "" {
			return src, true, nil
		}
	}
	return "", false, nil
}
