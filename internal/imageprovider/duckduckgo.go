package imageprovider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/birdsong-go/birdsong/internal/httpclient"
	"github.com/birdsong-go/birdsong/internal/logger"
)

// DefaultDuckDuckGoURL is the search host.
const DefaultDuckDuckGoURL = "https://duckduckgo.com"

var vqdPattern = regexp.MustCompile(`vqd=["']?([0-9-]+)`)

// DuckDuckGoProvider searches DuckDuckGo images. A search takes two requests:
// the landing page yields a vqd token that authorises the i.js JSON query.
type DuckDuckGoProvider struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	log     logger.Logger
}

// NewDuckDuckGoProvider creates the provider. An empty baseURL uses DefaultDuckDuckGoURL.
func NewDuckDuckGoProvider(client *httpclient.Client, baseURL string, timeout time.Duration, limiter *rate.Limiter) *DuckDuckGoProvider {
	if baseURL == "" {
		baseURL = DefaultDuckDuckGoURL
	}
	return &DuckDuckGoProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		limiter: limiter,
		log:     GetLogger().With(logger.String("provider", ProviderDuckDuckGo)),
	}
}

func (p *DuckDuckGoProvider) Name() string { return ProviderDuckDuckGo }

// Locate returns the first image result for "<species> bird".
func (p *DuckDuckGoProvider) Locate(ctx context.Context, speciesName string) (string, bool, error) {
	reqID := newRequestID()
	log := p.log.With(logger.String("request_id", reqID), logger.String("species", speciesName))
	query := Query(speciesName)

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	token, err := p.fetchToken(ctx, query, log)
	if err != nil {
		log.Warn("image search token request failed", logger.Error(err))
		return "", false, lookupError(ProviderDuckDuckGo, reqID, speciesName, "fetch_token", err)
	}

	body, err := p.fetchImages(ctx, query, token, log)
	if err != nil {
		log.Warn("image search request failed", logger.Error(err))
		return "", false, lookupError(ProviderDuckDuckGo, reqID, speciesName, "image_search", err)
	}

	imageURL, title, found, err := parseImageResults(body)
	if err != nil {
		log.Warn("malformed image search response", logger.Error(err))
		return "", false, lookupError(ProviderDuckDuckGo, reqID, speciesName, "parse_results", err)
	}
	if !found {
		log.Info("image search returned no results")
		return "", false, nil
	}

	log.Debug("image located",
		logger.String("image_url", imageURL),
		logger.String("title", title))
	return imageURL, true, nil
}

func (p *DuckDuckGoProvider) fetchToken(ctx context.Context, query string, log logger.Logger) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/?"+params.Encode(), http.NoBody)
	if err != nil {
		return "", err
	}

	body, _, err := fetchBody(ctx, p.client, p.limiter, req, log)
	if err != nil {
		return "", err
	}

	token := extractVQD(body)
	if token == "" {
		return "", fmt.Errorf("search token not found in landing page")
	}
	return token, nil
}

func (p *DuckDuckGoProvider) fetchImages(ctx context.Context, query, token string, log logger.Logger) ([]byte, error) {
	params := url.Values{}
	params.Set("l", "wt-wt")
	params.Set("o", "json")
	params.Set("q", query)
	params.Set("vqd", token)
	params.Set("f", ",,,,,")
	params.Set("p", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/i.js?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", p.baseURL+"/")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")

	body, _, err := fetchBody(ctx, p.client, p.limiter, req, log)
	return body, err
}

// extractVQD finds the vqd token in the landing page, first in script bodies
// and attribute values, then anywhere in the raw page.
func extractVQD(page []byte) string {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if m := vqdPattern.FindSubmatch(page); m != nil {
				return string(m[1])
			}
			return ""
		case html.TextToken:
			if m := vqdPattern.FindSubmatch(z.Text()); m != nil {
				return string(m[1])
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			for {
				key, val, more := z.TagAttr()
				if string(key) == "data-vqd" && len(val) > 0 {
					return string(val)
				}
				if m := vqdPattern.FindSubmatch(val); m != nil {
					return string(m[1])
				}
				if !more {
					break
				}
			}
		}
	}
}

// parseImageResults reads results[0].image from an i.js payload.
func parseImageResults(body []byte) (imageURL, title string, found bool, err error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return "", "", false, fmt.Errorf("invalid JSON: %w", err)
	}

	results, err := obj.GetObjectArray("results")
	if err != nil {
		return "", "", false, fmt.Errorf("missing results array: %w", err)
	}
	if len(results) == 0 {
		return "", "", false, nil
	}

	imageURL, err = results[0].GetString("image")
	if err != nil || imageURL == "" {
		return "", "", false, fmt.Errorf("first result has no image URL")
	}
	if raw, terr := results[0].GetString("title"); terr == nil {
		title = strings.TrimSpace(html2text.HTML2Text(raw))
	}
	return imageURL, title, true, nil
}
