package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/url"
	"time"

	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/httpclient"
	"github.com/birdsong-go/birdsong/internal/logger"
)

// Image fetch defaults.
const (
	DefaultFetchTimeout   = 15 * time.Second
	DefaultFetchMaxBytes  = 10 << 20
	DefaultFetchMaxPixels = 40_000_000
)

// Image is a downloaded species picture that decoded successfully.
type Image struct {
	Data        []byte
	ContentType string
	Format      string
	Width       int
	Height      int
}

// DataURI embeds the image for inline display.
func (img *Image) DataURI() string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ImageFetcher downloads located images with size and pixel caps and a deadline.
type ImageFetcher struct {
	client    *httpclient.Client
	timeout   time.Duration
	maxBytes  int64
	maxPixels int
	log       logger.Logger
}

// NewImageFetcher returns a fetcher. Zero limits use the defaults.
func NewImageFetcher(client *httpclient.Client, timeout time.Duration, maxBytes int64, maxPixels int) *ImageFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultFetchMaxBytes
	}
	if maxPixels <= 0 {
		maxPixels = DefaultFetchMaxPixels
	}
	return &ImageFetcher{
		client:    client,
		timeout:   timeout,
		maxBytes:  maxBytes,
		maxPixels: maxPixels,
		log:       GetLogger().Module("image"),
	}
}

// Fetch downloads imageURL and decodes it to prove it is an image.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fetchError(imageURL, errors.CategoryValidation, fmt.Errorf("invalid image url %q", imageURL))
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	resp, err := f.client.Get(ctx, u.String())
	if err != nil {
		category := errors.CategoryNetwork
		if ctx.Err() != nil {
			category = errors.CategoryTimeout
		}
		return nil, fetchError(imageURL, category, fmt.Errorf("request failed: %w", err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.log.Debug("failed to close image response body", logger.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fetchError(imageURL, errors.CategoryImageFetch,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := httpclient.ReadLimited(resp.Body, f.maxBytes)
	switch {
	case errors.Is(err, httpclient.ErrBodyTooLarge):
		return nil, fetchError(imageURL, errors.CategoryLimit,
			fmt.Errorf("image larger than %d bytes", f.maxBytes))
	case err != nil:
		return nil, fetchError(imageURL, errors.CategoryNetwork, fmt.Errorf("read failed: %w", err))
	}

	// Headers declare dimensions before any pixel buffer is allocated
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fetchError(imageURL, errors.CategoryImageFetch, fmt.Errorf("not a decodable image: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > f.maxPixels/cfg.Height {
		return nil, fetchError(imageURL, errors.CategoryLimit,
			fmt.Errorf("image of %dx%d pixels exceeds %d pixels", cfg.Width, cfg.Height, f.maxPixels))
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fetchError(imageURL, errors.CategoryImageFetch, fmt.Errorf("not a decodable image: %w", err))
	}
	bounds := decoded.Bounds()

	img := &Image{
		Data:        data,
		ContentType: "image/" + format,
		Format:      format,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}

	f.log.Debug("image fetched",
		logger.String("format", format),
		logger.Int("bytes", len(data)),
		logger.Int("width", img.Width),
		logger.Int("height", img.Height),
		logger.Duration("elapsed", time.Since(start)))
	return img, nil
}

func fetchError(imageURL string, category errors.ErrorCategory, err error) error {
	return errors.New(err).
		Component("pipeline").
		Category(category).
		Context("operation", "image_fetch").
		NetworkContext(imageURL, 0).
		Build()
}
