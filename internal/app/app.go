// Package app assembles the identification services from settings. Both the
// web and the CLI shells build their pipeline here.
package app

import (
	"fmt"
	"net/http"

	"github.com/birdsong-go/birdsong/internal/classifier"
	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/httpclient"
	"github.com/birdsong-go/birdsong/internal/imageprovider"
	"github.com/birdsong-go/birdsong/internal/logger"
	"github.com/birdsong-go/birdsong/internal/myaudio"
	"github.com/birdsong-go/birdsong/internal/observability"
	"github.com/birdsong-go/birdsong/internal/pipeline"
	"github.com/birdsong-go/birdsong/internal/species"
)

// Options adjust how services are built.
type Options struct {
	// Metrics registers Prometheus collectors and feeds them from the pipeline.
	Metrics bool

	// Backend replaces the model backend selected in settings.
	Backend classifier.Backend

	// Transport replaces the outbound HTTP transport.
	Transport http.RoundTripper

	// SkipImageFetch stops after locating the image URL; the CLI prints the
	// URL and never downloads the picture.
	SkipImageFetch bool
}

// Services are the long-lived components behind one process.
type Services struct {
	Settings   *conf.Settings
	Labels     *species.LabelMap
	Classifier *classifier.Classifier
	Extractor  *myaudio.Extractor
	Locator    imageprovider.Locator
	Fetcher    *pipeline.ImageFetcher
	HTTPClient *httpclient.Client
	Metrics    *observability.Metrics
	Pipeline   *pipeline.Pipeline
}

// New loads labels and the model and wires the pipeline. The model output
// cardinality is checked against the label count here, so a mismatched
// deployment fails at startup.
func New(settings *conf.Settings, opts Options) (*Services, error) {
	log := logger.Global().Module("app")
	s := &Services{Settings: settings}

	labels, err := species.Load(settings.Classifier.LabelPath)
	if err != nil {
		return nil, err
	}
	s.Labels = labels

	if opts.Backend != nil {
		s.Classifier, err = classifier.New(opts.Backend, labels.Len())
	} else {
		s.Classifier, err = classifier.NewFromSettings(&settings.Classifier, labels.Len())
	}
	if err != nil {
		return nil, err
	}

	ffmpeg, err := myaudio.NewFFmpegConverter(settings.Audio.FfmpegPath)
	if err != nil {
		log.Warn("ffmpeg not available, formats without a native decoder will be rejected",
			logger.Error(err))
	}

	s.Extractor, err = myaudio.NewExtractor(featureConfig(&settings.Audio), myaudio.NewDecoder(ffmpeg))
	if err != nil {
		s.shutdown(log)
		return nil, err
	}
	if err := checkFeatureShape(s.Extractor.Config()); err != nil {
		s.shutdown(log)
		return nil, err
	}

	s.HTTPClient = httpclient.New(&httpclient.Config{
		UserAgent: settings.ImageProvider.UserAgent,
		Transport: opts.Transport,
	})

	s.Locator, err = imageprovider.New(&settings.ImageProvider, s.HTTPClient)
	if err != nil {
		s.shutdown(log)
		return nil, err
	}

	stages := pipeline.Stages{
		Extractor: s.Extractor,
		Predictor: s.Classifier,
		Labels:    labels,
		Locator:   s.Locator,
	}
	if !opts.SkipImageFetch {
		s.Fetcher = pipeline.NewImageFetcher(s.HTTPClient, settings.ImageFetch.Timeout, settings.ImageFetch.MaxBytes, settings.ImageFetch.MaxPixels)
		stages.Fetcher = s.Fetcher
	}
	if opts.Metrics {
		s.Metrics, err = observability.NewMetrics()
		if err != nil {
			s.shutdown(log)
			return nil, errors.New(err).
				Component("app").
				Category(errors.CategoryGeneric).
				Build()
		}
		stages.Metrics = s.Metrics.Pipeline
	}

	s.Pipeline, err = pipeline.New(stages, settings.Classifier.Candidates,
		pipeline.WithMaxExtractions(settings.Audio.MaxConcurrent))
	if err != nil {
		s.shutdown(log)
		return nil, err
	}

	log.Info("services ready",
		logger.String("backend", s.Classifier.Backend()),
		logger.Int("labels", labels.Len()),
		logger.String("image_provider", s.Locator.Name()),
		logger.Bool("ffmpeg", ffmpeg != nil))
	return s, nil
}

// Close releases the model and idle HTTP connections.
func (s *Services) Close() error {
	if s.HTTPClient != nil {
		s.HTTPClient.Close()
	}
	if s.Classifier != nil {
		return s.Classifier.Close()
	}
	return nil
}

func (s *Services) shutdown(log logger.Logger) {
	if err := s.Close(); err != nil {
		log.Warn("failed to release services", logger.Error(err))
	}
}

// checkFeatureShape rejects audio settings whose tensors the model input
// cannot accept.
func checkFeatureShape(cfg myaudio.FeatureConfig) error {
	wantBands, wantFrames := classifier.InputShape[1], classifier.InputShape[2]
	if int64(cfg.MelBands) == wantBands && int64(cfg.Frames) == wantFrames {
		return nil
	}
	return errors.New(fmt.Errorf("%w: audio.melbands=%d and audio.frames=%d give a %dx%d tensor, model expects %dx%d",
		classifier.ErrShape, cfg.MelBands, cfg.Frames, cfg.MelBands, cfg.Frames, wantBands, wantFrames)).
		Component("app").
		Category(errors.CategoryConfiguration).
		Context("mel_bands", cfg.MelBands).
		Context("frames", cfg.Frames).
		Build()
}

// featureConfig maps audio settings onto the extractor configuration;
// zero values keep the defaults.
func featureConfig(a *conf.AudioSettings) myaudio.FeatureConfig {
	cfg := myaudio.DefaultFeatureConfig()
	if a.NFFT > 0 {
		cfg.NFFT = a.NFFT
	}
	if a.HopLength > 0 {
		cfg.HopLength = a.HopLength
	}
	if a.MelBands > 0 {
		cfg.MelBands = a.MelBands
	}
	if a.Frames > 0 {
		cfg.Frames = a.Frames
	}
	if a.TopDB > 0 {
		cfg.TopDB = a.TopDB
	}
	return cfg
}
