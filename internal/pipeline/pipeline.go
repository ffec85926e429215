// Package pipeline runs one identification: decode and extract features,
// classify, decode the prediction, then look up and fetch a species image.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/birdsong-go/birdsong/internal/classifier"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/imageprovider"
	"github.com/birdsong-go/birdsong/internal/logger"
	"github.com/birdsong-go/birdsong/internal/myaudio"
	"github.com/birdsong-go/birdsong/internal/observability/metrics"
	"github.com/birdsong-go/birdsong/internal/species"
)

// User-facing messages.
const (
	NoImageNotice      = "No image found for this bird."
	ImageWarningPrefix = "Error loading image: "
)

// DefaultCandidates is the number of ranked predictions kept in a Result.
const DefaultCandidates = 3

// Extractor turns an upload into a feature tensor.
type Extractor interface {
	Extract(ctx context.Context, buf myaudio.AudioBuffer) (myaudio.FeatureTensor, error)
}

// Predictor runs the model.
type Predictor interface {
	Predict(tensor myaudio.FeatureTensor) (classifier.ProbabilityVector, error)
}

// Fetcher downloads and validates an image.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) (*Image, error)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	metrics.Recorder
	RecordPrediction(speciesCode string)
	ObserveImageBytes(n int)
}

// Stages are the injected components. Locator, Fetcher and Metrics are optional.
type Stages struct {
	Extractor Extractor
	Predictor Predictor
	Labels    *species.LabelMap
	Locator   imageprovider.Locator
	Fetcher   Fetcher
	Metrics   Recorder
}

// Result is everything the presentation shells display.
type Result struct {
	RequestID  string               `json:"request_id"`
	Prediction species.Prediction   `json:"prediction"`
	Candidates []species.Prediction `json:"candidates"`
	ImageURL   string               `json:"image_url,omitempty"`
	Image      *Image               `json:"-"`
	Notice     string               `json:"notice,omitempty"`
	Warning    string               `json:"warning,omitempty"`
}

// Pipeline holds read-only stages and may be shared by concurrent requests.
type Pipeline struct {
	stages     Stages
	candidates int
	slots      *semaphore.Weighted // nil means unlimited extractions
	log        logger.Logger
}

// Option adjusts a Pipeline.
type Option func(*Pipeline)

// WithMaxExtractions bounds how many uploads are decoded and analysed at
// once; callers past the bound wait for a slot or their context. n <= 0
// leaves extraction unbounded.
func WithMaxExtractions(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// New validates the stages. candidates <= 0 uses DefaultCandidates.
func New(stages Stages, candidates int, opts ...Option) (*Pipeline, error) {
	switch {
	case stages.Extractor == nil:
		return nil, configError("extractor is required")
	case stages.Predictor == nil:
		return nil, configError("predictor is required")
	case stages.Labels == nil:
		return nil, configError("label map is required")
	}
	if stages.Locator == nil {
		stages.Locator = imageprovider.NoneProvider{}
	}
	if stages.Metrics == nil {
		stages.Metrics = noopRecorder{}
	}
	if candidates <= 0 {
		candidates = DefaultCandidates
	}
	p := &Pipeline{stages: stages, candidates: candidates, log: GetLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Identify runs the pipeline on one upload. Extraction and inference failures
// are returned as errors; image problems only produce a Notice or Warning.
func (p *Pipeline) Identify(ctx context.Context, buf myaudio.AudioBuffer) (*Result, error) {
	reqID := uuid.NewString()
	ctx = logger.WithTraceID(ctx, reqID)
	log := p.log.WithContext(ctx)
	start := time.Now()

	log.Debug("identification started",
		logger.String("filename", buf.Filename),
		logger.Int("bytes", len(buf.Data)))

	tensor, err := p.extract(ctx, buf)
	if err != nil {
		p.fail(log, metrics.OpFeatureExtract, err)
		return nil, err
	}

	probs, err := p.predict(tensor)
	if err != nil {
		p.fail(log, metrics.OpPrediction, err)
		return nil, err
	}

	res := &Result{
		RequestID:  reqID,
		Prediction: p.stages.Labels.Decode(probs),
		Candidates: p.stages.Labels.TopN(probs, p.candidates),
	}
	p.stages.Metrics.RecordPrediction(res.Prediction.Code)

	log.Info("species identified",
		logger.String("species", res.Prediction.Name),
		logger.String("code", res.Prediction.Code),
		logger.Float32("confidence", res.Prediction.Confidence))

	p.attachImage(ctx, log, res)

	p.stages.Metrics.RecordOperation(metrics.OpIdentify, metrics.StatusSuccess)
	p.stages.Metrics.RecordDuration(metrics.OpIdentify, time.Since(start).Seconds())
	return res, nil
}

func (p *Pipeline) extract(ctx context.Context, buf myaudio.AudioBuffer) (myaudio.FeatureTensor, error) {
	if p.slots != nil {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			return myaudio.FeatureTensor{}, err
		}
		defer p.slots.Release(1)
	}

	start := time.Now()
	tensor, err := p.stages.Extractor.Extract(ctx, buf)
	p.stages.Metrics.RecordDuration(metrics.OpFeatureExtract, time.Since(start).Seconds())
	if err == nil {
		p.stages.Metrics.RecordOperation(metrics.OpFeatureExtract, metrics.StatusSuccess)
	}
	return tensor, err
}

func (p *Pipeline) predict(tensor myaudio.FeatureTensor) (classifier.ProbabilityVector, error) {
	start := time.Now()
	probs, err := p.stages.Predictor.Predict(tensor)
	p.stages.Metrics.RecordDuration(metrics.OpPrediction, time.Since(start).Seconds())
	if err == nil {
		p.stages.Metrics.RecordOperation(metrics.OpPrediction, metrics.StatusSuccess)
	}
	return probs, err
}

// attachImage locates and fetches the species image, recording a notice when
// none is available and a warning when it cannot be loaded.
func (p *Pipeline) attachImage(ctx context.Context, log logger.Logger, res *Result) {
	if res.Prediction.Name == species.UnknownBird {
		res.Notice = NoImageNotice
		return
	}

	start := time.Now()
	imageURL, found, err := p.stages.Locator.Locate(ctx, res.Prediction.Name)
	p.stages.Metrics.RecordDuration(metrics.OpImageLookup, time.Since(start).Seconds())
	switch {
	case err != nil:
		log.Warn("image lookup failed", logger.Error(err))
		p.stages.Metrics.RecordOperation(metrics.OpImageLookup, metrics.StatusError)
		p.stages.Metrics.RecordError(metrics.OpImageLookup, categoryOf(err))
		res.Notice = NoImageNotice
		return
	case !found:
		p.stages.Metrics.RecordOperation(metrics.OpImageLookup, metrics.StatusNotFound)
		res.Notice = NoImageNotice
		return
	}
	p.stages.Metrics.RecordOperation(metrics.OpImageLookup, metrics.StatusSuccess)
	res.ImageURL = imageURL

	if p.stages.Fetcher == nil {
		return
	}

	start = time.Now()
	img, err := p.stages.Fetcher.Fetch(ctx, imageURL)
	p.stages.Metrics.RecordDuration(metrics.OpImageFetch, time.Since(start).Seconds())
	if err != nil {
		log.Warn("image fetch failed",
			logger.String("image_url", imageURL),
			logger.Error(err))
		p.stages.Metrics.RecordOperation(metrics.OpImageFetch, metrics.StatusError)
		p.stages.Metrics.RecordError(metrics.OpImageFetch, categoryOf(err))
		res.Warning = ImageWarningPrefix + err.Error()
		return
	}
	p.stages.Metrics.RecordOperation(metrics.OpImageFetch, metrics.StatusSuccess)
	p.stages.Metrics.ObserveImageBytes(len(img.Data))
	res.Image = img
}

func (p *Pipeline) fail(log logger.Logger, operation string, err error) {
	log.Warn("identification failed",
		logger.String("operation", operation),
		logger.Error(err))
	p.stages.Metrics.RecordOperation(operation, metrics.StatusError)
	p.stages.Metrics.RecordError(operation, categoryOf(err))
	p.stages.Metrics.RecordOperation(metrics.OpIdentify, metrics.StatusError)
}

// categoryOf returns the enhanced error category, or "generic".
func categoryOf(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}

func configError(msg string) error {
	return errors.New(fmt.Errorf("pipeline: %s", msg)).
		Component("pipeline").
		Category(errors.CategoryConfiguration).
		Build()
}

type noopRecorder struct {
	metrics.NoOpRecorder
}

func (noopRecorder) RecordPrediction(string) {}
func (noopRecorder) ObserveImageBytes(int) {}
