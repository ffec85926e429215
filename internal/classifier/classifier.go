// Package classifier runs the species model on mel spectrogram tensors.
package classifier

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
	"github.com/birdsong-go/birdsong/internal/myaudio"
)

// Backend names accepted in classifier.backend.
const (
	BackendTFLite = "tflite"
	BackendONNX   = "onnx"
)

// ErrShape is matched by every tensor shape or cardinality mismatch.
var ErrShape = errors.NewStd("tensor shape mismatch")

// InputShape is the (batch, mel bins, frames, channel) shape the model accepts.
var InputShape = []int64{1, myaudio.DefaultMelBands, myaudio.DefaultFrames, 1}

// ProbabilityVector holds one score per label, in label order.
type ProbabilityVector []float32

// Backend is a loaded inference runtime. Implementations need not be safe for
// concurrent use; Classifier serialises calls.
type Backend interface {
	// Name identifies the runtime, e.g. "tflite".
	Name() string
	// InputShape returns the model's first input dimensions. Non-positive
	// values mark dynamic dimensions.
	InputShape() []int64
	// OutputSize returns the length of the last output dimension.
	OutputSize() int
	// Invoke runs one inference and returns a fresh copy of the output.
	Invoke(input []float32) ([]float32, error)
	Close() error
}

// Classifier owns one model. Construct it once at startup and share it.
type Classifier struct {
	mu         sync.Mutex
	backend    Backend
	inputLen   int
	outputSize int
	log        logger.Logger
}

// New wraps a loaded backend after asserting its input shape and that its
// output cardinality equals labelCount.
func New(backend Backend, labelCount int) (*Classifier, error) {
	if err := checkInputShape(backend.InputShape()); err != nil {
		return nil, newShapeError(err, backend.Name())
	}
	if out := backend.OutputSize(); out != labelCount {
		return nil, errors.New(fmt.Errorf("%w: model has %d output classes but %d labels are loaded", ErrShape, out, labelCount)).
			Component("classifier").
			Category(errors.CategoryModelShape).
			Context("backend", backend.Name()).
			Context("model_classes", out).
			Context("labels", labelCount).
			Build()
	}

	inputLen := 1
	for _, d := range InputShape {
		inputLen *= int(d)
	}

	return &Classifier{
		backend:    backend,
		inputLen:   inputLen,
		outputSize: labelCount,
		log:        GetLogger(),
	}, nil
}

// NewFromSettings loads the configured model with the configured backend.
func NewFromSettings(settings *conf.ClassifierSettings, labelCount int) (*Classifier, error) {
	start := time.Now()
	threads := determineThreadCount(settings.Threads)

	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(settings.Backend) {
	case BackendTFLite, "":
		backend, err = newTFLiteBackend(settings.ModelPath, threads)
	case BackendONNX:
		backend, err = newONNXBackend(settings.ModelPath, &settings.ONNX, threads)
	default:
		return nil, errors.Newf("unknown classifier backend %q", settings.Backend).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	c, err := New(backend, labelCount)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	c.log.Info("model loaded",
		logger.String("backend", backend.Name()),
		logger.String("model", settings.ModelPath),
		logger.Int("threads", threads),
		logger.Int("classes", labelCount),
		logger.Duration("elapsed", time.Since(start)))

	return c, nil
}

// Backend returns the runtime name.
func (c *Classifier) Backend() string { return c.backend.Name() }

// Classes returns the model output cardinality.
func (c *Classifier) Classes() int { return c.outputSize }

// Predict runs one synchronous inference. Calls are serialised.
func (c *Classifier) Predict(tensor myaudio.FeatureTensor) (ProbabilityVector, error) {
	shape := tensor.Shape()
	for i, d := range InputShape {
		if int64(shape[i]) != d {
			return nil, newShapeError(fmt.Errorf("input tensor shape %v, model expects %v", shape, InputShape), c.backend.Name())
		}
	}
	if len(tensor.Data) != c.inputLen {
		return nil, newShapeError(fmt.Errorf("input tensor holds %d values, model expects %d", len(tensor.Data), c.inputLen), c.backend.Name())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	out, err := c.backend.Invoke(tensor.Data)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryInference).
			Context("backend", c.backend.Name()).
			Timing("inference", time.Since(start)).
			Build()
	}
	if len(out) != c.outputSize {
		return nil, newShapeError(fmt.Errorf("model returned %d scores, expected %d", len(out), c.outputSize), c.backend.Name())
	}

	c.log.Trace("inference done",
		logger.Duration("elapsed", time.Since(start)))

	return ProbabilityVector(out), nil
}

// Close releases the backend.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Close()
}

// checkInputShape accepts a dynamic batch dimension; every other dimension must match.
func checkInputShape(dims []int64) error {
	if len(dims) != len(InputShape) {
		return fmt.Errorf("model input has %d dimensions %v, expected %v", len(dims), dims, InputShape)
	}
	got := slices.Clone(dims)
	if got[0] <= 0 {
		got[0] = InputShape[0]
	}
	if !slices.Equal(got, InputShape) {
		return fmt.Errorf("model input shape %v, expected %v", dims, InputShape)
	}
	return nil
}

func newShapeError(reason error, backend string) error {
	return errors.New(fmt.Errorf("%w: %w", ErrShape, reason)).
		Component("classifier").
		Category(errors.CategoryModelShape).
		Context("backend", backend).
		Build()
}
