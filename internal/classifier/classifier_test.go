package classifier

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/myaudio"
)

// fakeBackend returns a fixed vector and records call concurrency.
type fakeBackend struct {
	shape    []int64
	scores   []float32
	classes  int
	err      error
	active   atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	closed   atomic.Bool
	lastSize int
}

func newFakeBackend(scores []float32) *fakeBackend {
	return &fakeBackend{shape: []int64{1, 128, 128, 1}, scores: scores, classes: len(scores)}
}

func (f *fakeBackend) Name() string { return "fake" }
func (f *fakeBackend) InputShape() []int64 { return f.shape }
func (f *fakeBackend) OutputSize() int { return f.classes }
func (f *fakeBackend) Close() error { f.closed.Store(true); return nil }

func (f *fakeBackend) Invoke(input []float32) ([]float32, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	f.calls.Add(1)
	f.lastSize = len(input)
	runtime.Gosched()

	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, len(f.scores))
	copy(out, f.scores)
	return out, nil
}

func validTensor() myaudio.FeatureTensor {
	return myaudio.FeatureTensor{Data: make([]float32, 128*128), MelBands: 128, Frames: 128}
}

func TestNewValidatesModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		shape   []int64
		classes int
		labels  int
		wantErr bool
	}{
		{"matching", []int64{1, 128, 128, 1}, 12, 12, false},
		{"dynamic batch", []int64{-1, 128, 128, 1}, 12, 12, false},
		{"too few labels", []int64{1, 128, 128, 1}, 12, 11, true},
		{"too many labels", []int64{1, 128, 128, 1}, 12, 13, true},
		{"wrong frames", []int64{1, 128, 256, 1}, 12, 12, true},
		{"channels first", []int64{1, 1, 128, 128}, 12, 12, true},
		{"missing channel axis", []int64{1, 128, 128}, 12, 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(make([]float32, tt.classes))
			fb.shape = tt.shape
			c, err := New(fb, tt.labels)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrShape)
				assert.True(t, errors.IsCategory(err, errors.CategoryModelShape))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.labels, c.Classes())
			assert.Equal(t, "fake", c.Backend())
		})
	}
}

func TestPredictReturnsModelScores(t *testing.T) {
	t.Parallel()

	scores := []float32{0.9, 0.05, 0.05}
	fb := newFakeBackend(scores)
	c, err := New(fb, 3)
	require.NoError(t, err)

	got, err := c.Predict(validTensor())
	require.NoError(t, err)
	assert.Equal(t, ProbabilityVector(scores), got)
	assert.Equal(t, 128*128, fb.lastSize)
}

func TestPredictIsIdempotent(t *testing.T) {
	t.Parallel()

	c, err := New(newFakeBackend([]float32{0.1, 0.7, 0.2}), 3)
	require.NoError(t, err)

	a, err := c.Predict(validTensor())
	require.NoError(t, err)
	a[0] = 42 // callers own the returned slice

	b, err := c.Predict(validTensor())
	require.NoError(t, err)
	assert.Equal(t, ProbabilityVector{0.1, 0.7, 0.2}, b)
}

func TestPredictRejectsWrongShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tensor myaudio.FeatureTensor
	}{
		{"wrong frames", myaudio.FeatureTensor{Data: make([]float32, 128*64), MelBands: 128, Frames: 64}},
		{"wrong bands", myaudio.FeatureTensor{Data: make([]float32, 64*128), MelBands: 64, Frames: 128}},
		{"short data", myaudio.FeatureTensor{Data: make([]float32, 100), MelBands: 128, Frames: 128}},
		{"empty", myaudio.FeatureTensor{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend([]float32{1})
			c, err := New(fb, 1)
			require.NoError(t, err)

			_, err = c.Predict(tt.tensor)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrShape)
			assert.Zero(t, fb.calls.Load(), "backend must not run on a bad tensor")
		})
	}
}

func TestPredictBackendFailure(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend([]float32{1, 0})
	fb.err = fmt.Errorf("tensor invoke failed")
	c, err := New(fb, 2)
	require.NoError(t, err)

	_, err = c.Predict(validTensor())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
	assert.NotErrorIs(t, err, ErrShape)
}

func TestPredictOutputLengthMismatch(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend([]float32{1, 0, 0})
	fb.classes = 2 // reports 2 classes but returns 3 scores
	c, err := New(fb, 2)
	require.NoError(t, err)

	_, err = c.Predict(validTensor())
	assert.ErrorIs(t, err, ErrShape)
}

func TestPredictIsSerialised(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend([]float32{0.5, 0.5})
	c, err := New(fb, 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			_, err := c.Predict(validTensor())
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(16), fb.calls.Load())
	assert.Equal(t, int32(1), fb.maxSeen.Load())
}

func TestClose(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend([]float32{1})
	c, err := New(fb, 1)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, fb.closed.Load())
}

func TestNewFromSettingsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings conf.ClassifierSettings
		category errors.ErrorCategory
	}{
		{"unknown backend", conf.ClassifierSettings{Backend: "pytorch", ModelPath: "model.pt"}, errors.CategoryConfiguration},
		{"missing tflite model", conf.ClassifierSettings{Backend: "tflite", ModelPath: "/nonexistent/model.tflite"}, errors.CategoryModelLoad},
		{"missing onnx model", conf.ClassifierSettings{Backend: "onnx", ModelPath: "/nonexistent/model.onnx"}, errors.CategoryModelLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFromSettings(&tt.settings, 12)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestDetermineThreadCount(t *testing.T) {
	t.Parallel()

	cpus := runtime.NumCPU()
	assert.Equal(t, 1, determineThreadCount(1))
	assert.Equal(t, cpus, determineThreadCount(cpus+100))

	auto := determineThreadCount(0)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, cpus)
}
