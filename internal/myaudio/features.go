package myaudio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
)

// Spectrogram defaults, matching the model input (1, 128, 128, 1).
const (
	DefaultNFFT      = 2048
	DefaultHopLength = 512
	DefaultMelBands  = 128
	DefaultFrames    = 128
	DefaultTopDB     = 80.0

	// amin floors power before the log; reference power is 1.0
	amin = 1e-10

	ctxCheckInterval = 64
)

// FeatureConfig holds mel spectrogram parameters.
type FeatureConfig struct {
	NFFT      int
	HopLength int
	MelBands  int
	Frames    int
	TopDB     float64
}

// DefaultFeatureConfig returns the parameters the model was trained with.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		NFFT:      DefaultNFFT,
		HopLength: DefaultHopLength,
		MelBands:  DefaultMelBands,
		Frames:    DefaultFrames,
		TopDB:     DefaultTopDB,
	}
}

// Validate checks that the parameters describe a usable spectrogram.
func (c FeatureConfig) Validate() error {
	switch {
	case c.NFFT < 2 || c.NFFT&(c.NFFT-1) != 0:
		return fmt.Errorf("n_fft must be a power of two, got %d", c.NFFT)
	case c.HopLength <= 0:
		return fmt.Errorf("hop length must be positive, got %d", c.HopLength)
	case c.MelBands <= 0 || c.MelBands > c.NFFT/2+1:
		return fmt.Errorf("mel bands must be in 1..%d, got %d", c.NFFT/2+1, c.MelBands)
	case c.Frames <= 0:
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	case c.TopDB <= 0:
		return fmt.Errorf("top_db must be positive, got %g", c.TopDB)
	}
	return nil
}

// FeatureTensor is a log-mel spectrogram shaped (1, MelBands, Frames, 1),
// stored row-major so Data[mel*Frames+frame] is one cell.
type FeatureTensor struct {
	Data     []float32
	MelBands int
	Frames   int
}

// Shape returns the model input shape.
func (t FeatureTensor) Shape() [4]int {
	return [4]int{1, t.MelBands, t.Frames, 1}
}

// At returns the dB value for a mel band and frame.
func (t FeatureTensor) At(mel, frame int) float32 {
	return t.Data[mel*t.Frames+frame]
}

// Extractor decodes uploads and turns them into feature tensors.
type Extractor struct {
	cfg     FeatureConfig
	decoder *Decoder
	window  []float64
	log     logger.Logger

	mu      sync.Mutex
	filters map[int]*melFilterBank // by sample rate
}

// NewExtractor creates an extractor. decoder may be nil for MelSpectrogram-only use.
func NewExtractor(cfg FeatureConfig, decoder *Decoder) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryConfiguration).
			Build()
	}
	// go-dsp's Hann is symmetric; drop the last point for the periodic window
	win := window.Hann(cfg.NFFT + 1)[:cfg.NFFT]
	return &Extractor{
		cfg:     cfg,
		decoder: decoder,
		window:  win,
		log:     GetLogger(),
		filters: make(map[int]*melFilterBank),
	}, nil
}

// Config returns the spectrogram parameters.
func (e *Extractor) Config() FeatureConfig { return e.cfg }

// Extract decodes buf, mixes it to mono and computes the feature tensor.
func (e *Extractor) Extract(ctx context.Context, buf AudioBuffer) (FeatureTensor, error) {
	if e.decoder == nil {
		return FeatureTensor{}, errors.Newf("extractor has no decoder").
			Component("myaudio").
			Category(errors.CategoryConfiguration).
			Build()
	}
	start := time.Now()

	sig, err := e.decoder.Decode(ctx, buf)
	if err != nil {
		return FeatureTensor{}, err
	}

	tensor, err := e.MelSpectrogram(ctx, sig.Mono(), sig.SampleRate)
	if err != nil {
		return FeatureTensor{}, err
	}

	e.log.Debug("features extracted",
		logger.String("filename", buf.Filename),
		logger.Int("sample_rate", sig.SampleRate),
		logger.Duration("audio_length", sig.Duration()),
		logger.Duration("elapsed", time.Since(start)))

	return tensor, nil
}

// MelSpectrogram computes the dB-scaled mel spectrogram of mono samples,
// truncated or zero-padded to the configured frame count. The top_db floor is
// relative to the loudest cell of the whole signal, not only the kept frames.
func (e *Extractor) MelSpectrogram(ctx context.Context, samples []float32, sampleRate int) (FeatureTensor, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return FeatureTensor{}, newDecodeError(FormatUnknown, fmt.Errorf("no samples to analyse"))
	}

	cfg := e.cfg
	fb := e.filterBank(sampleRate)
	half := cfg.NFFT / 2
	totalFrames := 1 + len(samples)/cfg.HopLength

	kept := min(totalFrames, cfg.Frames)
	melDB := make([]float64, kept*cfg.MelBands) // frame-major scratch
	maxDB := math.Inf(-1)

	frame := make([]float64, cfg.NFFT)
	power := make([]float64, half+1)
	mel := make([]float64, cfg.MelBands)

	for t := range totalFrames {
		if t%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return FeatureTensor{}, err
			}
		}

		// centred frame over the zero-padded signal
		offset := t*cfg.HopLength - half
		for k := range frame {
			idx := offset + k
			if idx < 0 || idx >= len(samples) {
				frame[k] = 0
				continue
			}
			s := float64(samples[idx])
			if math.IsNaN(s) || math.IsInf(s, 0) {
				s = 0
			}
			frame[k] = s * e.window[k]
		}

		spectrum := fft.FFTReal(frame)
		for k := range power {
			re, im := real(spectrum[k]), imag(spectrum[k])
			power[k] = re*re + im*im
		}
		fb.apply(power, mel)

		for m, p := range mel {
			db := 10 * math.Log10(math.Max(amin, p))
			if db > maxDB {
				maxDB = db
			}
			if t < kept {
				melDB[t*cfg.MelBands+m] = db
			}
		}
	}

	floor := maxDB - cfg.TopDB
	tensor := FeatureTensor{
		Data:     make([]float32, cfg.MelBands*cfg.Frames),
		MelBands: cfg.MelBands,
		Frames:   cfg.Frames,
	}
	for t := range kept {
		for m := range cfg.MelBands {
			tensor.Data[m*cfg.Frames+t] = float32(math.Max(melDB[t*cfg.MelBands+m], floor))
		}
	}

	return tensor, nil
}

func (e *Extractor) filterBank(sampleRate int) *melFilterBank {
	e.mu.Lock()
	defer e.mu.Unlock()
	fb, ok := e.filters[sampleRate]
	if !ok {
		fb = newMelFilterBank(sampleRate, e.cfg.NFFT, e.cfg.MelBands)
		e.filters[sampleRate] = fb
	}
	return fb
}
