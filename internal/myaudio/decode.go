// Package myaudio turns uploaded audio payloads into mono float samples and
// mel spectrogram feature tensors.
package myaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
)

// AudioBuffer is a raw upload. Filename is only a format hint.
type AudioBuffer struct {
	Data     []byte
	Filename string
}

// Signal holds decoded interleaved samples in [-1, 1] at the native rate.
type Signal struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (s Signal) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// Duration returns the signal length.
func (s Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// Mono averages channels into a single channel.
func (s Signal) Mono() []float32 {
	if s.Channels <= 1 {
		return s.Samples
	}
	frames := s.Frames()
	out := make([]float32, frames)
	inv := 1 / float32(s.Channels)
	for i := range frames {
		var sum float32
		base := i * s.Channels
		for c := range s.Channels {
			sum += s.Samples[base+c]
		}
		out[i] = sum * inv
	}
	return out
}

// MaxDecodedSamples bounds decoder output whatever the container headers
// claim: ten minutes of 48 kHz stereo.
const MaxDecodedSamples = 10 * 60 * 48000 * 2

// Decoder decodes supported containers natively and hands anything else to ffmpeg.
type Decoder struct {
	ffmpeg     *FFmpegConverter // nil when ffmpeg is unavailable
	maxSamples int
	log        logger.Logger
}

// NewDecoder creates a decoder. ffmpeg may be nil to disable the fallback.
func NewDecoder(ffmpeg *FFmpegConverter) *Decoder {
	return &Decoder{ffmpeg: ffmpeg, maxSamples: MaxDecodedSamples, log: GetLogger()}
}

// Decode converts buf into a Signal. Every failure matches ErrDecode.
func (d *Decoder) Decode(ctx context.Context, buf AudioBuffer) (Signal, error) {
	if len(buf.Data) == 0 {
		return Signal{}, newDecodeError(FormatUnknown, fmt.Errorf("empty payload"))
	}

	format := DetectFormat(buf.Data, buf.Filename)
	start := time.Now()

	var (
		sig Signal
		err error
	)
	switch format {
	case FormatWAV:
		sig, err = decodeWAV(buf.Data)
	case FormatFLAC:
		sig, err = decodeFLAC(buf.Data, d.maxSamples)
	case FormatMP3:
		sig, err = decodeMP3(buf.Data, d.maxSamples)
	case FormatOGG:
		sig, err = decodeOGG(buf.Data, d.maxSamples)
	default:
		err = errUnsupportedEncoding
	}

	if errors.Is(err, errUnsupportedEncoding) {
		if d.ffmpeg == nil {
			return Signal{}, newDecodeError(format, fmt.Errorf("unsupported format and ffmpeg is not available"))
		}
		d.log.Debug("falling back to ffmpeg",
			logger.String("format", format.String()),
			logger.String("filename", buf.Filename))
		wavData, convErr := d.ffmpeg.ToWAV(ctx, buf.Data, buf.Filename)
		if convErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Signal{}, ctxErr
			}
			return Signal{}, newDecodeError(format, convErr)
		}
		sig, err = decodeWAV(wavData)
	}

	if err != nil {
		return Signal{}, newDecodeError(format, err)
	}
	if sig.Frames() == 0 || sig.SampleRate <= 0 {
		return Signal{}, newDecodeError(format, fmt.Errorf("payload decoded to zero samples"))
	}

	d.log.Debug("audio decoded",
		logger.String("format", format.String()),
		logger.Int("sample_rate", sig.SampleRate),
		logger.Int("channels", sig.Channels),
		logger.Duration("length", sig.Duration()),
		logger.Duration("elapsed", time.Since(start)))

	return sig, nil
}

// errTooLong reports decoded output past the sample limit.
func errTooLong(limit int) error {
	return fmt.Errorf("decoded audio exceeds %d samples", limit)
}

// getAudioDivisor returns the full-scale value for signed integer PCM.
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio bit depth: %d", bitDepth)
	}
}
