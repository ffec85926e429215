package myaudio

import (
	"fmt"

	"github.com/birdsong-go/birdsong/internal/errors"
)

// ErrDecode is matched by every failure to turn an upload into samples:
// empty, malformed, unsupported or silent-by-truncation payloads.
var ErrDecode = errors.NewStd("audio decode failed")

// errUnsupportedEncoding marks containers the native decoders recognise but
// cannot decode (e.g. IEEE float or compressed WAV); these go to ffmpeg.
var errUnsupportedEncoding = errors.NewStd("unsupported encoding")

// newDecodeError wraps reason so that it matches ErrDecode.
func newDecodeError(format Format, reason error) error {
	return errors.New(fmt.Errorf("%w: %s: %w", ErrDecode, format, reason)).
		Component("myaudio").
		Category(errors.CategoryAudioDecode).
		Context("format", format.String()).
		Build()
}
