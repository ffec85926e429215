package myaudio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// Vorbis blocks never exceed 8192 samples per channel
const oggReadFrames = 8192

func decodeOGG(data []byte, limit int) (Signal, error) {
	reader, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		// Opus and FLAC-in-Ogg share the container; let ffmpeg try them
		return Signal{}, fmt.Errorf("%w: ogg vorbis: %w", errUnsupportedEncoding, err)
	}
	channels := reader.Channels()
	if channels <= 0 {
		return Signal{}, fmt.Errorf("ogg vorbis stream declares %d channels", channels)
	}

	// The final granule position is untrusted, so grow as packets decode
	chunk := make([]float32, oggReadFrames*channels)
	var samples []float32
	for {
		n, err := reader.Read(chunk)
		if len(samples)+n > limit {
			return Signal{}, errTooLong(limit)
		}
		samples = append(samples, chunk[:n]...)
		if err == io.EOF {
			break
		} else if err != nil {
			return Signal{}, fmt.Errorf("error decoding Vorbis packets: %w", err)
		}
		if n == 0 {
			return Signal{}, fmt.Errorf("error decoding Vorbis packets: %w", io.ErrNoProgress)
		}
	}

	return Signal{
		Samples:    samples,
		SampleRate: reader.SampleRate(),
		Channels:   channels,
	}, nil
}
