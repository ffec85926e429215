package myaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo
const mp3Channels = 2

func decodeMP3(data []byte, limit int) (Signal, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Signal{}, fmt.Errorf("invalid MP3 stream: %w", err)
	}

	// One extra byte tells a stream at the limit from one past it
	pcm, err := io.ReadAll(io.LimitReader(decoder, int64(limit)*2+1))
	if err != nil {
		return Signal{}, fmt.Errorf("error decoding MP3 frames: %w", err)
	}
	if len(pcm) > limit*2 {
		return Signal{}, errTooLong(limit)
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
	}

	return Signal{
		Samples:    samples,
		SampleRate: decoder.SampleRate(),
		Channels:   mp3Channels,
	}, nil
}
