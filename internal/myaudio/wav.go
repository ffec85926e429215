package myaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

func decodeWAV(data []byte) (Signal, error) {
	fmtChunk, err := wavFormatChunk(data)
	if err != nil {
		return Signal{}, fmt.Errorf("invalid WAV file format: %w", err)
	}

	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return Signal{}, fmt.Errorf("invalid WAV file format")
	}

	// IEEE float, A-law and other encodings are left to ffmpeg
	switch decoder.WavAudioFormat {
	case wavFormatPCM:
	case wavFormatExtensible:
		if sub := wavSubFormat(fmtChunk); sub != wavFormatPCM {
			return Signal{}, fmt.Errorf("%w: WAV extensible sub-format 0x%04x", errUnsupportedEncoding, sub)
		}
	default:
		return Signal{}, fmt.Errorf("%w: WAV format tag 0x%04x", errUnsupportedEncoding, decoder.WavAudioFormat)
	}

	bitDepth := int(decoder.BitDepth)
	divisor, err := getAudioDivisor(bitDepth)
	if err != nil {
		return Signal{}, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("error reading WAV samples: %w", err)
	}

	samples := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		// 8-bit PCM is unsigned with a 128 midpoint
		for i, v := range buf.Data {
			samples[i] = float32(v-128) / divisor
		}
	} else {
		for i, v := range buf.Data {
			samples[i] = float32(v) / divisor
		}
	}

	return Signal{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}

// wavFormatChunk returns the fmt chunk body. Chunk sizes are checked against
// the payload before anything is allocated from them.
func wavFormatChunk(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil {
		return nil, err
	}
	if parser.Format != riff.WavFormatID {
		return nil, fmt.Errorf("RIFF form %q is not WAVE", parser.Format[:])
	}

	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			return nil, fmt.Errorf("fmt chunk not found: %w", err)
		}
		if chunk.Size > r.Len() {
			return nil, fmt.Errorf("%q chunk of %d bytes overruns payload", chunk.ID[:], chunk.Size)
		}
		if chunk.ID == riff.FmtID {
			body := make([]byte, chunk.Size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, err
			}
			return body, nil
		}
		if _, err := r.Seek(int64(chunk.Size), io.SeekCurrent); err != nil {
			return nil, err
		}
	}
}

// wavSubFormat returns the leading format code of the WAVE_FORMAT_EXTENSIBLE
// SubFormat GUID, or 0 when the fmt chunk is too short to carry one.
func wavSubFormat(fmtChunk []byte) uint16 {
	const subFormatOffset = 24
	if len(fmtChunk) < subFormatOffset+16 {
		return 0
	}
	return binary.LittleEndian.Uint16(fmtChunk[subFormatOffset:])
}
