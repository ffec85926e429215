package myaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tphakala/flac"
)

const (
	flacBlockStreamInfo    = 0
	flacBlockVorbisComment = 4
	flacStreamInfoSize     = 34
)

func decodeFLAC(data []byte, limit int) (Signal, error) {
	bitsPerSample, err := inspectFLAC(data)
	if err != nil {
		return Signal{}, fmt.Errorf("invalid FLAC stream: %w", err)
	}
	// The native decoder handles 8, 16 and 24-bit samples only
	if bitsPerSample != 8 && bitsPerSample != 16 && bitsPerSample != 24 {
		return Signal{}, fmt.Errorf("%w: FLAC %d-bit samples", errUnsupportedEncoding, bitsPerSample)
	}

	decoder, err := flac.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Signal{}, fmt.Errorf("invalid FLAC stream: %w", err)
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return Signal{}, err
	}
	bytesPerSample := decoder.BitsPerSample / 8

	// TotalSamples is untrusted; the payload size bounds the initial capacity
	capacity := min(decoder.TotalSamples*int64(decoder.NChannels), int64(len(data)), int64(limit))
	samples := make([]float32, 0, max(capacity, 0))

	// Frames are interleaved little-endian PCM bytes
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return Signal{}, fmt.Errorf("error decoding FLAC frame: %w", err)
		}
		if len(samples)+len(frame)/bytesPerSample > limit {
			return Signal{}, errTooLong(limit)
		}

		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			var sample int32
			switch decoder.BitsPerSample {
			case 8:
				sample = int32(int8(frame[i]))
			case 16:
				sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
			case 24:
				sample = int32(frame[i]) | int32(frame[i+1])<<8 | int32(int8(frame[i+2]))<<16
			}
			samples = append(samples, float32(sample)/divisor)
		}
	}

	return Signal{
		Samples:    samples,
		SampleRate: decoder.SampleRate,
		Channels:   decoder.NChannels,
	}, nil
}

// inspectFLAC walks the metadata blocks and returns the STREAMINFO sample
// depth. Block lengths and comment counts must fit inside data.
func inspectFLAC(data []byte) (int, error) {
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		return 0, fmt.Errorf("missing fLaC marker")
	}

	bitsPerSample := 0
	pos := 4
	for {
		if len(data)-pos < 4 {
			return 0, fmt.Errorf("truncated metadata block header")
		}
		last := data[pos]&0x80 != 0
		kind := data[pos] & 0x7F
		size := int(data[pos+1])<<16 | int(data[pos+2])<<8 | int(data[pos+3])
		pos += 4
		if size > len(data)-pos {
			return 0, fmt.Errorf("metadata block of %d bytes overruns payload", size)
		}
		body := data[pos : pos+size]
		pos += size

		switch kind {
		case flacBlockStreamInfo:
			if size != flacStreamInfoSize {
				return 0, fmt.Errorf("STREAMINFO block is %d bytes", size)
			}
			// 5-bit (depth - 1) straddles bytes 12 and 13
			bitsPerSample = (int(body[12]&0x01)<<4 | int(body[13]>>4)) + 1
		case flacBlockVorbisComment:
			if err := checkVorbisComment(body); err != nil {
				return 0, err
			}
		}

		if last {
			break
		}
	}

	if bitsPerSample == 0 {
		return 0, fmt.Errorf("missing STREAMINFO block")
	}
	return bitsPerSample, nil
}

// checkVorbisComment verifies the declared comment count against the block
// size, since each comment carries at least a 4-byte length.
func checkVorbisComment(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("truncated vorbis comment block")
	}
	vendor := uint64(binary.LittleEndian.Uint32(body))
	rest := uint64(len(body) - 4)
	if vendor+4 > rest {
		return fmt.Errorf("vorbis comment vendor string overruns block")
	}
	rest -= vendor + 4
	count := uint64(binary.LittleEndian.Uint32(body[4+vendor:]))
	if count > rest/4 {
		return fmt.Errorf("vorbis comment count %d overruns block", count)
	}
	return nil
}
