package myaudio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// encodeWAV writes interleaved integer samples as a WAV file and returns its bytes.
func encodeWAV(t *testing.T, data []int, sampleRate, bitDepth, channels, audioFormat int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, audioFormat)
	if len(data) > 0 {
		buf := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           data,
			SourceBitDepth: bitDepth,
		}
		require.NoError(t, enc.Write(buf))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	return out
}

// sineInts returns a 16-bit mono sine tone.
func sineInts(freq float64, sampleRate int, seconds, amplitude float64) []int {
	n := int(seconds * float64(sampleRate))
	out := make([]int, n)
	for i := range out {
		out[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

// sineFloats returns a mono sine tone as float samples.
func sineFloats(freq float64, sampleRate int, seconds float64) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

// readFixture loads a file from testdata.
func readFixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// flacBlock is a raw metadata block appended after STREAMINFO.
type flacBlock struct {
	kind byte
	body []byte
}

// flacStream builds a FLAC marker and metadata blocks with no audio frames.
func flacStream(sampleRate, channels, bitsPerSample int, totalSamples uint64, extra ...flacBlock) []byte {
	info := make([]byte, 0, 34)
	info = binary.BigEndian.AppendUint16(info, 4096)
	info = binary.BigEndian.AppendUint16(info, 4096)
	info = append(info, 0, 0, 0, 0, 0, 0)
	packed := uint64(sampleRate)<<44 | uint64(channels-1)<<41 | uint64(bitsPerSample-1)<<36 | totalSamples&(1<<36-1)
	info = binary.BigEndian.AppendUint64(info, packed)
	info = append(info, make([]byte, 16)...)

	blocks := append([]flacBlock{{kind: 0, body: info}}, extra...)
	out := []byte("fLaC")
	for i, b := range blocks {
		head := b.kind
		if i == len(blocks)-1 {
			head |= 0x80
		}
		n := len(b.body)
		out = append(out, head, byte(n>>16), byte(n>>8), byte(n))
		out = append(out, b.body...)
	}
	return out
}

// vorbisCommentBody builds a VORBIS_COMMENT block declaring count comments
// but carrying only the ones given.
func vorbisCommentBody(vendor string, count uint32, comments ...string) []byte {
	body := binary.LittleEndian.AppendUint32(nil, uint32(len(vendor)))
	body = append(body, vendor...)
	body = binary.LittleEndian.AppendUint32(body, count)
	for _, c := range comments {
		body = binary.LittleEndian.AppendUint32(body, uint32(len(c)))
		body = append(body, c...)
	}
	return body
}

// extensibleWAV builds a 16-bit mono WAVE_FORMAT_EXTENSIBLE file whose
// SubFormat GUID starts with subFormat.
func extensibleWAV(subFormat uint16, sampleRate int, samples []int16) []byte {
	const guidTail = "\x00\x00\x00\x00\x10\x00\x80\x00\x00\xAA\x00\x38\x9B\x71"

	fmtChunk := binary.LittleEndian.AppendUint16(nil, wavFormatExtensible)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 1)
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, uint32(sampleRate))
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, uint32(sampleRate*2))
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 2)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 16)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 22)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 16)
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, 0x4)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, subFormat)
	fmtChunk = append(fmtChunk, guidTail...)

	pcm := make([]byte, 0, 2*len(samples))
	for _, v := range samples {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
	}

	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(4+8+len(fmtChunk)+8+len(pcm)))
	out = append(out, "WAVEfmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fmtChunk)))
	out = append(out, fmtChunk...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	return append(out, pcm...)
}
