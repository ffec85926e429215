package myaudio

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdsong-go/birdsong/internal/errors"
)

func TestDecodeWAV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       []int
		bitDepth   int
		channels   int
		wantFirst  []float32
		wantFrames int
	}{
		{
			name:       "16-bit mono",
			data:       []int{16384, -16384, 0, 32767},
			bitDepth:   16,
			channels:   1,
			wantFirst:  []float32{0.5, -0.5, 0},
			wantFrames: 4,
		},
		{
			name:       "16-bit stereo",
			data:       []int{16384, 0, -16384, 0},
			bitDepth:   16,
			channels:   2,
			wantFirst:  []float32{0.5, 0, -0.5, 0},
			wantFrames: 2,
		},
		{
			name:       "24-bit mono",
			data:       []int{4194304, -4194304},
			bitDepth:   24,
			channels:   1,
			wantFirst:  []float32{0.5, -0.5},
			wantFrames: 2,
		},
		{
			name:       "8-bit unsigned midpoint",
			data:       []int{192, 64, 128},
			bitDepth:   8,
			channels:   1,
			wantFirst:  []float32{0.5, -0.5, 0},
			wantFrames: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := encodeWAV(t, tt.data, 22050, tt.bitDepth, tt.channels, 1)
			sig, err := NewDecoder(nil).Decode(context.Background(), AudioBuffer{Data: raw, Filename: "clip.wav"})
			require.NoError(t, err)

			assert.Equal(t, 22050, sig.SampleRate)
			assert.Equal(t, tt.channels, sig.Channels)
			assert.Equal(t, tt.wantFrames, sig.Frames())
			for i, want := range tt.wantFirst {
				assert.InDelta(t, want, sig.Samples[i], 1e-4, "sample %d", i)
			}
		})
	}
}

func TestDecodeFailuresMatchErrDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  func(t *testing.T) AudioBuffer
	}{
		{"empty payload", func(t *testing.T) AudioBuffer { return AudioBuffer{} }},
		{"garbage with wav name", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("definitely not audio"), Filename: "clip.wav"}
		}},
		{"garbage with unknown name", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("definitely not audio"), Filename: "clip.xyz"}
		}},
		{"truncated riff header", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("RIFF\x24\x00\x00\x00WAVE"), Filename: "clip.wav"}
		}},
		{"wav without samples", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: encodeWAV(t, nil, 22050, 16, 1, 1), Filename: "clip.wav"}
		}},
		{"float wav without ffmpeg", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: encodeWAV(t, []int{1, 2, 3, 4}, 22050, 32, 1, 3), Filename: "clip.wav"}
		}},
		{"corrupt mp3", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("ID3\x03\x00\x00\x00\x00\x00\x00junk"), Filename: "clip.mp3"}
		}},
		{"corrupt ogg without ffmpeg", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("OggS\x00\x02junkjunkjunk"), Filename: "clip.ogg"}
		}},
		{"corrupt flac", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("fLaC\x00\x00"), Filename: "clip.flac"}
		}},
		{"flac header claiming 2^36 samples on 8 channels", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: flacStream(44100, 8, 16, 1<<36-1), Filename: "clip.flac"}
		}},
		{"flac vorbis comment count overruns block", func(t *testing.T) AudioBuffer {
			block := flacBlock{kind: 4, body: vorbisCommentBody("enc", 0xFFFFFFFF)}
			return AudioBuffer{Data: flacStream(44100, 1, 16, 0, block), Filename: "clip.flac"}
		}},
		{"flac metadata block overruns payload", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("fLaC\x80\xff\xff\xff\x00\x00"), Filename: "clip.flac"}
		}},
		{"flac without streaminfo", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("fLaC\x81\x00\x00\x02\x00\x00"), Filename: "clip.flac"}
		}},
		{"ogg headers without audio pages", func(t *testing.T) AudioBuffer {
			data := readFixture(t, "vorbis_huge_granule.ogg")
			return AudioBuffer{Data: data[:3932], Filename: "clip.ogg"}
		}},
		{"wav fmt chunk overruns payload", func(t *testing.T) AudioBuffer {
			return AudioBuffer{Data: []byte("RIFF\x24\x00\x00\x00WAVEfmt \xf0\xff\xff\xff\x01\x00"), Filename: "clip.wav"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewDecoder(nil).Decode(context.Background(), tt.buf(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
			assert.True(t, errors.IsCategory(err, errors.CategoryAudioDecode))
		})
	}
}

func TestDecodeFixtures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		fixture    string
		sampleRate int
		channels   int
		minFrames  int
		maxFrames  int
		wantFirst  []float32
	}{
		{
			name:       "flac 16-bit mono",
			fixture:    "pcm16_mono.flac",
			sampleRate: 22050,
			channels:   1,
			minFrames:  11025,
			maxFrames:  11025,
			wantFirst:  []float32{0.5, -0.5, 0, 32767.0 / 32768},
		},
		{
			name:       "flac 24-bit stereo sign extension",
			fixture:    "pcm24_stereo.flac",
			sampleRate: 8000,
			channels:   2,
			minFrames:  800,
			maxFrames:  800,
			wantFirst:  []float32{0.5, -0.5, -1, 8388607.0 / 8388608},
		},
		{
			name:       "mp3 mpeg-2 layer III",
			fixture:    "mpeg2_mono.mp3",
			sampleRate: 22050,
			channels:   2,
			minFrames:  576,
			maxFrames:  40 * 576,
		},
		{
			name:       "ogg vorbis",
			fixture:    "vorbis_mono.ogg",
			sampleRate: 44100,
			channels:   1,
			minFrames:  44100,
			maxFrames:  44100,
		},
		{
			name:       "ogg vorbis with final granule near 2^40",
			fixture:    "vorbis_huge_granule.ogg",
			sampleRate: 44100,
			channels:   1,
			minFrames:  44100,
			maxFrames:  2 * 44100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := AudioBuffer{Data: readFixture(t, tt.fixture), Filename: tt.fixture}
			sig, err := NewDecoder(nil).Decode(context.Background(), buf)
			require.NoError(t, err)

			assert.Equal(t, tt.sampleRate, sig.SampleRate)
			assert.Equal(t, tt.channels, sig.Channels)
			assert.GreaterOrEqual(t, sig.Frames(), tt.minFrames)
			assert.LessOrEqual(t, sig.Frames(), tt.maxFrames)
			for i, want := range tt.wantFirst {
				assert.InDelta(t, want, sig.Samples[i], 1e-6, "sample %d", i)
			}
			for _, v := range sig.Samples {
				require.True(t, v >= -1 && v <= 1, "sample %v out of range", v)
			}
		})
	}
}

func TestDecodeHandsUnsupportedEncodingsToFFmpeg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     []byte
		filename string
	}{
		{"flac 12-bit", flacStream(44100, 1, 12, 44100), "clip.flac"},
		{"flac 20-bit", flacStream(48000, 2, 20, 48000), "clip.flac"},
		{"flac 32-bit", flacStream(48000, 2, 32, 48000), "clip.flac"},
		{"wav extensible float", extensibleWAV(3, 22050, []int16{1, 2, 3, 4}), "clip.wav"},
		{"wav extensible a-law", extensibleWAV(6, 22050, []int16{1, 2, 3, 4}), "clip.wav"},
		{"ogg container without vorbis", []byte("OggS\x00\x02junkjunkjunk"), "clip.ogg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewDecoder(nil).Decode(context.Background(), AudioBuffer{Data: tt.data, Filename: tt.filename})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
			assert.ErrorContains(t, err, "ffmpeg is not available")
		})
	}
}

func TestDecodeExtensiblePCM(t *testing.T) {
	t.Parallel()

	raw := extensibleWAV(wavFormatPCM, 16000, []int16{16384, -16384, 0, 32767})
	sig, err := NewDecoder(nil).Decode(context.Background(), AudioBuffer{Data: raw, Filename: "clip.wav"})
	require.NoError(t, err)

	assert.Equal(t, 16000, sig.SampleRate)
	assert.Equal(t, 1, sig.Channels)
	assert.Equal(t, 4, sig.Frames())
	assert.InDeltaSlice(t, []float32{0.5, -0.5, 0, 32767.0 / 32768}, sig.Samples, 1e-6)
}

func TestDecodeEnforcesSampleLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fixture string
	}{
		{"flac", "pcm16_mono.flac"},
		{"mp3", "mpeg2_mono.mp3"},
		{"ogg", "vorbis_mono.ogg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := &Decoder{maxSamples: 1000, log: GetLogger()}
			_, err := d.Decode(context.Background(), AudioBuffer{Data: readFixture(t, tt.fixture), Filename: tt.fixture})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
			assert.ErrorContains(t, err, "exceeds 1000 samples")
		})
	}
}

func TestInspectFLAC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantBPS int
		wantErr string
	}{
		{"16-bit", flacStream(44100, 2, 16, 0), 16, ""},
		{"24-bit", flacStream(96000, 1, 24, 0), 24, ""},
		{"20-bit", flacStream(48000, 1, 20, 0), 20, ""},
		{"valid comments", flacStream(44100, 1, 16, 0, flacBlock{kind: 4, body: vorbisCommentBody("enc", 1, "ARTIST=wren")}), 16, ""},
		{"comment count overrun", flacStream(44100, 1, 16, 0, flacBlock{kind: 4, body: vorbisCommentBody("enc", 5, "ARTIST=wren")}), 0, "count"},
		{"vendor overrun", flacStream(44100, 1, 16, 0, flacBlock{kind: 4, body: []byte{0xff, 0xff, 0, 0, 0, 0, 0, 0}}), 0, "vendor"},
		{"short streaminfo", []byte("fLaC\x80\x00\x00\x02\x00\x00"), 0, "STREAMINFO"},
		{"missing marker", []byte("RIFF"), 0, "marker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bps, err := inspectFLAC(tt.data)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBPS, bps)
		})
	}
}

func TestSignalMono(t *testing.T) {
	t.Parallel()

	sig := Signal{Samples: []float32{1, 0, 0.5, -0.5, -1, -1}, SampleRate: 8000, Channels: 2}
	assert.Equal(t, []float32{0.5, 0, -1}, sig.Mono())
	assert.Equal(t, 3, sig.Frames())

	mono := Signal{Samples: []float32{0.1, 0.2}, SampleRate: 8000, Channels: 1}
	assert.Equal(t, []float32{0.1, 0.2}, mono.Mono())
}

func TestSignalDuration(t *testing.T) {
	t.Parallel()

	sig := Signal{Samples: make([]float32, 44100), SampleRate: 22050, Channels: 2}
	assert.Equal(t, time.Second, sig.Duration())
	assert.Zero(t, Signal{}.Duration())
}

func TestNewFFmpegConverterMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewFFmpegConverter("/nonexistent/birdsong/ffmpeg")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFFmpegConvertsToWAV(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	t.Parallel()

	conv, err := NewFFmpegConverter("")
	require.NoError(t, err)

	raw := encodeWAV(t, sineInts(440, 16000, 0.5, 0.5), 16000, 16, 1, 1)
	wavData, err := conv.ToWAV(context.Background(), raw, "clip.wav")
	require.NoError(t, err)

	sig, err := decodeWAV(wavData)
	require.NoError(t, err)
	assert.Equal(t, 16000, sig.SampleRate)
	assert.Equal(t, 8000, sig.Frames())
}

func TestBoundedBuffer(t *testing.T) {
	t.Parallel()

	b := &boundedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "abcd", b.String())
}
