package myaudio

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies an audio container.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatFLAC
	FormatMP3
	FormatOGG
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatFLAC:
		return "flac"
	case FormatMP3:
		return "mp3"
	case FormatOGG:
		return "ogg"
	default:
		return "unknown"
	}
}

// MIMEType returns the media type used to play the format back in a browser.
func (f Format) MIMEType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatFLAC:
		return "audio/flac"
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// DetectFormat sniffs magic bytes first and falls back to the filename extension.
func DetectFormat(data []byte, filename string) Format {
	if f := sniffFormat(data); f != FormatUnknown {
		return f
	}
	return formatFromExtension(filename)
}

func sniffFormat(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOGG
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && isMPEGAudioSync(data[0], data[1]):
		return FormatMP3
	}
	return FormatUnknown
}

// isMPEGAudioSync checks for an 11-bit frame sync with a non-reserved layer,
// which excludes AAC ADTS headers (layer bits 00).
func isMPEGAudioSync(b0, b1 byte) bool {
	return b0 == 0xFF && b1&0xE0 == 0xE0 && (b1>>1)&0x03 != 0
}

func formatFromExtension(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".flac":
		return FormatFLAC
	case ".mp3":
		return FormatMP3
	case ".ogg", ".oga":
		return FormatOGG
	}
	return FormatUnknown
}
