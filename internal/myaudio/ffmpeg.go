package myaudio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/birdsong-go/birdsong/internal/errors"
)

// maxFFmpegStderr bounds how much ffmpeg diagnostic output is kept for errors
const maxFFmpegStderr = 4096

// FFmpegConverter converts containers the native decoders cannot read into
// 16-bit PCM WAV, keeping the source rate and channel count.
type FFmpegConverter struct {
	path string
}

// NewFFmpegConverter resolves the ffmpeg binary. An empty path looks it up on PATH.
func NewFFmpegConverter(path string) (*FFmpegConverter, error) {
	if path == "" {
		path = "ffmpeg"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("ffmpeg not found: %w", err)).
			Component("myaudio").
			Category(errors.CategoryConfiguration).
			Context("ffmpeg_path", path).
			Build()
	}
	return &FFmpegConverter{path: resolved}, nil
}

// Path returns the resolved ffmpeg binary.
func (c *FFmpegConverter) Path() string { return c.path }

// ToWAV writes data to a temp file, runs ffmpeg on it and returns the WAV bytes.
func (c *FFmpegConverter) ToWAV(ctx context.Context, data []byte, filename string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "birdsong-ffmpeg-")
	if err != nil {
		return nil, fmt.Errorf("error creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 8 {
		ext = ".bin"
	}
	inPath := filepath.Join(dir, "input"+ext)
	outPath := filepath.Join(dir, "output.wav")

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("error writing temp input: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.path, //nolint:gosec // G204: binary resolved at startup, args built internally
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outPath,
	)
	stderr := &boundedBuffer{limit: maxFFmpegStderr}
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg conversion failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("error reading ffmpeg output: %w", err)
	}
	return out, nil
}

// boundedBuffer keeps at most limit bytes and silently drops the rest
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }
