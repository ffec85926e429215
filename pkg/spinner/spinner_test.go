package spinner

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// syncBuffer guards bytes.Buffer against the drawing goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDrawsAndRestoresCursor(t *testing.T) {
	defer goleak.VerifyNone(t)

	var out syncBuffer
	s := New(&out, "identifying")
	s.interval = time.Millisecond
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	got := out.String()
	assert.Contains(t, got, "\033[?25l")
	assert.Contains(t, got, frames[0]+"identifying")
	assert.Contains(t, got, frames[1]+"identifying")
	assert.True(t, bytes.HasSuffix([]byte(got), []byte("\033[?25h")))
}

func TestIsTerminalRejectsBuffers(t *testing.T) {
	t.Parallel()
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
