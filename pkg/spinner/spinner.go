// Package spinner draws a braille progress indicator on a terminal while a
// long running call is in flight.
package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// DefaultInterval is the delay between frames.
const DefaultInterval = 100 * time.Millisecond

var frames = []string{
	"⣀⣀ ", "⣄⣀ ", "⣤⣀ ", "⣦⣄ ", "⣶⣤ ", "⣿⣦ ", "⣿⣷ ", "⣿⣿ ",
	"⣿⣿ ", "⣷⣿ ", "⣦⣿ ", "⣤⣷ ", "⣄⣦ ", "⣀⣤ ", "⣀⣄ ", "⣀⣀ ",
}

// Spinner writes frames to w until stopped.
type Spinner struct {
	w        io.Writer
	label    string
	interval time.Duration
	index    int

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a spinner that prints label after each frame.
func New(w io.Writer, label string) *Spinner {
	return &Spinner{w: w, label: label, interval: DefaultInterval, done: make(chan struct{})}
}

// IsTerminal reports whether w is a terminal. Spinners are only drawn there.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start draws frames in the background. Call Stop exactly when the work is done.
func (s *Spinner) Start() {
	_, _ = fmt.Fprint(s.w, "\033[?25l") // hide cursor
	s.wg.Go(func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.update()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.update()
			}
		}
	})
}

// update prints the current frame and advances to the next.
func (s *Spinner) update() {
	_, _ = fmt.Fprintf(s.w, "\r%s%s", frames[s.index], s.label)
	s.index = (s.index + 1) % len(frames)
}

// Stop clears the line and restores the cursor. Safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		_, _ = fmt.Fprint(s.w, "\r\033[K\033[?25h")
	})
}
