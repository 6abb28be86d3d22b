// Package spinner renders a single-line terminal activity indicator for
// long-running maintenance commands.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 80 * time.Millisecond

// Spinner animates a message on one terminal line until stopped. The
// message can be swapped while running to report progress.
type Spinner struct {
	w       io.Writer
	done    chan struct{}
	cleared chan struct{}
	once    sync.Once

	mu      sync.Mutex
	message string
	width   int
}

// Start begins animating message on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
		message: message,
		width:   len(message) + 2,
	}
	go s.loop()
	return s
}

// Update replaces the message shown on the next frame.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
	if w := len(message) + 2; w > s.width {
		s.width = w
	}
}

// Stop halts the animation and clears the line. Safe to call more than
// once; it returns after the line has been cleared.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.done) })
	<-s.cleared
}

func (s *Spinner) loop() {
	i := 0
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			width := s.width
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
			close(s.cleared)
			return
		case <-time.After(frameInterval):
			s.mu.Lock()
			line := frames[i%len(frames)] + " " + s.message
			width := s.width
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%-*s", width, line) //nolint:errcheck
			i++
		}
	}
}
