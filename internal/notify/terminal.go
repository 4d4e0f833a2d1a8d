// ABOUTME: Terminal sink rendering alerts as colored lines via fatih/color
// ABOUTME: Writes to any io.Writer so it can be captured in tests

package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// TerminalSink prints alerts to w.
type TerminalSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalSink creates a sink writing to w.
func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

// Render implements Sink.
func (s *TerminalSink) Render(a Alert) {
	var label *color.Color
	var tag string
	switch a.Type {
	case TypeError:
		label, tag = color.New(color.FgRed, color.Bold), "✗"
	case TypeWarn:
		label, tag = color.New(color.FgYellow), "!"
	case TypeSuccess:
		label, tag = color.New(color.FgGreen), "✓"
	default:
		label, tag = color.New(color.FgCyan), "i"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "  %s %s\n", label.Sprint(tag), a.Message)
}
