// Package trace provides a small Tracer for writing internal step output to stderr
// when --trace is set. No-op when the writer is nil. Safe for concurrent use, so
// batch workers can share one Tracer.
package trace

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const prefix = "[revdiff:trace]"

// Tracer writes sectioned trace output. When the underlying writer is nil, all methods no-op.
type Tracer struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a Tracer that writes to w. If w is nil, all methods no-op.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Enabled returns true if the tracer has a non-nil writer.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Section writes a section header: "\n[revdiff:trace] === name ===\n"
func (t *Tracer) Section(name string) {
	if !t.Enabled() {
		return
	}
	t.write(fmt.Sprintf("\n%s === %s ===\n", prefix, name))
}

// Printf writes to the trace writer when enabled. Format and args are as in fmt.Printf.
func (t *Tracer) Printf(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	t.write(fmt.Sprintf(format, args...))
}

// Event writes one line "[revdiff:trace] msg k1=v1 k2=v2". kv alternates keys
// and values; a trailing key without a value is written as "k=?".
func (t *Tracer) Event(msg string, kv ...interface{}) {
	if !t.Enabled() {
		return
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, " %v=?", kv[i])
		}
	}
	b.WriteByte('\n')
	t.write(b.String())
}

func (t *Tracer) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, s)
}
