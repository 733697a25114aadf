// Package trace streams the engine's published events to durable storage
// as newline-delimited JSON (spec §6 "Serialisation on disk") and keeps
// an in-memory summary pass over the same records.
//
// Grounded on the teacher's sim/trace/trace.go SimulationTrace (a plain
// buffering recorder fed by the simulator's decision points) generalized
// from admission/routing records to the engine's eventbus.Event stream,
// plus a Writer adapted from the same package's role as the sink the
// rest of the teacher's sim/ writes through.
package trace

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/rtschedsim/rtschedsim/internal/eventbus"
)

// Writer buffers every event it is fed and, on Flush, streams them to an
// io.Writer as one JSON object per line (spec §6). It also implements
// eventbus.Subscriber so it can be attached directly to a Bus.
type Writer struct {
	events []eventbus.Event
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Notify implements eventbus.Subscriber: it retains e for later Flush.
func (w *Writer) Notify(e eventbus.Event) {
	w.events = append(w.events, e)
}

// Events returns the retained event slice in emission order.
func (w *Writer) Events() []eventbus.Event {
	return w.events
}

// Flush writes every retained event to out as NDJSON, one record per
// line, in emission order. Returns the first encoding or write error
// encountered, if any.
func (w *Writer) Flush(out io.Writer) error {
	bw := bufio.NewWriter(out)
	enc := json.NewEncoder(bw)
	for _, e := range w.events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Reset discards every retained event, for reuse across an engine
// Build/Reset cycle that should start a fresh trace (the bus's
// subscriber list is unaffected — only this Writer's buffer is cleared).
func (w *Writer) Reset() {
	w.events = nil
}
