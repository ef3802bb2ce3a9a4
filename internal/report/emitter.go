package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// #region emitter

// Emitter writes one self-describing JSON document per line, append-only.
type Emitter struct {
	bw  *bufio.Writer
	enc *json.Encoder
}

// NewEmitter wraps w with a buffered line-delimited JSON writer.
func NewEmitter(w io.Writer) *Emitter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Emitter{bw: bw, enc: enc}
}

// Emit appends one record line.
func (e *Emitter) Emit(rec Record) error {
	if err := e.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// Flush drains the buffer to the underlying writer.
func (e *Emitter) Flush() error {
	return e.bw.Flush()
}

// #endregion emitter
