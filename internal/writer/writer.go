// Package writer emits CSV rows to a stream. The Ctrl+e echo path and
// clipboard row-copy both write through it, so marked-row output and
// clipboard row-copy quote and escape identically.
package writer

import (
	"encoding/csv"
	"io"
)

// Config holds the output settings. The writer targets an
// already-open io.Writer; it never opens files itself.
type Config struct {
	Separator rune
}

// EchoWriter writes CSV rows to an underlying io.Writer (stdout in
// the real CLI), flushing after every record so a consumer piping
// csvlens's stdout sees each row as it's emitted.
type EchoWriter struct {
	config Config
	w      *csv.Writer
}

// New creates an EchoWriter over dst.
func New(dst io.Writer, config Config) *EchoWriter {
	if config.Separator == 0 {
		config.Separator = ','
	}
	cw := csv.NewWriter(dst)
	cw.Comma = config.Separator
	return &EchoWriter{config: config, w: cw}
}

// Write appends one record and flushes immediately.
func (w *EchoWriter) Write(cells []string) error {
	if err := w.w.Write(cells); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// WriteAll appends every record in rows, flushing once at the end.
func (w *EchoWriter) WriteAll(rows [][]string) error {
	for _, r := range rows {
		if err := w.w.Write(r); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}
