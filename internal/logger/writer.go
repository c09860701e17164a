package logger

import (
	"bytes"
	"context"
	"sync"
)

// LineWriter forwards every complete line written to it as a debug or info message.
// It is used as Stdout/Stderr of external build commands.
type LineWriter struct {
	ctx    context.Context //nolint:containedctx // The writer lives exactly as long as one command.
	stream string
	mu     sync.Mutex
	buf    bytes.Buffer
}

// NewLineWriter creates a writer that tags each line with the stream name.
func NewLineWriter(ctx context.Context, stream string) *LineWriter {
	return &LineWriter{ctx: ctx, stream: stream}
}

// Write buffers p and emits every complete line.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)

	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, keep it for the next write.
			w.buf.Reset()
			w.buf.Write(line)

			break
		}

		w.emit(bytes.TrimRight(line, "\r\n"))
	}

	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line []byte) {
	if len(line) == 0 {
		return
	}

	InfoKV(w.ctx, string(line), "stream", w.stream)
}
