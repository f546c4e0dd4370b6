package uds

import (
	"bufio"
	"encoding/json"
	"io"
)

// frameWriter writes newline-terminated response frames and counts what
// reached the underlying writer.
type frameWriter struct {
	buf    *bufio.Writer
	n      int64
	frames int
}

func newFrameWriter(w io.Writer) *frameWriter {
	fw := &frameWriter{}
	fw.buf = bufio.NewWriter(countingWriter{fw: fw, w: w})
	return fw
}

func (fw *frameWriter) writeResponse(resp *Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err = fw.buf.Write(append(b, '\n')); err != nil {
		return err
	}
	if err = fw.buf.Flush(); err != nil {
		return err
	}
	fw.frames++
	return nil
}

// BytesWritten returns the total number of bytes flushed to the connection
func (fw *frameWriter) BytesWritten() int64 {
	return fw.n
}

type countingWriter struct {
	fw *frameWriter
	w  io.Writer
}

// Write implements io.Writer
func (cw countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.fw.n += int64(n) // Flush can call Write more than once
	return n, err
}
