package middleware

import (
	"bufio"
	"net"
	"net/http"
)

// FlushableResponseWriter records the status and size of a response while
// keeping the streaming and upgrade capabilities of the wrapped writer.
type FlushableResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten uint64
	wroteHeader  bool
	flusher      http.Flusher
	hijacker     http.Hijacker
}

func NewFlushableResponseWriter(w http.ResponseWriter) *FlushableResponseWriter {
	frw := &FlushableResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	if f, ok := w.(http.Flusher); ok {
		frw.flusher = f
	}

	if h, ok := w.(http.Hijacker); ok {
		frw.hijacker = h
	}

	return frw
}

func (w *FlushableResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}

	w.statusCode = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *FlushableResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += uint64(n)

	return n, err
}

func (w *FlushableResponseWriter) StatusCode() int {
	return w.statusCode
}

func (w *FlushableResponseWriter) BytesWritten() uint64 {
	return w.bytesWritten
}

func (w *FlushableResponseWriter) Flush() {
	if w.flusher != nil {
		w.flusher.Flush()
	}
}

// Hijack hands the connection to the live stream upgrader. A hijacked
// response is reported as 101.
func (w *FlushableResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.hijacker == nil {
		return nil, nil, http.ErrNotSupported
	}

	conn, rw, err := w.hijacker.Hijack()
	if err == nil {
		w.statusCode = http.StatusSwitchingProtocols
		w.wroteHeader = true
	}

	return conn, rw, err
}

func (w *FlushableResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
