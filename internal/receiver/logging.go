package receiver

import (
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"time"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// loggingMiddleware logs one line per request. A panicking handler is logged
// with its stack and answered with 500 if nothing was written yet.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("[http] panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				if !lrw.wroteHeader {
					http.Error(lrw, "internal error", http.StatusInternalServerError)
				}
			}
			log.Printf("[http] method=%s path=%s status=%d bytes=%d ms=%d ip=%s",
				r.Method, r.URL.Path, lrw.status, lrw.size, time.Since(start).Milliseconds(), clientIP(r))
		}()

		next.ServeHTTP(lrw, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
