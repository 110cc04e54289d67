package util

import (
	"bufio"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LogHandler provides middleware that logs all requests along with their
// response code and handling time using logrus.
func LogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rwi := &rwInterceptor{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rwi, r)

		entry := log.WithField("elapsed", time.Since(start).Round(time.Millisecond))
		switch code := rwi.statusCode; {
		case code >= 500:
			entry.Errorf("%s %s -> %d", r.Method, r.URL.Path, code)
		case code >= 400:
			entry.Warnf("%s %s -> %d", r.Method, r.URL.Path, code)
		default:
			entry.Debugf("%s %s -> %d", r.Method, r.URL.Path, code)
		}
	})
}

type rwInterceptor struct {
	http.ResponseWriter
	statusCode int
}

func (rwi *rwInterceptor) WriteHeader(code int) {
	rwi.statusCode = code
	rwi.ResponseWriter.WriteHeader(code)
}

func (rwi *rwInterceptor) Write(b []byte) (int, error) {
	if rwi.statusCode == 0 {
		rwi.WriteHeader(http.StatusOK)
	}
	return rwi.ResponseWriter.Write(b)
}

// Hijack is required for the event stream endpoints.
func (rwi *rwInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return rwi.ResponseWriter.(http.Hijacker).Hijack()
}
