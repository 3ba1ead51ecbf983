package httpserver

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// compressWriter wraps http.ResponseWriter, setting Content-Encoding on
// the first header write and funneling every body byte into the
// encoder; it does not inspect the body or pass anything through raw.
type compressWriter struct {
	http.ResponseWriter
	encoder     io.WriteCloser
	encoding    string
	wroteHeader bool
}

func (cw *compressWriter) WriteHeader(status int) {
	if !cw.wroteHeader {
		cw.Header().Set("Content-Encoding", cw.encoding)
		cw.Header().Del("Content-Length")
		cw.wroteHeader = true
	}
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *compressWriter) Write(p []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.encoder.Write(p)
}

func (cw *compressWriter) Close() error {
	return cw.encoder.Close()
}

// compressionMiddleware compresses every response, whatever its content
// type, for clients that advertise support via Accept-Encoding, preferring zstd over gzip
// since the query API's responses (trace/log arrays) are large enough
// for zstd's better ratio to matter.
func compressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepted := r.Header.Get("Accept-Encoding")

		switch {
		case strings.Contains(accepted, "zstd"):
			enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			cw := &compressWriter{ResponseWriter: w, encoder: enc, encoding: "zstd"}
			defer cw.Close()
			next.ServeHTTP(cw, r)
		case strings.Contains(accepted, "gzip"):
			enc := gzip.NewWriter(w)
			cw := &compressWriter{ResponseWriter: w, encoder: enc, encoding: "gzip"}
			defer cw.Close()
			next.ServeHTTP(cw, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
