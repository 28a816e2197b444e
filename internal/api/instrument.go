package api

import (
	"context"
	"net/http"
	"time"
)

// Recorder captures per-request operation telemetry.
type Recorder interface {
	RecordOperation(ctx context.Context, op, outcome string)
	RecordDuration(ctx context.Context, op string, duration time.Duration)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Instrument records operation counts and latency for every request.
func Instrument(rec Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		op := r.Method + " " + r.URL.Path
		outcome := "ok"
		if sw.status >= 400 {
			outcome = "error"
		}
		rec.RecordOperation(r.Context(), op, outcome)
		rec.RecordDuration(r.Context(), op, time.Since(started))
	})
}
