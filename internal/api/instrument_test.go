package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOp struct {
	op      string
	outcome string
}

type fakeRecorder struct {
	ops       []recordedOp
	durations []string
}

func (r *fakeRecorder) RecordOperation(_ context.Context, op, outcome string) {
	r.ops = append(r.ops, recordedOp{op: op, outcome: outcome})
}

func (r *fakeRecorder) RecordDuration(_ context.Context, op string, _ time.Duration) {
	r.durations = append(r.durations, op)
}

func TestInstrument(t *testing.T) {
	rec := &fakeRecorder{}
	handler := Instrument(rec, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applications", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, rec.ops, 1)
	assert.Equal(t, "POST /applications", rec.ops[0].op)
	assert.Equal(t, "ok", rec.ops[0].outcome)
	assert.Equal(t, []string{"POST /applications"}, rec.durations)
}

func TestInstrument_ErrorOutcome(t *testing.T) {
	rec := &fakeRecorder{}
	handler := Instrument(rec, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusConflict)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applications/app-001/start", nil))

	require.Len(t, rec.ops, 1)
	assert.Equal(t, "error", rec.ops[0].outcome)
}
