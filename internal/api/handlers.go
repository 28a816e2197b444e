// Package api exposes the lifecycle engine over HTTP for the UI layer. It is
// a thin transport: every call contract maps one-to-one onto the service
// facade and no business rules live here.
package api

import (
	"encoding/json"
	"net/http"

	stderrors "gigbroker/internal/common/errors"
	"gigbroker/internal/common/logger"
	"gigbroker/internal/lifecycle"
	"gigbroker/internal/models"
	"gigbroker/internal/service"
	"gigbroker/internal/swipe"
)

type API struct {
	broker *service.Broker
	log    logger.Logger
}

func NewAPI(broker *service.Broker, log logger.Logger) *API {
	return &API{broker: broker, log: log}
}

func (a *API) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /applications", a.handleApply)
	mux.HandleFunc("POST /applications/{id}/transition", a.handleTransition)
	mux.HandleFunc("POST /applications/{id}/start-otp", a.handleRequestStartOtp)
	mux.HandleFunc("POST /applications/{id}/start", a.handleSubmitStartOtp)
	mux.HandleFunc("POST /applications/{id}/complete", a.handleInitiateCompletion)
	mux.HandleFunc("POST /applications/{id}/confirm", a.handleConfirmCompletion)

	mux.HandleFunc("POST /jobs/{id}/not-interested", a.handleNotInterested)
	mux.HandleFunc("POST /jobs/{id}/reconsider", a.handleReconsider)

	mux.HandleFunc("POST /sessions", a.handleOpenSession)
	mux.HandleFunc("GET /sessions/{id}/feed", a.handleFeed)
	mux.HandleFunc("POST /sessions/{id}/swipes", a.handleSwipe)
	mux.HandleFunc("POST /sessions/{id}/mode", a.handleSwitchMode)
	mux.HandleFunc("DELETE /sessions/{id}", a.handleCloseSession)

	return mux
}

// ==========================
// Applications
// ==========================

func (a *API) handleApply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID    string `json:"jobId"`
		WorkerID string `json:"workerId"`
	}
	if err := decodeAndValidate(r.Body, applyRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	rec, err := a.broker.ApplyToJob(r.Context(), req.JobID, req.WorkerID)
	if err != nil {
		// Re-applying is a no-op: hand back the existing record without
		// claiming a creation happened.
		if stderrors.HasCode(err, stderrors.ErrCodeAlreadyProcessed) {
			writeJSON(w, http.StatusOK, rec)
			return
		}
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event string `json:"event"`
	}
	if err := decodeAndValidate(r.Body, transitionRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	rec, err := a.broker.Transition(r.Context(), r.PathValue("id"), lifecycle.Event(req.Event))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleRequestStartOtp(w http.ResponseWriter, r *http.Request) {
	ch, err := a.broker.RequestStartOtp(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (a *API) handleSubmitStartOtp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeAndValidate(r.Body, codeRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	rec, err := a.broker.SubmitStartOtp(r.Context(), r.PathValue("id"), req.Code)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleInitiateCompletion(w http.ResponseWriter, r *http.Request) {
	rec, err := a.broker.InitiateCompletion(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleConfirmCompletion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeAndValidate(r.Body, codeRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	rec, err := a.broker.ConfirmCompletion(r.Context(), r.PathValue("id"), req.Code)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ==========================
// Jobs
// ==========================

func (a *API) handleNotInterested(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"workerId"`
	}
	if err := decodeAndValidate(r.Body, workerRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	err := a.broker.MarkNotInterested(r.Context(), r.PathValue("id"), req.WorkerID)
	if err != nil && !stderrors.HasCode(err, stderrors.ErrCodeAlreadyProcessed) {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReconsider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"workerId"`
	}
	if err := decodeAndValidate(r.Body, workerRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	rec, err := a.broker.ReconsiderJob(r.Context(), r.PathValue("id"), req.WorkerID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ==========================
// Swipe sessions
// ==========================

func (a *API) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"workerId"`
		Mode     string `json:"mode"`
	}
	if err := decodeAndValidate(r.Body, openSessionRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	mode := models.SwipeMode(req.Mode)
	if mode == "" {
		mode = models.ModeNormal
	}

	s := a.broker.OpenSession(req.WorkerID, mode)
	writeJSON(w, http.StatusCreated, map[string]string{
		"sessionId": s.ID,
		"workerId":  s.WorkerID,
		"mode":      string(mode),
	})
}

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	s, ok := a.broker.GetSession(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	jobs, err := s.NextBatch(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (a *API) handleSwipe(w http.ResponseWriter, r *http.Request) {
	s, ok := a.broker.GetSession(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req struct {
		JobID     string `json:"jobId"`
		Direction string `json:"direction"`
	}
	if err := decodeAndValidate(r.Body, swipeRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	outcome, err := s.Swipe(req.JobID, models.SwipeDirection(req.Direction))
	if err != nil && outcome != swipe.OutcomeAlreadyProcessed {
		a.writeError(w, err)
		return
	}
	// AlreadyProcessed is a no-op to the user, not an error dialog.
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (a *API) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	s, ok := a.broker.GetSession(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeAndValidate(r.Body, switchModeRequestSchema, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	s.SwitchMode(models.SwipeMode(req.Mode))
	writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

func (a *API) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	a.broker.CloseSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// Response helpers
// ==========================

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch stderrors.CodeOf(err) {
	case stderrors.ErrCodeInvalidTransition:
		status = http.StatusConflict
	case stderrors.ErrCodeOtpExpired, stderrors.ErrCodeOtpMismatch:
		status = http.StatusUnprocessableEntity
	case stderrors.ErrCodeClockSkew:
		status = http.StatusConflict
	case stderrors.ErrCodeRecordNotFound:
		status = http.StatusNotFound
	case stderrors.ErrCodeRemoteFailure:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		a.log.Error("unexpected error", map[string]interface{}{"error": err.Error()})
	}

	writeJSON(w, status, map[string]interface{}{
		"error":     err.Error(),
		"code":      string(stderrors.CodeOf(err)),
		"retryable": stderrors.IsRetryable(err),
	})
}
