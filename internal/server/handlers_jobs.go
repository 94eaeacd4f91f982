package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/apply-app/apply-api/internal/server/middleware"
	"github.com/apply-app/apply-api/internal/tasks"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// AnalyzeJobRequest is the body of POST /api/jobs/analyze
type AnalyzeJobRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// AnalyzeJobResponse acknowledges a triggered analysis
type AnalyzeJobResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId"`
}

// JobStatusResponse is the polled state of an analysis run. Output is only
// set once the run completed and Error only once it failed.
type JobStatusResponse struct {
	Status   tasks.Status    `json:"status"`
	Metadata json.RawMessage `json:"metadata"`
	Output   json.RawMessage `json:"output"`
	Error    *string         `json:"error"`
}

// CancelJobResponse reports the state of a cancelled run
type CancelJobResponse struct {
	Status tasks.Status `json:"status"`
}

// handleAnalyzeJob triggers an analysis run for the caller
func (s *Server) handleAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req AnalyzeJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := validate.Struct(req); err != nil {
		verr := &ErrValidation{Field: "url", Message: "must be an absolute http(s) URL"}
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	ctx := r.Context()
	log := s.log.With("user_id", userID, "url", req.URL)

	run, err := s.runs.Trigger(ctx, tasks.AnalyzeJobOffer, tasks.AnalyzePayload{
		URL:    req.URL,
		UserID: userID.String(),
	}, tasks.TriggerOptions{Tags: tasks.AnalyzeTags(userID.String())})
	if err != nil {
		log.Error("failed to trigger job analysis", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to start job analysis")
		return
	}

	if _, err := s.store.CreateAnalysisJob(ctx, run.ID); err != nil {
		log.Error("failed to record analysis job", "run_id", run.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to start job analysis")
		return
	}

	log.Info("job analysis triggered", "run_id", run.ID)
	s.jsonResponse(w, http.StatusAccepted, AnalyzeJobResponse{Success: true, RunID: run.ID})
}

// handleJobStatus returns the state, progress and result of a run
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, statusResponse(run))
}

// handleCancelJob cancels a run that has not finished yet
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}

	run, err := s.runs.Cancel(r.Context(), run.ID)
	if err != nil {
		status := HTTPStatus(err)
		switch status {
		case http.StatusConflict:
			s.errorResponse(w, status, "Job already finished")
		case http.StatusNotFound:
			s.errorResponse(w, status, "Job not found")
		default:
			s.log.Error("failed to cancel run", "run_id", chi.URLParam(r, "runId"), "error", err)
			s.errorResponse(w, status, "Failed to cancel job")
		}
		return
	}

	s.jsonResponse(w, http.StatusOK, CancelJobResponse{Status: run.Status})
}

// handleJobEvents streams progress of a run as Server-Sent Events until it
// reaches a terminal state or the client goes away.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(s.eventsPoll)
	defer ticker.Stop()

	var lastMetadata json.RawMessage
	for {
		if len(run.Metadata) > 0 && !bytes.Equal(run.Metadata, lastMetadata) {
			lastMetadata = run.Metadata
			if err := sse.WriteEvent("progress", run.Metadata); err != nil {
				return
			}
		}
		if run.Status.Terminal() {
			if err := sse.WriteEvent("result", statusResponse(run)); err != nil {
				return
			}
			sse.WriteComplete(run.ID, string(run.Status))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		run, err = s.runs.Retrieve(ctx, run.ID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				sse.WriteError("Failed to read job status")
			}
			return
		}
	}
}

// ownedRun loads the run named in the path and checks it was triggered by the
// caller. Unknown runs and runs of other users both answer 404.
func (s *Server) ownedRun(w http.ResponseWriter, r *http.Request) (*tasks.Run, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	runID := chi.URLParam(r, "runId")
	run, err := s.runs.Retrieve(r.Context(), runID)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "Job not found")
			return nil, false
		}
		s.log.Error("failed to retrieve run", "run_id", runID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to retrieve job")
		return nil, false
	}
	if !run.HasTag(tasks.UserTag(userID.String())) {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	return run, true
}

func statusResponse(run *tasks.Run) JobStatusResponse {
	resp := JobStatusResponse{Status: run.Status}
	if len(run.Metadata) > 0 {
		resp.Metadata = run.Metadata
	}
	switch run.Status {
	case tasks.StatusCompleted:
		if len(run.Output) > 0 {
			resp.Output = run.Output
		}
	case tasks.StatusFailed:
		msg := run.Error
		resp.Error = &msg
	}
	return resp
}
