package pipeline

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// EnvironmentCheck reports which halves of the provider credential pair are
// configured. Surfaced by the health endpoint so a missing .env is visible
// without triggering an extraction.
type EnvironmentCheck struct {
	CredentialIDPresent     bool `json:"credentialIdPresent"`
	CredentialSecretPresent bool `json:"credentialSecretPresent"`
}

// Handler exposes the pipeline HTTP endpoints using go-chi.
type Handler struct {
	machine *Machine
	env     EnvironmentCheck
	log     *slog.Logger
}

// NewHandler returns a Handler backed by the given Machine. env is what the
// health endpoint reports about the provider credentials.
func NewHandler(machine *Machine, env EnvironmentCheck, log *slog.Logger) *Handler {
	return &Handler{machine: machine, env: env, log: log}
}

// Routes mounts all pipeline endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/extraction", h.ExtractFrames)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/upload-complete", h.UploadComplete)
			r.Post("/retry/{section}", h.RetrySection)
			r.Delete("/", h.DeleteSession)
		})
	})
}

type extractionRequest struct {
	VideoURL             string  `json:"videoUrl"`
	VideoDurationSeconds float64 `json:"videoDurationSeconds"`
}

type extractionMetadata struct {
	ExtractionMethod ExtractionMethod `json:"extractionMethod"`
	DurableRef       string           `json:"durableRef"`
	WorkflowSteps    []string         `json:"workflowSteps"`
}

type extractionResponse struct {
	Success    bool               `json:"success"`
	Frames     []FrameDescriptor  `json:"frames"`
	FrameCount int                `json:"frameCount"`
	Cost       float64            `json:"cost"`
	Metadata   extractionMetadata `json:"metadata"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ExtractFrames handles POST /extraction.
// Body: { "videoUrl": "...", "videoDurationSeconds": 132 }.
func (h *Handler) ExtractFrames(w http.ResponseWriter, r *http.Request) {
	var req extractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid extraction body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	result, err := h.machine.ExtractFrames(r.Context(), req.VideoURL, req.VideoDurationSeconds)
	if err != nil {
		var ve *ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error()})
		case errors.Is(err, ErrMissingCredentials):
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: ErrMissingCredentials.Error()})
		default:
			h.log.Error("extraction failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "frame extraction failed", Details: err.Error()})
		}
		return
	}

	h.log.Info("extraction complete",
		slog.Int("frame_count", result.FrameCount),
		slog.String("method", string(result.Method)))

	writeJSON(w, http.StatusOK, extractionResponse{
		Success:    true,
		Frames:     result.Frames,
		FrameCount: result.FrameCount,
		Cost:       result.Cost,
		Metadata: extractionMetadata{
			ExtractionMethod: result.Method,
			DurableRef:       result.DurableRef,
			WorkflowSteps:    result.WorkflowSteps,
		},
	})
}

type healthResponse struct {
	Message          string           `json:"message"`
	RequiredFields   []string         `json:"requiredFields"`
	EnvironmentCheck EnvironmentCheck `json:"environmentCheck"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Message:          "frame extraction service is running",
		RequiredFields:   []string{"videoUrl", "videoDurationSeconds"},
		EnvironmentCheck: h.env,
	})
}

type sessionCost struct {
	Breakdown    []CostLine `json:"breakdown"`
	Total        float64    `json:"total"`
	DisplayTotal float64    `json:"displayTotal"`
}

type sessionResponse struct {
	ID         string            `json:"id"`
	Stage      ProcessingStage   `json:"stage"`
	Asset      MediaAsset        `json:"asset"`
	Frames     []FrameDescriptor `json:"frames,omitempty"`
	Transcript *Transcript       `json:"transcript,omitempty"`
	Analysis   *AnalysisResult   `json:"analysis,omitempty"`
	Errors     []ErrorRecord     `json:"errors"`
	Cost       sessionCost       `json:"cost"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func sessionToResponse(s SessionState) sessionResponse {
	errs := s.Errors
	if errs == nil {
		errs = []ErrorRecord{}
	}
	return sessionResponse{
		ID:         s.ID,
		Stage:      s.Stage,
		Asset:      s.Asset,
		Frames:     s.Frames,
		Transcript: s.Transcript,
		Analysis:   s.Analysis,
		Errors:     errs,
		Cost: sessionCost{
			Breakdown:    s.Costs.Breakdown(),
			Total:        s.Costs.Total(),
			DisplayTotal: s.Costs.DisplayTotal(),
		},
		CreatedAt: s.CreatedAt,
	}
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	snap := h.machine.CreateSession()
	h.log.Info("session created", slog.String("session_id", snap.ID))
	writeJSON(w, http.StatusCreated, sessionToResponse(snap))
}

// GetSession handles GET /sessions/{session_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	snap, ok := h.machine.Snapshot(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(snap))
}

// UploadComplete handles POST /sessions/{session_id}/upload-complete.
// Body matches the extraction request; it marks the upload section done and
// launches frame extraction and transcription concurrently.
func (h *Handler) UploadComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")

	var req extractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	if err := h.machine.CompleteUpload(id, req.VideoURL, req.VideoDurationSeconds); err != nil {
		var ve *ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error()})
		case errors.Is(err, ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		default:
			h.log.Error("upload completion failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "upload completion failed"})
		}
		return
	}

	h.log.Info("upload complete",
		slog.String("session_id", id),
		slog.Float64("duration_seconds", req.VideoDurationSeconds))

	snap, _ := h.machine.Snapshot(id)
	writeJSON(w, http.StatusAccepted, sessionToResponse(snap))
}

// RetrySection handles POST /sessions/{session_id}/retry/{section}.
func (h *Handler) RetrySection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	section := Section(chi.URLParam(r, "section"))

	if err := h.machine.Retry(id, section); err != nil {
		var ve *ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error()})
		case errors.Is(err, ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		case errors.Is(err, ErrNoRetryInputs):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "nothing to retry: no upload has completed"})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "retry dispatch failed"})
		}
		return
	}

	h.log.Info("section retry dispatched",
		slog.String("session_id", id),
		slog.String("section", string(section)))

	snap, _ := h.machine.Snapshot(id)
	writeJSON(w, http.StatusAccepted, sessionToResponse(snap))
}

// DeleteSession handles DELETE /sessions/{session_id}. It cancels any
// in-flight resolution and discards the session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if err := h.machine.Reset(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	h.log.Info("session abandoned", slog.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
