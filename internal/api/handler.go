// Package api provides the HTTP handlers for the just-in-time access REST
// API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/service"
)

// Handler exposes the lifecycle service over HTTP.
type Handler struct {
	lifecycle *service.LifecycleService
	log       *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(lifecycle *service.LifecycleService, logger *slog.Logger) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		log:       logger.With("component", "api"),
	}
}

// Routes mounts every endpoint on a fresh router. The /internal prefix is
// reserved for the schedule trigger; it is not part of the user-facing
// surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/requests", h.submitRequest)
		r.Get("/requests", h.listRequests)
		r.Get("/requests/{id}", h.getRequest)
		r.Post("/approvals", h.decideRequest)
		r.Post("/revocations", h.revokeRequest)
	})
	r.Post("/internal/autorevoke", h.autoRevoke)
	return r
}

// submitRequestBody is the JSON body of POST /api/requests.
type submitRequestBody struct {
	RequesterEmail  string `json:"requesterEmail"`
	Target          string `json:"target"`
	Capability      string `json:"capability"`
	DurationMinutes int    `json:"durationMinutes"`
	Reason          string `json:"reason"`
}

// decisionBody is the JSON body of POST /api/approvals.
type decisionBody struct {
	RequestID     string `json:"requestId"`
	Action        string `json:"action"` // APPROVE or DENY, case-insensitive
	ApproverEmail string `json:"approverEmail"`
	Comments      string `json:"comments,omitempty"`
}

// revocationBody is the JSON body of POST /api/revocations.
type revocationBody struct {
	RequestID    string `json:"requestId"`
	RevokerEmail string `json:"revokerEmail"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	req, err := h.lifecycle.Submit(r.Context(), service.SubmitInput{
		RequesterEmail:  body.RequesterEmail,
		TargetName:      body.Target,
		CapabilityName:  body.Capability,
		DurationMinutes: body.DurationMinutes,
		Reason:          body.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Granted immediately is 200; awaiting an approval decision is 202.
	status := http.StatusOK
	if req.Status == domain.StatusPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, req)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.lifecycle.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request) {
	var body decisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	if body.RequestID == "" {
		h.writeError(w, r, domain.ErrValidation("requestId is required"))
		return
	}
	in := service.ApprovalInput{ApproverEmail: body.ApproverEmail, Comments: body.Comments}

	var (
		req *domain.Request
		err error
	)
	switch strings.ToUpper(body.Action) {
	case "APPROVE":
		req, err = h.lifecycle.Approve(r.Context(), body.RequestID, in)
	case "DENY":
		req, err = h.lifecycle.Deny(r.Context(), body.RequestID, in)
	default:
		err = domain.ErrValidation("action must be APPROVE or DENY, got %q", body.Action)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) revokeRequest(w http.ResponseWriter, r *http.Request) {
	var body revocationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	if body.RequestID == "" {
		h.writeError(w, r, domain.ErrValidation("requestId is required"))
		return
	}
	req, err := h.lifecycle.Revoke(r.Context(), body.RequestID, body.RevokerEmail)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) autoRevoke(w http.ResponseWriter, r *http.Request) {
	var payload domain.TriggerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid trigger payload: %v", err))
		return
	}
	if payload.RequestID == "" {
		h.writeError(w, r, domain.ErrValidation("requestId is required"))
		return
	}
	if err := h.lifecycle.AutoRevoke(r.Context(), payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"code":  status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
