// Package api exposes HTTP handlers for the signup service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/signup/internal/domain"
	"example.com/signup/internal/logger"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service      *domain.Service
	log          *logger.Logger
	staticPrefix string
	timeout      time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l *logger.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = l
	}
}

// WithStaticPrefix sets the path the index redirect points into.
func WithStaticPrefix(prefix string) HandlerOption {
	return func(h *Handler) {
		h.staticPrefix = prefix
	}
}

// WithStoreTimeout bounds each request's work against the store. Zero disables it.
func WithStoreTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.timeout = d
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, log: logger.Nop(), staticPrefix: "/static/"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /activities", h.listActivities)
	mux.HandleFunc("POST /activities/{activity_name}/signup", h.signup)
	mux.HandleFunc("DELETE /activities/{activity_name}/unregister", h.unregister)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.staticPrefix+"index.html", http.StatusTemporaryRedirect)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	activities, err := h.service.ListActivities(ctx)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := make(ActivitiesResponse, len(activities))
	for _, a := range activities {
		resp[a.Name] = toActivityView(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	h.roster(w, r, h.service.Signup)
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	h.roster(w, r, h.service.Unregister)
}

type rosterOp func(ctx context.Context, name, email string) (*domain.RosterResult, error)

func (h *Handler) roster(w http.ResponseWriter, r *http.Request, op rosterOp) {
	name := r.PathValue("activity_name")
	email, err := emailFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	res, err := op(ctx, name, email)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: res.Message})
}

func (h *Handler) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
	case errors.Is(err, domain.ErrAlreadySignedUp):
		writeError(w, http.StatusBadRequest, "conflict", "Already signed up for this activity")
	case errors.Is(err, domain.ErrActivityFull):
		writeError(w, http.StatusBadRequest, "conflict", "Activity is full")
	case errors.Is(err, domain.ErrNotSignedUp):
		writeError(w, http.StatusBadRequest, "conflict", "Student not signed up for this activity")
	case domain.IsConflict(err):
		writeError(w, http.StatusBadRequest, "conflict", "Roster changed concurrently, please retry")
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

// emailFromRequest reads the email query parameter, falling back to a JSON
// body of the form {"email": "..."}. The value is used exactly as sent; only
// a blank value is rejected.
func emailFromRequest(r *http.Request) (string, error) {
	if email := r.URL.Query().Get("email"); !isBlank(email) {
		return email, nil
	}
	if r.Body != nil && r.ContentLength != 0 {
		var req EmailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", errors.New("unable to parse body")
		}
		if !isBlank(req.Email) {
			return req.Email, nil
		}
	}
	return "", errors.New("email is required")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// EmailRequest is the optional JSON body for roster changes.
type EmailRequest struct {
	Email string `json:"email"`
}

// MessageResponse is the body returned by successful roster changes.
type MessageResponse struct {
	Message string `json:"message"`
}

// ActivityView is the public shape of an activity, keyed by name in listings.
type ActivityView struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// ActivitiesResponse maps activity name to its details.
type ActivitiesResponse map[string]ActivityView

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a domain.Activity) ActivityView {
	participants := a.Participants
	if participants == nil {
		participants = []string{}
	}
	return ActivityView{
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		Participants:    participants,
	}
}
