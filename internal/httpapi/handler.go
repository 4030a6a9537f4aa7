// Package httpapi exposes the REST surface. It is a thin wrapper: decode,
// resolve the principal, call one service, encode. All policy lives in the
// services.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/taskhive/taskhive/internal/app"
	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/metrics"
	"github.com/taskhive/taskhive/internal/services/projects"
	"github.com/taskhive/taskhive/internal/services/tasks"
	"github.com/taskhive/taskhive/pkg/logger"
)

// Options configures the HTTP layer.
type Options struct {
	BotSecret string
	JWTSecret string
	Dev       bool
	Log       *logger.Logger
	// Interactions is the Discord webhook handler, mounted unauthenticated;
	// it carries its own Ed25519 gate.
	Interactions http.Handler
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
}

type handler struct {
	app    *app.Application
	tokens *auth.TokenIssuer
	hmac   *auth.HMACVerifier
	log    *logger.Logger
	dev    bool
}

// NewHandler returns the fully wired HTTP handler.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	h := &handler{
		app:    application,
		tokens: auth.NewTokenIssuer(opts.JWTSecret),
		hmac:   auth.NewHMACVerifier(opts.BotSecret, log),
		log:    log,
		dev:    opts.Dev,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/invites/accept", h.acceptInvite).Methods(http.MethodPost)
	if opts.Interactions != nil {
		r.Handle("/api/discord/interactions", opts.Interactions).Methods(http.MethodPost)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.authMiddleware)

	api.HandleFunc("/users/me", h.me).Methods(http.MethodGet)

	api.HandleFunc("/projects", h.listProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", h.createProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", h.getProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", h.updateProject).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}", h.deleteProject).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/members", h.addMember).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/members/{userID}", h.removeMember).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/activity", h.listActivity).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/tasks", h.listTasks).Methods(http.MethodGet)

	api.HandleFunc("/tasks", h.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks", h.listAssignedTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.updateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}", h.deleteTask).Methods(http.MethodDelete)

	api.HandleFunc("/invites", h.createInvite).Methods(http.MethodPost)
	api.HandleFunc("/invites", h.listInvites).Methods(http.MethodGet)
	api.HandleFunc("/invites/{code}/revoke", h.revokeInvite).Methods(http.MethodPost)

	var wrapped http.Handler = r
	if opts.RateLimit > 0 {
		wrapped = newRateLimiter(opts.RateLimit, int(opts.RateLimit)*2).Handler(wrapped)
	}
	return metrics.InstrumentHandler(corsMiddleware(wrapped))
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	u, err := h.app.Users.Get(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- projects -----------------------------------------------------------------

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	out, err := h.app.Projects.List(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := h.app.Projects.Create(r.Context(), p.UserID, projects.CreateInput{
		Name:        payload.Name,
		Description: payload.Description,
		Color:       payload.Color,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	proj, err := h.app.Projects.Get(r.Context(), p.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (h *handler) updateProject(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var payload struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	updated, err := h.app.Projects.Update(r.Context(), p.UserID, mux.Vars(r)["id"], projects.UpdateInput{
		Name:        payload.Name,
		Description: payload.Description,
		Color:       payload.Color,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if err := h.app.Projects.Delete(r.Context(), p.UserID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addMember(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.app.Projects.AddMember(r.Context(), p.UserID, mux.Vars(r)["id"], payload.UserID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) removeMember(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	vars := mux.Vars(r)
	if err := h.app.Projects.RemoveMember(r.Context(), p.UserID, vars["id"], vars["userID"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listActivity(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.app.Projects.Activity(r.Context(), p.UserID, mux.Vars(r)["id"], limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- tasks ----------------------------------------------------------------------

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	out, err := h.app.Tasks.List(r.Context(), p.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listAssignedTasks(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	out, err := h.app.Tasks.ListAssignedTo(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var payload struct {
		ProjectID    string `json:"project_id"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		Status       string `json:"status"`
		Priority     string `json:"priority"`
		AssignedToID string `json:"assigned_to_id"`
		DueDate      string `json:"due_date"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := h.app.Tasks.Create(r.Context(), p.UserID, tasks.CreateInput{
		ProjectID:    payload.ProjectID,
		Name:         payload.Name,
		Description:  payload.Description,
		Status:       payload.Status,
		Priority:     payload.Priority,
		AssignedToID: payload.AssignedToID,
		DueDate:      payload.DueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	t, err := h.app.Tasks.Get(r.Context(), p.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var payload struct {
		ProjectID    *string `json:"project_id"`
		Name         *string `json:"name"`
		Description  *string `json:"description"`
		Status       *string `json:"status"`
		Priority     *string `json:"priority"`
		AssignedToID *string `json:"assigned_to_id"`
		DueDate      *string `json:"due_date"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	updated, err := h.app.Tasks.Update(r.Context(), p.UserID, mux.Vars(r)["id"], tasks.UpdateInput{
		ProjectID:    payload.ProjectID,
		Name:         payload.Name,
		Description:  payload.Description,
		Status:       payload.Status,
		Priority:     payload.Priority,
		AssignedToID: payload.AssignedToID,
		DueDate:      payload.DueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if err := h.app.Tasks.Delete(r.Context(), p.UserID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- invites --------------------------------------------------------------------

func (h *handler) createInvite(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	inv, err := h.app.Invites.Create(r.Context(), p.UserID, payload.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *handler) listInvites(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	out, err := h.app.Invites.List(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) revokeInvite(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	inv, err := h.app.Invites.Revoke(r.Context(), p.UserID, mux.Vars(r)["code"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// acceptInvite is unauthenticated: it turns a valid code into a user plus a
// session token.
func (h *handler) acceptInvite(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err.Error())
		return
	}
	u, err := h.app.Invites.Accept(r.Context(), payload.Code, payload.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	token, err := h.tokens.Issue(u.ID, u.IsAdmin)
	if err != nil {
		h.writeError(w, apperr.Internal("issue session token", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "token": token})
}
