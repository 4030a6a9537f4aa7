// Package discord serves the Discord interactions webhook. Every request is
// Ed25519-verified against the raw body before any JSON is parsed.
package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	app "github.com/taskhive/taskhive/internal/app"
	"github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/metrics"
	"github.com/taskhive/taskhive/pkg/logger"
)

// Interaction types and response types from the Discord API contract.
const (
	interactionPing    = 1
	interactionCommand = 2

	responsePong    = 1
	responseMessage = 4

	flagEphemeral = 1 << 6

	// maxBody caps webhook payloads; Discord interactions are small.
	maxBody = 1 << 20
)

// Responder produces an assistant reply for the claude command. Wire a real
// backend in; the zero value of Handler uses none and the command reports
// that.
type Responder interface {
	Respond(ctx context.Context, userID, prompt string) (string, error)
}

// Handler verifies and dispatches Discord interactions.
type Handler struct {
	publicKey string
	app       *app.Application
	responder Responder
	log       *logger.Logger
}

// NewHandler builds the webhook handler. responder may be nil.
func NewHandler(application *app.Application, publicKeyHex string, responder Responder, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("discord")
	}
	return &Handler{
		publicKey: publicKeyHex,
		app:       application,
		responder: responder,
		log:       log,
	}
}

type interactionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type commandOption struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type interaction struct {
	Type int `json:"type"`
	Data struct {
		Name    string          `json:"name"`
		Options []commandOption `json:"options"`
	} `json:"data"`
	Member *struct {
		User interactionUser `json:"user"`
	} `json:"member"`
	User *interactionUser `json:"user"`
}

func (in interaction) invoker() interactionUser {
	if in.Member != nil {
		return in.Member.User
	}
	if in.User != nil {
		return *in.User
	}
	return interactionUser{}
}

func (in interaction) option(name string) string {
	for _, opt := range in.Data.Options {
		if opt.Name == name {
			if s, ok := opt.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	// Signature covers timestamp || raw body, so verification happens before
	// the payload is trusted enough to parse.
	if !auth.VerifyInteraction(
		h.publicKey,
		r.Header.Get(auth.HeaderEd25519Timestamp),
		r.Header.Get(auth.HeaderEd25519Signature),
		body,
	) {
		metrics.RecordAuthFailure("ed25519")
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var in interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}

	switch in.Type {
	case interactionPing:
		writeResponse(w, map[string]any{"type": responsePong})
	case interactionCommand:
		h.dispatch(r.Context(), w, in)
	default:
		http.Error(w, "unsupported interaction type", http.StatusBadRequest)
	}
}

func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, in interaction) {
	invoker := in.invoker()
	cmd := in.Data.Name
	log := h.log.WithField("command", cmd).WithField("discord_id", invoker.ID)

	content := func() string {
		switch cmd {
		case "help":
			return helpText
		case "link":
			return h.cmdLink(ctx, invoker, in.option("user_id"))
		}

		u, err := h.app.Users.ResolveDiscord(ctx, invoker.ID)
		if err != nil {
			return "Your Discord account is not linked yet. Use /link with your user ID first."
		}

		switch cmd {
		case "tasks":
			return h.cmdTasks(ctx, u.ID)
		case "create":
			return h.cmdCreate(ctx, u.ID, in)
		case "complete":
			return h.cmdComplete(ctx, u.ID, in.option("name"))
		case "summary":
			return h.cmdSummary(ctx, u.ID)
		case "priorities":
			return h.cmdPriorities(ctx, u.ID)
		case "claude":
			return h.cmdClaude(ctx, u.ID, in.option("prompt"))
		default:
			return "Unknown command. Try /help."
		}
	}()

	log.Debug("interaction handled")
	writeResponse(w, map[string]any{
		"type": responseMessage,
		"data": map[string]any{
			"content": content,
			"flags":   flagEphemeral,
		},
	})
}

func writeResponse(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
