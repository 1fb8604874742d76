package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/openfloor/openfloor-go/pkg/openfloor"
)

// maxEnvelopeBytes caps the request body; envelopes past this are rejected
// before parsing.
const maxEnvelopeBytes = 4 << 20

// Agent is the behavior the HTTP layer needs from a conversant: exchange one
// envelope for its reply and expose a manifest.
type Agent interface {
	Exchange(ctx context.Context, env *openfloor.Envelope) (*openfloor.Envelope, error)
	Manifest() *openfloor.Manifest
}

// EnvelopeHandler adapts an Agent to HTTP.
type EnvelopeHandler struct {
	agent  Agent
	logger *slog.Logger
}

func NewEnvelopeHandler(agent Agent, logger *slog.Logger) *EnvelopeHandler {
	return &EnvelopeHandler{agent: agent, logger: logger}
}

// Exchange handles POST /: decode the inbound envelope, run the agent, write
// the reply envelope. Unknown event types are retained as opaque events
// rather than failing the request.
func (h *EnvelopeHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes+1))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "read request body", err)
		return
	}
	if len(body) > maxEnvelopeBytes {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "envelope too large", nil)
		return
	}

	env, err := openfloor.ParseEnvelope(body, openfloor.WithOpaqueEvents())
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid envelope", err)
		return
	}

	AddLogField(r.Context(), "conversation_id", env.Conversation.ID)
	AddLogField(r.Context(), "sender", env.Sender.SpeakerURI)

	reply, err := h.agent.Exchange(r.Context(), env)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "exchange failed", err)
		return
	}

	h.writeEnvelope(w, r, reply)
}

// Manifest handles GET /manifest.
func (h *EnvelopeHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	data, err := openfloor.Marshal(h.agent.Manifest())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "serialize manifest", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *EnvelopeHandler) writeEnvelope(w http.ResponseWriter, r *http.Request, env *openfloor.Envelope) {
	data, err := openfloor.Marshal(env)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "serialize reply", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *EnvelopeHandler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	AddError(r.Context(), err)

	detail := message
	if err != nil {
		detail = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := openfloor.NewStructure().
		Set("error", openfloor.NewStructure().
			Set("message", message).
			Set("detail", detail))
	if data, merr := body.MarshalJSON(); merr == nil {
		w.Write(data)
	}
}
