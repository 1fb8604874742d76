// Package agent implements a conversational agent that speaks the open-floor
// envelope protocol: it accepts an inbound envelope, dispatches each event it
// is addressed by, and assembles the reply envelope.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openfloor/openfloor-go/pkg/openfloor"
)

// Responder produces the agent's reply to one inbound utterance text. The
// default responder echoes.
type Responder func(ctx context.Context, conversationID, text string) (string, error)

// Agent is a single-identity conversant. It is safe for concurrent use; each
// conversation's state is tracked independently.
type Agent struct {
	logger    *slog.Logger
	responder Responder

	mu       sync.Mutex
	manifest *openfloor.Manifest
	convs    map[string]*conversationState
}

type conversationState struct {
	joined   bool
	hasFloor bool
	history  []*openfloor.DialogEvent
}

// Option configures a new Agent.
type Option func(*Agent)

// WithResponder replaces the default echo responder.
func WithResponder(r Responder) Option {
	return func(a *Agent) { a.responder = r }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// New builds an agent around its manifest. The manifest's identification
// supplies the speakerUri the agent answers to.
func New(manifest *openfloor.Manifest, opts ...Option) (*Agent, error) {
	if manifest == nil || manifest.Identification == nil {
		return nil, fmt.Errorf("agent: manifest with identification is required")
	}
	a := &Agent{
		logger:   slog.Default(),
		manifest: manifest,
		convs:    make(map[string]*conversationState),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.responder == nil {
		a.responder = func(_ context.Context, _, text string) (string, error) {
			return text, nil
		}
	}
	return a, nil
}

// Manifest returns the agent's current manifest.
func (a *Agent) Manifest() *openfloor.Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manifest
}

// SetManifest swaps the manifest, e.g. after a config reload.
func (a *Agent) SetManifest(m *openfloor.Manifest) {
	if m == nil || m.Identification == nil {
		return
	}
	a.mu.Lock()
	a.manifest = m
	a.mu.Unlock()
}

// SpeakerURI returns the identity the agent answers to.
func (a *Agent) SpeakerURI() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manifest.Identification.SpeakerURI
}

func (a *Agent) serviceURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manifest.Identification.ServiceURL
}

// Exchange processes one inbound envelope and returns the reply envelope.
// Events addressed to another conversant are skipped; broadcast events and
// events addressed to this agent are dispatched in order, and any response
// events are collected into a single reply on the same conversation.
func (a *Agent) Exchange(ctx context.Context, in *openfloor.Envelope) (*openfloor.Envelope, error) {
	if in == nil || in.Conversation == nil || in.Sender == nil {
		return nil, fmt.Errorf("agent: envelope with conversation and sender is required")
	}

	convID := in.Conversation.ID
	state := a.conversation(convID)

	var replies []openfloor.Event
	for _, ev := range in.Events {
		if !a.addressedToMe(ev) {
			continue
		}
		out, err := a.dispatch(ctx, in, state, ev)
		if err != nil {
			return nil, err
		}
		replies = append(replies, out...)
	}

	sender := &openfloor.Sender{
		SpeakerURI: a.SpeakerURI(),
		ServiceURL: a.serviceURL(),
	}
	reply, err := openfloor.NewEnvelope(&openfloor.Conversation{ID: convID}, sender, replies...)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// addressedToMe reports whether the agent should process the event: either it
// is broadcast (no to) or the to matches this agent's speakerUri or
// serviceUrl.
func (a *Agent) addressedToMe(ev openfloor.Event) bool {
	to := ev.Header().To
	if to == nil {
		return true
	}
	if to.SpeakerURI != "" && to.SpeakerURI == a.SpeakerURI() {
		return true
	}
	if to.ServiceURL != "" && to.ServiceURL == a.serviceURL() {
		return true
	}
	return false
}

func (a *Agent) conversation(id string) *conversationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, ok := a.convs[id]
	if !ok {
		state = &conversationState{}
		a.convs[id] = state
	}
	return state
}

func (a *Agent) forget(id string) {
	a.mu.Lock()
	delete(a.convs, id)
	a.mu.Unlock()
}

func (a *Agent) dispatch(ctx context.Context, in *openfloor.Envelope, state *conversationState, ev openfloor.Event) ([]openfloor.Event, error) {
	switch e := ev.(type) {
	case *openfloor.UtteranceEvent:
		return a.onUtterance(ctx, in, state, e)
	case *openfloor.ContextEvent:
		a.onContext(state, e)
		return nil, nil
	case *openfloor.InviteEvent:
		return a.onInvite(in, state)
	case *openfloor.UninviteEvent, *openfloor.ByeEvent:
		a.forget(in.Conversation.ID)
		return nil, nil
	case *openfloor.GetManifestsEvent:
		return a.onGetManifests(in), nil
	case *openfloor.GrantFloorEvent:
		a.setFloor(state, true)
		return nil, nil
	case *openfloor.RevokeFloorEvent:
		a.setFloor(state, false)
		return nil, nil
	default:
		a.logger.Debug("ignoring event",
			slog.String("event_type", string(ev.Type())),
			slog.String("conversation_id", in.Conversation.ID))
		return nil, nil
	}
}

func (a *Agent) setFloor(state *conversationState, has bool) {
	a.mu.Lock()
	state.hasFloor = has
	a.mu.Unlock()
}

// onUtterance runs the responder over the first text token and replies with
// an utterance addressed back to the envelope's sender.
func (a *Agent) onUtterance(ctx context.Context, in *openfloor.Envelope, state *conversationState, e *openfloor.UtteranceEvent) ([]openfloor.Event, error) {
	a.recordHistory(state, e.DialogEvent)

	text, ok := firstText(e.DialogEvent)
	if !ok {
		a.logger.Debug("utterance carries no text feature",
			slog.String("conversation_id", in.Conversation.ID))
		return nil, nil
	}

	answer, err := a.responder(ctx, in.Conversation.ID, text)
	if err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}
	if answer == "" {
		return nil, nil
	}
	return a.speak(in, answer)
}

// onInvite accepts the invitation with a greeting utterance. An invite
// implies the floor: the agent may speak without a separate grant.
func (a *Agent) onInvite(in *openfloor.Envelope, state *conversationState) ([]openfloor.Event, error) {
	a.mu.Lock()
	state.joined = true
	state.hasFloor = true
	name := a.manifest.Identification.ConversationalName
	a.mu.Unlock()

	greeting := "Hello."
	if name != "" {
		greeting = fmt.Sprintf("Hello, I'm %s. How can I help?", name)
	}
	return a.speak(in, greeting)
}

func (a *Agent) onGetManifests(in *openfloor.Envelope) []openfloor.Event {
	to, err := openfloor.NewTo(in.Sender.SpeakerURI, "", false)
	if err != nil {
		to = nil
	}
	var opts []openfloor.EventOption
	if to != nil {
		opts = append(opts, openfloor.WithTo(to))
	}
	return []openfloor.Event{
		openfloor.NewPublishManifestsEvent([]*openfloor.Manifest{a.Manifest()}, nil, opts...),
	}
}

func (a *Agent) onContext(state *conversationState, e *openfloor.ContextEvent) {
	a.mu.Lock()
	state.history = append(state.history, e.DialogHistory...)
	a.mu.Unlock()
}

func (a *Agent) recordHistory(state *conversationState, d *openfloor.DialogEvent) {
	if d == nil {
		return
	}
	a.mu.Lock()
	state.history = append(state.history, d)
	a.mu.Unlock()
}

// speak builds an utterance event addressed to the envelope's sender.
func (a *Agent) speak(in *openfloor.Envelope, text string) ([]openfloor.Event, error) {
	d, err := openfloor.NewDialogEvent(a.SpeakerURI(),
		openfloor.WithFeature("text", openfloor.NewTextFeature(text)),
	)
	if err != nil {
		return nil, err
	}
	to, err := openfloor.NewTo(in.Sender.SpeakerURI, "", false)
	if err != nil {
		return nil, err
	}
	return []openfloor.Event{
		openfloor.NewUtteranceEvent(d, openfloor.WithTo(to)),
	}, nil
}

// firstText returns the first inline token value of the "text" feature.
func firstText(d *openfloor.DialogEvent) (string, bool) {
	if d == nil {
		return "", false
	}
	f, ok := d.Features.Get("text")
	if !ok || len(f.Tokens) == 0 {
		return "", false
	}
	s, ok := f.Tokens[0].Value.(string)
	return s, ok && s != ""
}
