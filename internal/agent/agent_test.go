package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/openfloor/openfloor-go/pkg/openfloor"
)

func testManifest(t *testing.T) *openfloor.Manifest {
	t.Helper()
	id, err := openfloor.NewIdentification("tag:bot.example.com,2025:b1")
	if err != nil {
		t.Fatalf("NewIdentification() error = %v", err)
	}
	id.ConversationalName = "Misty"
	id.ServiceURL = "https://bot.example.com/floor"
	m, err := openfloor.NewManifest(id)
	if err != nil {
		t.Fatalf("NewManifest() error = %v", err)
	}
	return m
}

func inboundEnvelope(t *testing.T, events ...openfloor.Event) *openfloor.Envelope {
	t.Helper()
	sender, err := openfloor.NewSender("tag:userproxy.example.com,2025:u1")
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	env, err := openfloor.NewEnvelope(openfloor.NewConversation("conv:t1"), sender, events...)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	return env
}

func userUtterance(t *testing.T, text string, opts ...openfloor.EventOption) *openfloor.UtteranceEvent {
	t.Helper()
	d, err := openfloor.NewDialogEvent("tag:userproxy.example.com,2025:u1",
		openfloor.WithFeature("text", openfloor.NewTextFeature(text)),
	)
	if err != nil {
		t.Fatalf("NewDialogEvent() error = %v", err)
	}
	return openfloor.NewUtteranceEvent(d, opts...)
}

func TestExchangeUtteranceGetsReply(t *testing.T) {
	a, err := New(testManifest(t), WithResponder(
		func(_ context.Context, _, text string) (string, error) {
			return "You said: " + text, nil
		},
	))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	in := inboundEnvelope(t, userUtterance(t, "What time is it?"))
	out, err := a.Exchange(context.Background(), in)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if out.Conversation.ID != "conv:t1" {
		t.Errorf("reply conversation id = %q, want conv:t1", out.Conversation.ID)
	}
	if out.Sender.SpeakerURI != "tag:bot.example.com,2025:b1" {
		t.Errorf("reply sender = %q", out.Sender.SpeakerURI)
	}
	if len(out.Events) != 1 {
		t.Fatalf("expected 1 reply event, got %d", len(out.Events))
	}
	utt, ok := out.Events[0].(*openfloor.UtteranceEvent)
	if !ok {
		t.Fatalf("reply event is %T, want *openfloor.UtteranceEvent", out.Events[0])
	}
	if utt.To == nil || utt.To.SpeakerURI != "tag:userproxy.example.com,2025:u1" {
		t.Errorf("reply not addressed to the sender: %+v", utt.To)
	}
	f, _ := utt.DialogEvent.Features.Get("text")
	if got := f.Tokens[0].Value; got != "You said: What time is it?" {
		t.Errorf("reply text = %v", got)
	}
}

func TestExchangeSkipsEventsForOthers(t *testing.T) {
	a, err := New(testManifest(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	other, err := openfloor.NewTo("tag:someoneelse.example.com,2025:x", "", false)
	if err != nil {
		t.Fatalf("NewTo() error = %v", err)
	}
	in := inboundEnvelope(t, userUtterance(t, "not for you", openfloor.WithTo(other)))

	out, err := a.Exchange(context.Background(), in)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(out.Events) != 0 {
		t.Errorf("expected no reply events, got %d", len(out.Events))
	}
}

func TestExchangeAcceptsEventsAddressedByServiceURL(t *testing.T) {
	a, err := New(testManifest(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	to, err := openfloor.NewTo("", "https://bot.example.com/floor", false)
	if err != nil {
		t.Fatalf("NewTo() error = %v", err)
	}
	in := inboundEnvelope(t, userUtterance(t, "hello", openfloor.WithTo(to)))

	out, err := a.Exchange(context.Background(), in)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(out.Events) != 1 {
		t.Errorf("expected an echo reply, got %d events", len(out.Events))
	}
}

func TestExchangeGetManifests(t *testing.T) {
	a, err := New(testManifest(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	in := inboundEnvelope(t, openfloor.NewGetManifestsEvent())
	out, err := a.Exchange(context.Background(), in)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(out.Events) != 1 {
		t.Fatalf("expected 1 reply event, got %d", len(out.Events))
	}
	pub, ok := out.Events[0].(*openfloor.PublishManifestsEvent)
	if !ok {
		t.Fatalf("reply event is %T, want *openfloor.PublishManifestsEvent", out.Events[0])
	}
	if len(pub.ServicingManifests) != 1 {
		t.Fatalf("expected 1 servicing manifest, got %d", len(pub.ServicingManifests))
	}
	if pub.ServicingManifests[0].Identification.SpeakerURI != "tag:bot.example.com,2025:b1" {
		t.Errorf("manifest speakerUri = %q", pub.ServicingManifests[0].Identification.SpeakerURI)
	}
	if pub.To == nil || pub.To.SpeakerURI != "tag:userproxy.example.com,2025:u1" {
		t.Errorf("publishManifests not addressed to requester: %+v", pub.To)
	}
}

func TestExchangeInviteGreets(t *testing.T) {
	a, err := New(testManifest(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	in := inboundEnvelope(t, openfloor.NewInviteEvent())
	out, err := a.Exchange(context.Background(), in)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(out.Events) != 1 {
		t.Fatalf("expected a greeting, got %d events", len(out.Events))
	}
	utt := out.Events[0].(*openfloor.UtteranceEvent)
	f, _ := utt.DialogEvent.Features.Get("text")
	text, _ := f.Tokens[0].Value.(string)
	if !strings.Contains(text, "Misty") {
		t.Errorf("greeting should carry the conversational name, got %q", text)
	}
}

func TestExchangeByeClearsConversationState(t *testing.T) {
	a, err := New(testManifest(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Build some history, then say bye.
	if _, err := a.Exchange(context.Background(), inboundEnvelope(t, userUtterance(t, "remember this"))); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(a.conversation("conv:t1").history) == 0 {
		t.Fatal("utterance should have been recorded in history")
	}

	out, err := a.Exchange(context.Background(), inboundEnvelope(t, userUtterance(t, "again"), openfloor.NewByeEvent()))
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(out.Events) != 1 {
		t.Fatalf("expected echo reply before bye, got %d events", len(out.Events))
	}

	a.mu.Lock()
	_, present := a.convs["conv:t1"]
	a.mu.Unlock()
	if present {
		t.Error("bye should have dropped the conversation state")
	}
}

func TestExchangeFloorGrantTracking(t *testing.T) {
	a, err := New(testManifest(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := a.Exchange(context.Background(), inboundEnvelope(t, openfloor.NewGrantFloorEvent())); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if !a.conversation("conv:t1").hasFloor {
		t.Error("grantFloor should set hasFloor")
	}

	if _, err := a.Exchange(context.Background(), inboundEnvelope(t, openfloor.NewRevokeFloorEvent())); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if a.conversation("conv:t1").hasFloor {
		t.Error("revokeFloor should clear hasFloor")
	}
}

func TestExchangeContextAccumulatesHistory(t *testing.T) {
	a, err := New(testManifest(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d1, _ := openfloor.NewDialogEvent("tag:a")
	d2, _ := openfloor.NewDialogEvent("tag:b")
	in := inboundEnvelope(t, openfloor.NewContextEvent([]*openfloor.DialogEvent{d1, d2}))

	out, err := a.Exchange(context.Background(), in)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(out.Events) != 0 {
		t.Errorf("context should not produce reply events, got %d", len(out.Events))
	}
	if got := len(a.conversation("conv:t1").history); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}
