package openfloor

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

const envelopeFixture = `{"schema":{"version":"1.0.0"},` +
	`"conversation":{"id":"conv:42","conversants":[` +
	`{"identification":{"speakerUri":"tag:userproxy.example.com,2025:u1","conversationalName":"Pat"},` +
	`"persistentState":{"conversationActive":true,"conversationEnded":null}}` +
	`]},` +
	`"sender":{"speakerUri":"tag:userproxy.example.com,2025:u1"},` +
	`"events":[` +
	`{"eventType":"utterance","parameters":{"dialogEvent":` +
	`{"id":"de:1","speakerUri":"tag:userproxy.example.com,2025:u1",` +
	`"features":{"text":{"mimeType":"text/plain","tokens":[{"value":"What time is it?"}]}}}}},` +
	`{"eventType":"requestFloor","reason":"urgent"}` +
	`],` +
	`"x-envelope-trace":"t-1"}`

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := ParseEnvelope([]byte(envelopeFixture))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	if env.Schema.Version != "1.0.0" {
		t.Errorf("schema version = %q", env.Schema.Version)
	}
	if env.Conversation.ID != "conv:42" {
		t.Errorf("conversation id = %q", env.Conversation.ID)
	}
	if len(env.Conversation.Conversants) != 1 {
		t.Fatalf("expected 1 conversant, got %d", len(env.Conversation.Conversants))
	}
	if len(env.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(env.Events))
	}
	if _, ok := env.Events[0].(*UtteranceEvent); !ok {
		t.Errorf("event 0 decoded to %T, want *UtteranceEvent", env.Events[0])
	}
	if _, ok := env.Events[1].(*RequestFloorEvent); !ok {
		t.Errorf("event 1 decoded to %T, want *RequestFloorEvent", env.Events[1])
	}

	out, err := env.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(out) != envelopeFixture {
		t.Errorf("round trip changed text:\n in: %s\nout: %s", envelopeFixture, out)
	}
}

func TestEnvelopePersistentStateKeepsExplicitNull(t *testing.T) {
	env, err := ParseEnvelope([]byte(envelopeFixture))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	state := env.Conversation.Conversants[0].PersistentState
	if state == nil {
		t.Fatal("persistentState was dropped")
	}
	if v, ok := state.Get("conversationActive"); !ok || v != true {
		t.Errorf("conversationActive = %v, %v", v, ok)
	}
	v, ok := state.Get("conversationEnded")
	if !ok {
		t.Fatal("explicit null key conversationEnded was dropped")
	}
	if v != nil {
		t.Errorf("conversationEnded = %v, want explicit null", v)
	}
}

func TestEnvelopeMissingRequiredSections(t *testing.T) {
	tests := []struct {
		name  string
		input string
		path  string
	}{
		{"conversation", `{"sender":{"speakerUri":"tag:a"}}`, "conversation"},
		{"sender", `{"conversation":{"id":"conv:1"}}`, "sender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.input))
			var serr *SchemaError
			if !errors.As(err, &serr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if serr.Path != tt.path {
				t.Errorf("error path = %q, want %q", serr.Path, tt.path)
			}
		})
	}
}

func TestEnvelopeMissingSchemaDefaults(t *testing.T) {
	input := `{"conversation":{"id":"conv:1"},"sender":{"speakerUri":"tag:a"}}`
	env, err := ParseEnvelope([]byte(input))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if env.Schema == nil || env.Schema.Version != CurrentSchemaVersion {
		t.Errorf("schema should default to %s, got %+v", CurrentSchemaVersion, env.Schema)
	}
}

func TestEnvelopeConversationIDGenerated(t *testing.T) {
	input := `{"conversation":{},"sender":{"speakerUri":"tag:a"}}`
	env, err := ParseEnvelope([]byte(input))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if !strings.HasPrefix(env.Conversation.ID, "conv:") {
		t.Errorf("expected generated conv: id, got %q", env.Conversation.ID)
	}
}

func TestParseEnvelopeUnknownEventFailsWithoutOption(t *testing.T) {
	input := `{"conversation":{"id":"conv:1"},"sender":{"speakerUri":"tag:a"},` +
		`"events":[{"eventType":"telemetryPing","parameters":{"seq":1}}]}`

	_, err := ParseEnvelope([]byte(input))
	var uerr *UnknownEventTypeError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnknownEventTypeError, got %v", err)
	}
	if uerr.EventType != "telemetryPing" {
		t.Errorf("EventType = %q", uerr.EventType)
	}
}

func TestParseEnvelopeOpaqueEvents(t *testing.T) {
	input := `{"conversation":{"id":"conv:1"},"sender":{"speakerUri":"tag:a"},` +
		`"events":[{"eventType":"telemetryPing","parameters":{"seq":1}},{"eventType":"bye"}]}`

	env, err := ParseEnvelope([]byte(input), WithOpaqueEvents())
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	op, ok := env.Events[0].(*OpaqueEvent)
	if !ok {
		t.Fatalf("event 0 decoded to %T, want *OpaqueEvent", env.Events[0])
	}
	if op.RawType != "telemetryPing" {
		t.Errorf("RawType = %q", op.RawType)
	}

	out, err := env.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(out) != input {
		t.Errorf("round trip changed text:\n in: %s\nout: %s", input, out)
	}
}

func TestNewEnvelopeValidation(t *testing.T) {
	sender, _ := NewSender("tag:a")

	if _, err := NewEnvelope(nil, sender); err == nil {
		t.Error("expected error for nil conversation")
	}
	if _, err := NewEnvelope(NewConversation("conv:1"), nil); err == nil {
		t.Error("expected error for nil sender")
	}

	env, err := NewEnvelope(NewConversation("conv:1"), sender)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if env.Schema.Version != CurrentSchemaVersion {
		t.Errorf("schema version = %q", env.Schema.Version)
	}

	st := env.ToStructure()
	if st.Has("events") {
		t.Error("empty events list should be omitted")
	}
}

func TestEnvelopeWriteAndLoadFile(t *testing.T) {
	env, err := ParseEnvelope([]byte(envelopeFixture))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "envelope.json")
	if err := WriteFile(path, env); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loaded, err := LoadEnvelope(path)
	if err != nil {
		t.Fatalf("LoadEnvelope() error = %v", err)
	}
	if !loaded.ToStructure().Equal(env.ToStructure()) {
		t.Error("loaded envelope differs from the written one")
	}
}

func TestLoadEnvelopeMissingFile(t *testing.T) {
	_, err := LoadEnvelope(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected an I/O error for a missing file")
	}
	var serr *SchemaError
	if errors.As(err, &serr) {
		t.Error("I/O failure must not be reported as a schema error")
	}
}
