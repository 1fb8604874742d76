package openfloor

import (
	"errors"
	"fmt"
	"testing"
)

func decodeEventJSON(t *testing.T, text string) Event {
	t.Helper()
	st, err := DecodeStructure([]byte(text))
	if err != nil {
		t.Fatalf("DecodeStructure() error = %v", err)
	}
	ev, err := DecodeEvent(st)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	return ev
}

func TestDecodeEventAllBuiltinTypes(t *testing.T) {
	tests := []struct {
		eventType EventType
		params    string
		check     func(Event) bool
	}{
		{EventUtterance, `{"dialogEvent":{"speakerUri":"tag:a","features":{}}}`,
			func(e Event) bool { _, ok := e.(*UtteranceEvent); return ok }},
		{EventContext, `{}`,
			func(e Event) bool { _, ok := e.(*ContextEvent); return ok }},
		{EventInvite, `{}`,
			func(e Event) bool { _, ok := e.(*InviteEvent); return ok }},
		{EventUninvite, `{}`,
			func(e Event) bool { _, ok := e.(*UninviteEvent); return ok }},
		{EventDeclineInvite, `{}`,
			func(e Event) bool { _, ok := e.(*DeclineInviteEvent); return ok }},
		{EventBye, `{}`,
			func(e Event) bool { _, ok := e.(*ByeEvent); return ok }},
		{EventGetManifests, `{}`,
			func(e Event) bool { _, ok := e.(*GetManifestsEvent); return ok }},
		{EventPublishManifests, `{}`,
			func(e Event) bool { _, ok := e.(*PublishManifestsEvent); return ok }},
		{EventRequestFloor, `{}`,
			func(e Event) bool { _, ok := e.(*RequestFloorEvent); return ok }},
		{EventGrantFloor, `{}`,
			func(e Event) bool { _, ok := e.(*GrantFloorEvent); return ok }},
		{EventRevokeFloor, `{}`,
			func(e Event) bool { _, ok := e.(*RevokeFloorEvent); return ok }},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			text := fmt.Sprintf(`{"eventType":%q,"parameters":%s}`, tt.eventType, tt.params)
			ev := decodeEventJSON(t, text)
			if !tt.check(ev) {
				t.Fatalf("decoded to wrong concrete type %T", ev)
			}
			if ev.Type() != tt.eventType {
				t.Errorf("Type() = %q, want %q", ev.Type(), tt.eventType)
			}
		})
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	st, _ := DecodeStructure([]byte(`{"eventType":"yieldFloor","parameters":{"k":"v"}}`))
	_, err := DecodeEvent(st)

	var uerr *UnknownEventTypeError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnknownEventTypeError, got %v", err)
	}
	if uerr.EventType != "yieldFloor" {
		t.Errorf("EventType = %q, want yieldFloor", uerr.EventType)
	}
	if uerr.Raw == nil || !uerr.Raw.Has("parameters") {
		t.Error("raw structure should be retained on the error")
	}
}

func TestRegisterEventTypeExtension(t *testing.T) {
	if IsRegisteredEventType("customYield") {
		t.Fatal("customYield unexpectedly pre-registered")
	}
	RegisterEventType("customYield", func(h EventHeader, params *Structure, path string) (Event, error) {
		return &OpaqueEvent{EventHeader: h, RawType: "customYield", Params: params}, nil
	})

	ev := decodeEventJSON(t, `{"eventType":"customYield","parameters":{"slot":3}}`)
	if ev.Type() != "customYield" {
		t.Errorf("Type() = %q, want customYield", ev.Type())
	}
}

func TestRegisterEventTypeRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterEventType(EventUtterance, decodeUtterance)
}

func TestPrivateFlagCarryThrough(t *testing.T) {
	input := `{"eventType":"utterance","to":{"speakerUri":"tag:x","private":true},` +
		`"parameters":{"dialogEvent":{"id":"de:1","speakerUri":"tag:a","features":{}}}}`

	ev := decodeEventJSON(t, input)
	h := ev.Header()
	if h.To == nil || h.To.SpeakerURI != "tag:x" || !h.To.Private {
		t.Fatalf("to not carried through: %+v", h.To)
	}

	out, err := EventToStructure(ev).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	reparsed, _ := DecodeStructure(out)
	toSt, _ := reparsed.Get("to")
	if p, _ := toSt.(*Structure).Get("private"); p != true {
		t.Errorf("private flag not serialized exactly: %v", p)
	}
}

func TestToRequiresSomeAddress(t *testing.T) {
	st, _ := DecodeStructure([]byte(`{"eventType":"bye","to":{"private":true}}`))
	_, err := DecodeEvent(st)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestContextEventRoundTripKeepsHistoryAndExtras(t *testing.T) {
	history := `[{"id":"de:1","speakerUri":"tag:a","features":{}},` +
		`{"id":"de:2","speakerUri":"tag:b","features":{}},` +
		`{"id":"de:3","speakerUri":"tag:a","features":{}},` +
		`{"id":"de:4","speakerUri":"tag:b","features":{}}]`
	input := `{"eventType":"context","parameters":{"dialogHistory":` + history +
		`,"arbitrary_key":"arbitrary_value","another":[1,2]}}`

	ev := decodeEventJSON(t, input)
	ctx, ok := ev.(*ContextEvent)
	if !ok {
		t.Fatalf("decoded to %T, want *ContextEvent", ev)
	}
	if len(ctx.DialogHistory) != 4 {
		t.Fatalf("expected 4 history events, got %d", len(ctx.DialogHistory))
	}
	if ctx.DialogHistory[1].SpeakerURI != "tag:b" {
		t.Errorf("history order lost: %v", ctx.DialogHistory[1].SpeakerURI)
	}
	if v, _ := ctx.Extra.Get("arbitrary_key"); v != "arbitrary_value" {
		t.Errorf("extra key lost: %v", v)
	}

	out, err := EventToStructure(ev).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != input {
		t.Errorf("round trip changed text:\n in: %s\nout: %s", input, out)
	}
}

func TestContextEventEmptyHistoryRoundTrip(t *testing.T) {
	input := `{"eventType":"context","parameters":{"dialogHistory":[]}}`

	ev := decodeEventJSON(t, input)
	ctx := ev.(*ContextEvent)
	if ctx.DialogHistory == nil || len(ctx.DialogHistory) != 0 {
		t.Fatalf("present-empty history should decode as empty, not nil: %v", ctx.DialogHistory)
	}

	out, err := EventToStructure(ev).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != input {
		t.Errorf("round trip changed text:\n in: %s\nout: %s", input, out)
	}

	// Absent history stays absent.
	bare := decodeEventJSON(t, `{"eventType":"context"}`)
	if bare.(*ContextEvent).DialogHistory != nil {
		t.Error("absent history should decode as nil")
	}
	if EventToStructure(bare).Has("parameters") {
		t.Error("absent history should not reappear on serialization")
	}
}

func TestUtteranceEventRequiresDialogEvent(t *testing.T) {
	st, _ := DecodeStructure([]byte(`{"eventType":"utterance","parameters":{}}`))
	_, err := DecodeEvent(st)
	var serr *SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if serr.Path != "event.parameters.dialogEvent" {
		t.Errorf("unexpected error path %q", serr.Path)
	}
}

func TestPublishManifestsRoundTrip(t *testing.T) {
	input := `{"eventType":"publishManifests","parameters":{"servicingManifests":[` +
		`{"identification":{"speakerUri":"tag:bot","serviceUrl":"https://bot.example"},"capabilities":[]}` +
		`],"discoveryManifests":[]}}`

	ev := decodeEventJSON(t, input)
	pub, ok := ev.(*PublishManifestsEvent)
	if !ok {
		t.Fatalf("decoded to %T, want *PublishManifestsEvent", ev)
	}
	if len(pub.ServicingManifests) != 1 {
		t.Fatalf("expected 1 servicing manifest, got %d", len(pub.ServicingManifests))
	}
	if pub.ServicingManifests[0].Identification.SpeakerURI != "tag:bot" {
		t.Errorf("manifest speakerUri lost")
	}
	if pub.DiscoveryManifests == nil || len(pub.DiscoveryManifests) != 0 {
		t.Errorf("empty discovery list should decode as empty, not nil")
	}

	out, _ := EventToStructure(ev).MarshalJSON()
	if string(out) != input {
		t.Errorf("round trip changed text:\n in: %s\nout: %s", input, out)
	}
}

func TestEventHeaderVendorKeysPreserved(t *testing.T) {
	input := `{"eventType":"bye","reason":"done","x-trace":"t-99"}`
	ev := decodeEventJSON(t, input)

	if ev.Header().Reason != "done" {
		t.Errorf("reason lost: %q", ev.Header().Reason)
	}
	out, _ := EventToStructure(ev).MarshalJSON()
	if string(out) != input {
		t.Errorf("round trip changed text:\n in: %s\nout: %s", input, out)
	}
}
