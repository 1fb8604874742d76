package openfloor

import (
	"fmt"
	"sync"
)

// EventDecoder builds a concrete event from the shared header and the
// variant's parameters payload. params is never nil; path locates the
// parameters object for error reporting.
type EventDecoder func(header EventHeader, params *Structure, path string) (Event, error)

var (
	eventMu       sync.RWMutex
	eventDecoders = make(map[EventType]EventDecoder)
)

func init() {
	RegisterEventType(EventUtterance, decodeUtterance)
	RegisterEventType(EventContext, decodeContext)
	RegisterEventType(EventGetManifests, decodeGetManifests)
	RegisterEventType(EventPublishManifests, decodePublishManifests)
	RegisterEventType(EventInvite, bareEventDecoder(func(h EventHeader, extra *Structure) Event {
		return &InviteEvent{EventHeader: h, Extra: extra}
	}))
	RegisterEventType(EventUninvite, bareEventDecoder(func(h EventHeader, extra *Structure) Event {
		return &UninviteEvent{EventHeader: h, Extra: extra}
	}))
	RegisterEventType(EventDeclineInvite, bareEventDecoder(func(h EventHeader, extra *Structure) Event {
		return &DeclineInviteEvent{EventHeader: h, Extra: extra}
	}))
	RegisterEventType(EventBye, bareEventDecoder(func(h EventHeader, extra *Structure) Event {
		return &ByeEvent{EventHeader: h, Extra: extra}
	}))
	RegisterEventType(EventRequestFloor, bareEventDecoder(func(h EventHeader, extra *Structure) Event {
		return &RequestFloorEvent{EventHeader: h, Extra: extra}
	}))
	RegisterEventType(EventGrantFloor, bareEventDecoder(func(h EventHeader, extra *Structure) Event {
		return &GrantFloorEvent{EventHeader: h, Extra: extra}
	}))
	RegisterEventType(EventRevokeFloor, bareEventDecoder(func(h EventHeader, extra *Structure) Event {
		return &RevokeFloorEvent{EventHeader: h, Extra: extra}
	}))
}

// RegisterEventType adds a decoder for a discriminator. Consumers use it to
// extend the protocol with custom event types. Panics on an empty type, a
// nil decoder or a duplicate registration, mirroring the fail-fast contract
// of process-init registration.
func RegisterEventType(t EventType, dec EventDecoder) {
	eventMu.Lock()
	defer eventMu.Unlock()

	if t == "" {
		panic("openfloor: event type cannot be empty")
	}
	if dec == nil {
		panic(fmt.Sprintf("openfloor: event type %q must have a decoder", t))
	}
	if _, exists := eventDecoders[t]; exists {
		panic(fmt.Sprintf("openfloor: event type %q already registered", t))
	}
	eventDecoders[t] = dec
}

// IsRegisteredEventType reports whether a discriminator has a decoder.
func IsRegisteredEventType(t EventType) bool {
	eventMu.RLock()
	defer eventMu.RUnlock()
	_, ok := eventDecoders[t]
	return ok
}

func lookupEventDecoder(t EventType) (EventDecoder, bool) {
	eventMu.RLock()
	defer eventMu.RUnlock()
	dec, ok := eventDecoders[t]
	return dec, ok
}

// DecodeEvent decodes one event structure, dispatching on eventType through
// the registry. An unregistered discriminator yields an
// *UnknownEventTypeError carrying the raw structure.
func DecodeEvent(st *Structure) (Event, error) {
	return decodeEvent(st, "event", false)
}

func decodeEvent(st *Structure, path string, keepUnknown bool) (Event, error) {
	eventType, err := requiredString(st, path, "eventType")
	if err != nil {
		return nil, err
	}

	var header EventHeader
	toSt, err := optionalStructure(st, path, "to")
	if err != nil {
		return nil, err
	}
	if toSt != nil {
		if header.To, err = toFromStructure(toSt, joinPath(path, "to")); err != nil {
			return nil, err
		}
	}
	if header.Reason, err = optionalString(st, path, "reason"); err != nil {
		return nil, err
	}
	header.Extra = restStructure(st, "eventType", "to", "reason", "parameters")

	params, err := optionalStructure(st, path, "parameters")
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = NewStructure()
	}

	dec, ok := lookupEventDecoder(EventType(eventType))
	if !ok {
		if keepUnknown {
			var retained *Structure
			if params.Len() > 0 {
				retained = params
			}
			return &OpaqueEvent{EventHeader: header, RawType: eventType, Params: retained}, nil
		}
		return nil, &UnknownEventTypeError{EventType: eventType, Raw: st}
	}
	return dec(header, params, joinPath(path, "parameters"))
}
