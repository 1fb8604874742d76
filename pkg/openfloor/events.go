package openfloor

// EventType is the eventType wire discriminator selecting an Event variant.
type EventType string

// The eleven built-in event types. Additional discriminators may be added at
// runtime with RegisterEventType.
const (
	EventUtterance        EventType = "utterance"
	EventContext          EventType = "context"
	EventInvite           EventType = "invite"
	EventUninvite         EventType = "uninvite"
	EventDeclineInvite    EventType = "declineInvite"
	EventBye              EventType = "bye"
	EventGetManifests     EventType = "getManifests"
	EventPublishManifests EventType = "publishManifests"
	EventRequestFloor     EventType = "requestFloor"
	EventGrantFloor       EventType = "grantFloor"
	EventRevokeFloor      EventType = "revokeFloor"
)

// To addresses an event to a single conversant. Private asks downstream
// floor managers not to broadcast the event to anyone else; this layer only
// carries the flag, it never enforces it.
type To struct {
	SpeakerURI string
	ServiceURL string
	Private    bool

	Extra *Structure
}

// NewTo builds a target address. At least one of speakerURI and serviceURL
// must be given.
func NewTo(speakerURI, serviceURL string, private bool) (*To, error) {
	t := &To{SpeakerURI: speakerURI, ServiceURL: serviceURL, Private: private}
	if err := t.validate("to"); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *To) validate(field string) error {
	if t.SpeakerURI == "" && t.ServiceURL == "" {
		return validationErrorf(field, "either speakerUri or serviceUrl is required")
	}
	return nil
}

// ToStructure converts the address to its wire form. A false private flag is
// omitted; a true one serializes as an explicit boolean.
func (t *To) ToStructure() *Structure {
	out := NewStructure()
	if t.SpeakerURI != "" {
		out.Set("speakerUri", t.SpeakerURI)
	}
	if t.ServiceURL != "" {
		out.Set("serviceUrl", t.ServiceURL)
	}
	if t.Private {
		out.Set("private", true)
	}
	mergeExtra(out, t.Extra)
	return out
}

func toFromStructure(st *Structure, path string) (*To, error) {
	t := &To{}
	var err error
	if t.SpeakerURI, err = optionalString(st, path, "speakerUri"); err != nil {
		return nil, err
	}
	if t.ServiceURL, err = optionalString(st, path, "serviceUrl"); err != nil {
		return nil, err
	}
	if t.Private, err = optionalBool(st, path, "private"); err != nil {
		return nil, err
	}
	if err := t.validate(path); err != nil {
		return nil, err
	}
	t.Extra = restStructure(st, "speakerUri", "serviceUrl", "private")
	return t, nil
}

// EventHeader carries the fields shared by every event variant. Extra holds
// unrecognized top-level event keys.
type EventHeader struct {
	To     *To
	Reason string
	Extra  *Structure
}

// Header returns the shared event fields; it makes any type embedding an
// EventHeader satisfy that part of the Event interface.
func (h *EventHeader) Header() *EventHeader { return h }

// EventOption configures the shared header of a new event.
type EventOption func(*EventHeader)

// WithTo addresses the event to a single conversant.
func WithTo(to *To) EventOption {
	return func(h *EventHeader) { h.To = to }
}

// WithReason attaches a human-readable reason to the event.
func WithReason(reason string) EventOption {
	return func(h *EventHeader) { h.Reason = reason }
}

// Event is one entry of an envelope's events sequence: a discriminated
// variant made of the shared header plus a variant-specific parameters
// payload.
type Event interface {
	// Type returns the wire discriminator.
	Type() EventType
	// Header returns the shared to/reason fields.
	Header() *EventHeader
	// Parameters returns the wire form of the variant payload. A nil or
	// empty result omits the parameters key entirely.
	Parameters() *Structure
}

// EventToStructure converts any event to its wire form.
func EventToStructure(e Event) *Structure {
	out := NewStructure()
	out.Set("eventType", string(e.Type()))
	h := e.Header()
	if h.To != nil {
		out.Set("to", h.To.ToStructure())
	}
	if h.Reason != "" {
		out.Set("reason", h.Reason)
	}
	if p := e.Parameters(); p.Len() > 0 {
		out.Set("parameters", p)
	}
	mergeExtra(out, h.Extra)
	return out
}

// UtteranceEvent carries one dialog event of conversational content.
type UtteranceEvent struct {
	EventHeader
	DialogEvent *DialogEvent

	// Extra holds unrecognized parameters keys.
	Extra *Structure
}

// NewUtteranceEvent wraps a dialog event for transmission.
func NewUtteranceEvent(d *DialogEvent, opts ...EventOption) *UtteranceEvent {
	e := &UtteranceEvent{DialogEvent: d}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *UtteranceEvent) Type() EventType { return EventUtterance }

func (e *UtteranceEvent) Parameters() *Structure {
	p := NewStructure()
	if e.DialogEvent != nil {
		p.Set("dialogEvent", e.DialogEvent.ToStructure())
	}
	mergeExtra(p, e.Extra)
	return p
}

func decodeUtterance(h EventHeader, params *Structure, path string) (Event, error) {
	e := &UtteranceEvent{EventHeader: h}
	deSt, err := requiredStructure(params, path, "dialogEvent")
	if err != nil {
		return nil, err
	}
	if e.DialogEvent, err = dialogEventFromStructure(deSt, joinPath(path, "dialogEvent")); err != nil {
		return nil, err
	}
	e.Extra = restStructure(params, "dialogEvent")
	return e, nil
}

// ContextEvent shares conversational context: an optional dialog history
// plus arbitrary application keys, both preserved across a round trip.
type ContextEvent struct {
	EventHeader
	DialogHistory []*DialogEvent

	// Extra holds the open application keys of the parameters payload.
	Extra *Structure
}

// NewContextEvent builds a context event carrying the given history.
func NewContextEvent(history []*DialogEvent, opts ...EventOption) *ContextEvent {
	e := &ContextEvent{DialogHistory: history}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *ContextEvent) Type() EventType { return EventContext }

func (e *ContextEvent) Parameters() *Structure {
	p := NewStructure()
	// A present-but-empty history is distinct from an absent one and
	// round-trips as [].
	if e.DialogHistory != nil {
		history := make([]any, len(e.DialogHistory))
		for i, d := range e.DialogHistory {
			history[i] = d.ToStructure()
		}
		p.Set("dialogHistory", history)
	}
	mergeExtra(p, e.Extra)
	return p
}

func decodeContext(h EventHeader, params *Structure, path string) (Event, error) {
	e := &ContextEvent{EventHeader: h}
	arr, err := optionalArray(params, path, "dialogHistory")
	if err != nil {
		return nil, err
	}
	if arr != nil {
		e.DialogHistory = make([]*DialogEvent, 0, len(arr))
	}
	for i, entry := range arr {
		dePath := indexPath(joinPath(path, "dialogHistory"), i)
		sub, ok := entry.(*Structure)
		if !ok {
			return nil, schemaErrorf(dePath, entry, "expected a dialog event object")
		}
		d, err := dialogEventFromStructure(sub, dePath)
		if err != nil {
			return nil, err
		}
		e.DialogHistory = append(e.DialogHistory, d)
	}
	e.Extra = restStructure(params, "dialogHistory")
	return e, nil
}

// GetManifestsEvent asks a conversant to publish its manifests.
// RecommendScope narrows the request to servicing or discovery manifests.
type GetManifestsEvent struct {
	EventHeader
	RecommendScope string

	Extra *Structure
}

// NewGetManifestsEvent builds a manifest request.
func NewGetManifestsEvent(opts ...EventOption) *GetManifestsEvent {
	e := &GetManifestsEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *GetManifestsEvent) Type() EventType { return EventGetManifests }

func (e *GetManifestsEvent) Parameters() *Structure {
	p := NewStructure()
	if e.RecommendScope != "" {
		p.Set("recommendScope", e.RecommendScope)
	}
	mergeExtra(p, e.Extra)
	return p
}

func decodeGetManifests(h EventHeader, params *Structure, path string) (Event, error) {
	e := &GetManifestsEvent{EventHeader: h}
	var err error
	if e.RecommendScope, err = optionalString(params, path, "recommendScope"); err != nil {
		return nil, err
	}
	e.Extra = restStructure(params, "recommendScope")
	return e, nil
}

// PublishManifestsEvent answers getManifests with the sender's own servicing
// manifests and any discovery manifests it recommends.
type PublishManifestsEvent struct {
	EventHeader
	ServicingManifests []*Manifest
	DiscoveryManifests []*Manifest

	Extra *Structure
}

// NewPublishManifestsEvent builds a manifest publication.
func NewPublishManifestsEvent(servicing, discovery []*Manifest, opts ...EventOption) *PublishManifestsEvent {
	e := &PublishManifestsEvent{ServicingManifests: servicing, DiscoveryManifests: discovery}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *PublishManifestsEvent) Type() EventType { return EventPublishManifests }

func (e *PublishManifestsEvent) Parameters() *Structure {
	p := NewStructure()
	if e.ServicingManifests != nil {
		p.Set("servicingManifests", manifestsToValues(e.ServicingManifests))
	}
	if e.DiscoveryManifests != nil {
		p.Set("discoveryManifests", manifestsToValues(e.DiscoveryManifests))
	}
	mergeExtra(p, e.Extra)
	return p
}

func manifestsToValues(manifests []*Manifest) []any {
	out := make([]any, len(manifests))
	for i, m := range manifests {
		out[i] = m.ToStructure()
	}
	return out
}

func decodePublishManifests(h EventHeader, params *Structure, path string) (Event, error) {
	e := &PublishManifestsEvent{EventHeader: h}
	var err error
	if e.ServicingManifests, err = manifestListField(params, path, "servicingManifests"); err != nil {
		return nil, err
	}
	if e.DiscoveryManifests, err = manifestListField(params, path, "discoveryManifests"); err != nil {
		return nil, err
	}
	e.Extra = restStructure(params, "servicingManifests", "discoveryManifests")
	return e, nil
}

func manifestListField(st *Structure, path, key string) ([]*Manifest, error) {
	arr, err := optionalArray(st, path, key)
	if err != nil || arr == nil {
		return nil, err
	}
	out := make([]*Manifest, 0, len(arr))
	for i, entry := range arr {
		mPath := indexPath(joinPath(path, key), i)
		sub, ok := entry.(*Structure)
		if !ok {
			return nil, schemaErrorf(mPath, entry, "expected a manifest object")
		}
		m, err := manifestFromStructure(sub, mPath)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// The floor-control and membership events carry no typed payload; their
// parameters are an open bag preserved verbatim.

// InviteEvent asks a conversant to join the conversation.
type InviteEvent struct {
	EventHeader
	Extra *Structure
}

// NewInviteEvent builds an invitation.
func NewInviteEvent(opts ...EventOption) *InviteEvent {
	e := &InviteEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *InviteEvent) Type() EventType        { return EventInvite }
func (e *InviteEvent) Parameters() *Structure { return e.Extra }

// UninviteEvent removes a conversant from the conversation.
type UninviteEvent struct {
	EventHeader
	Extra *Structure
}

// NewUninviteEvent builds an uninvite.
func NewUninviteEvent(opts ...EventOption) *UninviteEvent {
	e := &UninviteEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *UninviteEvent) Type() EventType        { return EventUninvite }
func (e *UninviteEvent) Parameters() *Structure { return e.Extra }

// DeclineInviteEvent refuses an invitation; the shared reason field says why.
type DeclineInviteEvent struct {
	EventHeader
	Extra *Structure
}

// NewDeclineInviteEvent builds a refusal.
func NewDeclineInviteEvent(opts ...EventOption) *DeclineInviteEvent {
	e := &DeclineInviteEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *DeclineInviteEvent) Type() EventType        { return EventDeclineInvite }
func (e *DeclineInviteEvent) Parameters() *Structure { return e.Extra }

// ByeEvent announces that the sender is leaving the conversation.
type ByeEvent struct {
	EventHeader
	Extra *Structure
}

// NewByeEvent builds a farewell.
func NewByeEvent(opts ...EventOption) *ByeEvent {
	e := &ByeEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *ByeEvent) Type() EventType        { return EventBye }
func (e *ByeEvent) Parameters() *Structure { return e.Extra }

// RequestFloorEvent asks the floor manager for permission to speak.
type RequestFloorEvent struct {
	EventHeader
	Extra *Structure
}

// NewRequestFloorEvent builds a floor request.
func NewRequestFloorEvent(opts ...EventOption) *RequestFloorEvent {
	e := &RequestFloorEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *RequestFloorEvent) Type() EventType        { return EventRequestFloor }
func (e *RequestFloorEvent) Parameters() *Structure { return e.Extra }

// GrantFloorEvent gives the addressed conversant the floor.
type GrantFloorEvent struct {
	EventHeader
	Extra *Structure
}

// NewGrantFloorEvent builds a floor grant.
func NewGrantFloorEvent(opts ...EventOption) *GrantFloorEvent {
	e := &GrantFloorEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *GrantFloorEvent) Type() EventType        { return EventGrantFloor }
func (e *GrantFloorEvent) Parameters() *Structure { return e.Extra }

// RevokeFloorEvent takes the floor back from the addressed conversant.
type RevokeFloorEvent struct {
	EventHeader
	Extra *Structure
}

// NewRevokeFloorEvent builds a floor revocation.
func NewRevokeFloorEvent(opts ...EventOption) *RevokeFloorEvent {
	e := &RevokeFloorEvent{}
	for _, opt := range opts {
		opt(&e.EventHeader)
	}
	return e
}

func (e *RevokeFloorEvent) Type() EventType        { return EventRevokeFloor }
func (e *RevokeFloorEvent) Parameters() *Structure { return e.Extra }

// bareEventDecoder decodes a payload-free variant, keeping all parameters in
// the open bag.
func bareEventDecoder(build func(EventHeader, *Structure) Event) EventDecoder {
	return func(h EventHeader, params *Structure, path string) (Event, error) {
		var extra *Structure
		if params.Len() > 0 {
			extra = params
		}
		return build(h, extra), nil
	}
}

// OpaqueEvent retains an event whose discriminator has no registered
// decoder. It round-trips bit-faithfully but offers no typed access. Parsers
// produce it only when WithOpaqueEvents is given.
type OpaqueEvent struct {
	EventHeader
	RawType string
	Params  *Structure
}

func (e *OpaqueEvent) Type() EventType        { return EventType(e.RawType) }
func (e *OpaqueEvent) Parameters() *Structure { return e.Params }
