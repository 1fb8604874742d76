package openfloor

// Schema identifies the envelope format version.
type Schema struct {
	Version string
	URL     string

	Extra *Structure
}

// CurrentSchemaVersion is the envelope schema this package implements.
const CurrentSchemaVersion = "1.0.0"

// DefaultSchema returns the current schema record.
func DefaultSchema() *Schema {
	return &Schema{Version: CurrentSchemaVersion}
}

// ToStructure converts the schema to its wire form.
func (s *Schema) ToStructure() *Structure {
	out := NewStructure()
	version := s.Version
	if version == "" {
		version = CurrentSchemaVersion
	}
	out.Set("version", version)
	if s.URL != "" {
		out.Set("url", s.URL)
	}
	mergeExtra(out, s.Extra)
	return out
}

func schemaFromStructure(st *Structure, path string) (*Schema, error) {
	s := &Schema{}
	var err error
	if s.Version, err = optionalString(st, path, "version"); err != nil {
		return nil, err
	}
	if s.Version == "" {
		s.Version = CurrentSchemaVersion
	}
	if s.URL, err = optionalString(st, path, "url"); err != nil {
		return nil, err
	}
	s.Extra = restStructure(st, "version", "url")
	return s, nil
}

// Sender identifies the transport-level origin of an envelope. It may differ
// from the speakerUri inside a forwarded dialog event.
type Sender struct {
	SpeakerURI string
	ServiceURL string

	Extra *Structure
}

// NewSender builds a sender record.
func NewSender(speakerURI string) (*Sender, error) {
	if speakerURI == "" {
		return nil, validationErrorf("sender.speakerUri", "is required")
	}
	return &Sender{SpeakerURI: speakerURI}, nil
}

// ToStructure converts the sender to its wire form.
func (s *Sender) ToStructure() *Structure {
	out := NewStructure()
	out.Set("speakerUri", s.SpeakerURI)
	if s.ServiceURL != "" {
		out.Set("serviceUrl", s.ServiceURL)
	}
	mergeExtra(out, s.Extra)
	return out
}

func senderFromStructure(st *Structure, path string) (*Sender, error) {
	s := &Sender{}
	var err error
	if s.SpeakerURI, err = requiredString(st, path, "speakerUri"); err != nil {
		return nil, err
	}
	if s.ServiceURL, err = optionalString(st, path, "serviceUrl"); err != nil {
		return nil, err
	}
	s.Extra = restStructure(st, "speakerUri", "serviceUrl")
	return s, nil
}

// Conversant is one participant of a conversation. PersistentState is the
// open key/value state a stateless agent asks the floor to carry forward
// between turns; explicit nulls in it signal cleared keys and are preserved.
type Conversant struct {
	Identification  *Identification
	PersistentState *Structure

	Extra *Structure
}

// NewConversant builds a conversant from an identification.
func NewConversant(id *Identification) (*Conversant, error) {
	if id == nil {
		return nil, validationErrorf("identification", "is required")
	}
	return &Conversant{Identification: id}, nil
}

// ToStructure converts the conversant to its wire form.
func (c *Conversant) ToStructure() *Structure {
	out := NewStructure()
	out.Set("identification", c.Identification.ToStructure())
	if c.PersistentState.Len() > 0 {
		out.Set("persistentState", c.PersistentState)
	}
	mergeExtra(out, c.Extra)
	return out
}

func conversantFromStructure(st *Structure, path string) (*Conversant, error) {
	c := &Conversant{}
	idSt, err := requiredStructure(st, path, "identification")
	if err != nil {
		return nil, err
	}
	if c.Identification, err = identificationFromStructure(idSt, joinPath(path, "identification")); err != nil {
		return nil, err
	}
	if c.PersistentState, err = optionalStructure(st, path, "persistentState"); err != nil {
		return nil, err
	}
	c.Extra = restStructure(st, "identification", "persistentState")
	return c, nil
}

// Conversation is the shared floor context: an identifier plus the ordered
// list of participants (insertion order is join order). Conversant
// uniqueness by speakerUri is the caller's responsibility; duplicates are
// never removed here.
type Conversation struct {
	ID          string
	Conversants []*Conversant

	Extra *Structure
}

// NewConversation builds a conversation, generating a "conv:" id when the
// given one is empty.
func NewConversation(id string) *Conversation {
	if id == "" {
		id = newID("conv")
	}
	return &Conversation{ID: id}
}

// AddConversant appends a participant in join order.
func (c *Conversation) AddConversant(conv *Conversant) {
	c.Conversants = append(c.Conversants, conv)
}

// ToStructure converts the conversation to its wire form.
func (c *Conversation) ToStructure() *Structure {
	out := NewStructure()
	out.Set("id", c.ID)
	if len(c.Conversants) > 0 {
		conversants := make([]any, len(c.Conversants))
		for i, conv := range c.Conversants {
			conversants[i] = conv.ToStructure()
		}
		out.Set("conversants", conversants)
	}
	mergeExtra(out, c.Extra)
	return out
}

func conversationFromStructure(st *Structure, path string) (*Conversation, error) {
	c := &Conversation{}
	var err error
	if c.ID, err = optionalString(st, path, "id"); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = newID("conv")
	}
	arr, err := optionalArray(st, path, "conversants")
	if err != nil {
		return nil, err
	}
	for i, entry := range arr {
		cPath := indexPath(joinPath(path, "conversants"), i)
		sub, ok := entry.(*Structure)
		if !ok {
			return nil, schemaErrorf(cPath, entry, "expected a conversant object")
		}
		conv, err := conversantFromStructure(sub, cPath)
		if err != nil {
			return nil, err
		}
		c.Conversants = append(c.Conversants, conv)
	}
	c.Extra = restStructure(st, "id", "conversants")
	return c, nil
}

// Envelope is the aggregate root: the transmissible message carrying one
// conversation, one sender and an ordered event sequence. An envelope graph
// belongs to one logical owner at a time; concurrent mutation is the
// embedding application's problem to serialize.
type Envelope struct {
	Schema       *Schema
	Conversation *Conversation
	Sender       *Sender
	Events       []Event

	Extra *Structure
}

// NewEnvelope builds an envelope. Conversation and sender are required; the
// schema defaults to the current version.
func NewEnvelope(conversation *Conversation, sender *Sender, events ...Event) (*Envelope, error) {
	if conversation == nil {
		return nil, validationErrorf("conversation", "is required")
	}
	if sender == nil {
		return nil, validationErrorf("sender", "is required")
	}
	return &Envelope{
		Schema:       DefaultSchema(),
		Conversation: conversation,
		Sender:       sender,
		Events:       events,
	}, nil
}

// AddEvent appends events in order. The events list is append-only through
// this surface; nothing is deduplicated or re-sorted.
func (e *Envelope) AddEvent(events ...Event) {
	e.Events = append(e.Events, events...)
}

// ToStructure converts the envelope to its wire form.
func (e *Envelope) ToStructure() *Structure {
	out := NewStructure()
	schema := e.Schema
	if schema == nil {
		schema = DefaultSchema()
	}
	out.Set("schema", schema.ToStructure())
	out.Set("conversation", e.Conversation.ToStructure())
	out.Set("sender", e.Sender.ToStructure())
	if len(e.Events) > 0 {
		events := make([]any, len(e.Events))
		for i, ev := range e.Events {
			events[i] = EventToStructure(ev)
		}
		out.Set("events", events)
	}
	mergeExtra(out, e.Extra)
	return out
}

// ParseOption adjusts envelope deserialization behavior.
type ParseOption func(*parseOptions)

type parseOptions struct {
	keepUnknownEvents bool
}

// WithOpaqueEvents keeps events whose discriminator is not registered as
// inert OpaqueEvents instead of failing the whole parse. Without it an
// unknown discriminator aborts deserialization with UnknownEventTypeError.
func WithOpaqueEvents() ParseOption {
	return func(o *parseOptions) { o.keepUnknownEvents = true }
}

// EnvelopeFromStructure decodes an envelope. Deserialization of the events
// list is all-or-nothing unless WithOpaqueEvents is given.
func EnvelopeFromStructure(st *Structure, opts ...ParseOption) (*Envelope, error) {
	var po parseOptions
	for _, opt := range opts {
		opt(&po)
	}

	e := &Envelope{}
	var err error
	schemaSt, err := optionalStructure(st, "", "schema")
	if err != nil {
		return nil, err
	}
	if schemaSt != nil {
		if e.Schema, err = schemaFromStructure(schemaSt, "schema"); err != nil {
			return nil, err
		}
	} else {
		e.Schema = DefaultSchema()
	}

	convSt, err := requiredStructure(st, "", "conversation")
	if err != nil {
		return nil, err
	}
	if e.Conversation, err = conversationFromStructure(convSt, "conversation"); err != nil {
		return nil, err
	}

	senderSt, err := requiredStructure(st, "", "sender")
	if err != nil {
		return nil, err
	}
	if e.Sender, err = senderFromStructure(senderSt, "sender"); err != nil {
		return nil, err
	}

	events, err := optionalArray(st, "", "events")
	if err != nil {
		return nil, err
	}
	for i, entry := range events {
		ePath := indexPath("events", i)
		sub, ok := entry.(*Structure)
		if !ok {
			return nil, schemaErrorf(ePath, entry, "expected an event object")
		}
		ev, err := decodeEvent(sub, ePath, po.keepUnknownEvents)
		if err != nil {
			return nil, err
		}
		e.Events = append(e.Events, ev)
	}

	e.Extra = restStructure(st, "schema", "conversation", "sender", "events")
	return e, nil
}

// ParseEnvelope decodes an envelope from JSON text.
func ParseEnvelope(data []byte, opts ...ParseOption) (*Envelope, error) {
	st, err := DecodeStructure(data)
	if err != nil {
		return nil, err
	}
	return EnvelopeFromStructure(st, opts...)
}

// MarshalJSON emits the wire form.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return e.ToStructure().MarshalJSON()
}

// UnmarshalJSON decodes the wire form in place. Unknown event types fail the
// parse; use ParseEnvelope with WithOpaqueEvents to retain them.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	parsed, err := ParseEnvelope(data)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}
