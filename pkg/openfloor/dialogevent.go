package openfloor

import "strings"

// Token is a single unit of content within a Feature. Exactly one of Value
// and ValueURL must be set. Links are JSON Path references into sibling
// features; they are carried verbatim and never resolved at parse time.
type Token struct {
	Value      any
	ValueURL   string
	Span       *Span
	Confidence *float64
	Links      []string

	Extra *Structure
}

// NewToken builds an inline-value token.
func NewToken(value any) (*Token, error) {
	t := &Token{Value: value}
	if err := t.validate("token"); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Token) validate(field string) error {
	if t.Value == nil && t.ValueURL == "" {
		return validationErrorf(field, "either value or valueUrl is required")
	}
	if t.Value != nil && t.ValueURL != "" {
		return validationErrorf(field, "value and valueUrl are mutually exclusive")
	}
	if t.Confidence != nil && (*t.Confidence < 0 || *t.Confidence > 1) {
		return validationErrorf(field, "confidence %v is outside [0, 1]", *t.Confidence)
	}
	return nil
}

// ToStructure converts the token to its wire form.
func (t *Token) ToStructure() *Structure {
	out := NewStructure()
	if t.Value != nil {
		out.Set("value", t.Value)
	}
	if t.ValueURL != "" {
		out.Set("valueUrl", t.ValueURL)
	}
	if t.Span != nil {
		out.Set("span", t.Span.ToStructure())
	}
	if t.Confidence != nil {
		out.Set("confidence", *t.Confidence)
	}
	if len(t.Links) > 0 {
		links := make([]any, len(t.Links))
		for i, l := range t.Links {
			links[i] = l
		}
		out.Set("links", links)
	}
	mergeExtra(out, t.Extra)
	return out
}

func tokenFromStructure(st *Structure, path string) (*Token, error) {
	t := &Token{}
	if v, ok := st.Get("value"); ok {
		t.Value = v
	}
	var err error
	if t.ValueURL, err = optionalString(st, path, "valueUrl"); err != nil {
		return nil, err
	}
	if spanSt, err := optionalStructure(st, path, "span"); err != nil {
		return nil, err
	} else if spanSt != nil {
		if t.Span, err = spanFromStructure(spanSt, joinPath(path, "span")); err != nil {
			return nil, err
		}
	}
	if t.Confidence, err = optionalFloat(st, path, "confidence"); err != nil {
		return nil, err
	}
	if t.Links, err = optionalStringSlice(st, path, "links"); err != nil {
		return nil, err
	}
	if err := t.validate(path); err != nil {
		return nil, err
	}
	t.Extra = restStructure(st, "value", "valueUrl", "span", "confidence", "links")
	return t, nil
}

// Feature is a typed content channel within a dialog event: an ordered token
// sequence plus its media type. Alternates carry lower-ranked hypotheses
// (e.g. from a speech recognizer).
type Feature struct {
	MimeType    string
	Tokens      []*Token
	Alternates  [][]*Token
	Lang        string
	Encoding    string
	TokenSchema string

	Extra *Structure
}

// NewTextFeature builds a text/plain feature with one token per value.
func NewTextFeature(values ...string) *Feature {
	f := &Feature{MimeType: "text/plain"}
	for _, v := range values {
		f.Tokens = append(f.Tokens, &Token{Value: v})
	}
	return f
}

func (f *Feature) validate(field string) error {
	if f.MimeType == "" {
		return validationErrorf(field, "mimeType is required")
	}
	if f.Encoding != "" {
		switch strings.ToLower(f.Encoding) {
		case "iso-8859-1", "utf-8":
		default:
			return validationErrorf(field, "encoding must be ISO-8859-1 or UTF-8, not %q", f.Encoding)
		}
	}
	for i, t := range f.Tokens {
		if err := t.validate(indexPath(joinPath(field, "tokens"), i)); err != nil {
			return err
		}
	}
	return nil
}

// ToStructure converts the feature to its wire form. Tokens always emit,
// even when empty, since the wire schema requires the array.
func (f *Feature) ToStructure() *Structure {
	out := NewStructure()
	out.Set("mimeType", f.MimeType)
	out.Set("tokens", tokensToValues(f.Tokens))
	if len(f.Alternates) > 0 {
		alts := make([]any, len(f.Alternates))
		for i, alt := range f.Alternates {
			alts[i] = tokensToValues(alt)
		}
		out.Set("alternates", alts)
	}
	if f.Lang != "" {
		out.Set("lang", f.Lang)
	}
	if f.Encoding != "" {
		out.Set("encoding", f.Encoding)
	}
	if f.TokenSchema != "" {
		out.Set("tokenSchema", f.TokenSchema)
	}
	mergeExtra(out, f.Extra)
	return out
}

func tokensToValues(tokens []*Token) []any {
	out := make([]any, len(tokens))
	for i, t := range tokens {
		out[i] = t.ToStructure()
	}
	return out
}

// FeatureFromStructure decodes a single feature.
func FeatureFromStructure(st *Structure) (*Feature, error) {
	return featureFromStructure(st, "feature")
}

func featureFromStructure(st *Structure, path string) (*Feature, error) {
	f := &Feature{}
	var err error
	if f.MimeType, err = requiredString(st, path, "mimeType"); err != nil {
		return nil, err
	}
	if f.Tokens, err = tokenListField(st, path, "tokens"); err != nil {
		return nil, err
	}
	alts, err := optionalArray(st, path, "alternates")
	if err != nil {
		return nil, err
	}
	for i, alt := range alts {
		altPath := indexPath(joinPath(path, "alternates"), i)
		arr, ok := alt.([]any)
		if !ok {
			return nil, schemaErrorf(altPath, alt, "expected an array of tokens")
		}
		tokens, err := decodeTokens(arr, altPath)
		if err != nil {
			return nil, err
		}
		f.Alternates = append(f.Alternates, tokens)
	}
	if f.Lang, err = optionalString(st, path, "lang"); err != nil {
		return nil, err
	}
	if f.Encoding, err = optionalString(st, path, "encoding"); err != nil {
		return nil, err
	}
	if f.TokenSchema, err = optionalString(st, path, "tokenSchema"); err != nil {
		return nil, err
	}
	if err := f.validate(path); err != nil {
		return nil, err
	}
	f.Extra = restStructure(st, "mimeType", "tokens", "alternates", "lang", "encoding", "tokenSchema")
	return f, nil
}

func tokenListField(st *Structure, path, key string) ([]*Token, error) {
	arr, err := optionalArray(st, path, key)
	if err != nil {
		return nil, err
	}
	return decodeTokens(arr, joinPath(path, key))
}

func decodeTokens(arr []any, path string) ([]*Token, error) {
	tokens := make([]*Token, 0, len(arr))
	for i, e := range arr {
		sub, ok := e.(*Structure)
		if !ok {
			return nil, schemaErrorf(indexPath(path, i), e, "expected a token object")
		}
		t, err := tokenFromStructure(sub, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// Features is the named, insertion-ordered feature map of a dialog event.
type Features struct {
	names []string
	m     map[string]*Feature
}

// NewFeatures builds an empty feature map.
func NewFeatures() *Features {
	return &Features{m: make(map[string]*Feature)}
}

// Set stores a feature under name, preserving first-insertion order.
func (fs *Features) Set(name string, f *Feature) *Features {
	if fs.m == nil {
		fs.m = make(map[string]*Feature)
	}
	if _, ok := fs.m[name]; !ok {
		fs.names = append(fs.names, name)
	}
	fs.m[name] = f
	return fs
}

// Get returns the feature stored under name.
func (fs *Features) Get(name string) (*Feature, bool) {
	if fs == nil || fs.m == nil {
		return nil, false
	}
	f, ok := fs.m[name]
	return f, ok
}

// Len returns the number of features.
func (fs *Features) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.names)
}

// Names returns feature names in insertion order.
func (fs *Features) Names() []string {
	if fs == nil {
		return nil
	}
	out := make([]string, len(fs.names))
	copy(out, fs.names)
	return out
}

// Range calls fn for each feature in insertion order until fn returns false.
func (fs *Features) Range(fn func(name string, f *Feature) bool) {
	if fs == nil {
		return
	}
	for _, n := range fs.names {
		if !fn(n, fs.m[n]) {
			return
		}
	}
}

// DialogEvent is one unit of spoken, typed or multimodal content attributed
// to a speaker, decomposed into named features. It is a value object: mutate
// by building a replacement, not by reaching into an owned instance.
type DialogEvent struct {
	ID         string
	SpeakerURI string
	Span       *Span
	Features   *Features
	PreviousID string
	Context    string

	Extra *Structure
}

// DialogEventOption configures NewDialogEvent.
type DialogEventOption func(*DialogEvent)

// WithID sets an explicit id instead of the generated "de:<uuid>" form.
func WithID(id string) DialogEventOption {
	return func(d *DialogEvent) { d.ID = id }
}

// WithSpan sets an explicit span instead of the default now-started one.
func WithSpan(s *Span) DialogEventOption {
	return func(d *DialogEvent) { d.Span = s }
}

// WithFeature adds a named feature.
func WithFeature(name string, f *Feature) DialogEventOption {
	return func(d *DialogEvent) {
		if d.Features == nil {
			d.Features = NewFeatures()
		}
		d.Features.Set(name, f)
	}
}

// WithPreviousID links this event to the one it revises or continues.
func WithPreviousID(id string) DialogEventOption {
	return func(d *DialogEvent) { d.PreviousID = id }
}

// NewDialogEvent builds a dialog event for the given speaker. The id defaults
// to a generated "de:" token and the span to one starting now.
func NewDialogEvent(speakerURI string, opts ...DialogEventOption) (*DialogEvent, error) {
	if speakerURI == "" {
		return nil, validationErrorf("speakerUri", "is required")
	}
	d := &DialogEvent{SpeakerURI: speakerURI}
	for _, opt := range opts {
		opt(d)
	}
	if d.ID == "" {
		d.ID = newID("de")
	}
	if d.Span == nil {
		d.Span = SpanStartingNow()
	}
	if err := d.Span.validate("span"); err != nil {
		return nil, err
	}
	if d.Features == nil {
		d.Features = NewFeatures()
	}
	var err error
	d.Features.Range(func(name string, f *Feature) bool {
		err = f.validate(joinPath("features", name))
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ToStructure converts the dialog event to its wire form.
func (d *DialogEvent) ToStructure() *Structure {
	out := NewStructure()
	out.Set("id", d.ID)
	out.Set("speakerUri", d.SpeakerURI)
	if d.Span != nil {
		out.Set("span", d.Span.ToStructure())
	}
	features := NewStructure()
	d.Features.Range(func(name string, f *Feature) bool {
		features.Set(name, f.ToStructure())
		return true
	})
	out.Set("features", features)
	if d.PreviousID != "" {
		out.Set("previousId", d.PreviousID)
	}
	if d.Context != "" {
		out.Set("context", d.Context)
	}
	mergeExtra(out, d.Extra)
	return out
}

// DialogEventFromStructure decodes a dialog event. A missing id is generated;
// a missing speakerUri is a SchemaError.
func DialogEventFromStructure(st *Structure) (*DialogEvent, error) {
	return dialogEventFromStructure(st, "dialogEvent")
}

func dialogEventFromStructure(st *Structure, path string) (*DialogEvent, error) {
	d := &DialogEvent{}
	var err error
	if d.SpeakerURI, err = requiredString(st, path, "speakerUri"); err != nil {
		return nil, err
	}
	if d.ID, err = optionalString(st, path, "id"); err != nil {
		return nil, err
	}
	if d.ID == "" {
		d.ID = newID("de")
	}
	spanSt, err := optionalStructure(st, path, "span")
	if err != nil {
		return nil, err
	}
	if spanSt != nil {
		if d.Span, err = spanFromStructure(spanSt, joinPath(path, "span")); err != nil {
			return nil, err
		}
	}
	d.Features = NewFeatures()
	if v, ok := st.Get("features"); ok && v != nil {
		featSt, ok := v.(*Structure)
		if !ok {
			return nil, schemaErrorf(joinPath(path, "features"), v, "expected an object mapping feature names")
		}
		var ferr error
		featSt.Range(func(name string, fv any) bool {
			fpath := joinPath(joinPath(path, "features"), name)
			sub, ok := fv.(*Structure)
			if !ok {
				ferr = schemaErrorf(fpath, fv, "expected a feature object")
				return false
			}
			var f *Feature
			if f, ferr = featureFromStructure(sub, fpath); ferr != nil {
				return false
			}
			d.Features.Set(name, f)
			return true
		})
		if ferr != nil {
			return nil, ferr
		}
	}
	if d.PreviousID, err = optionalString(st, path, "previousId"); err != nil {
		return nil, err
	}
	if d.Context, err = optionalString(st, path, "context"); err != nil {
		return nil, err
	}
	d.Extra = restStructure(st, "id", "speakerUri", "span", "features", "previousId", "context")
	return d, nil
}

// ParseDialogEvent decodes a dialog event from JSON text.
func ParseDialogEvent(data []byte) (*DialogEvent, error) {
	st, err := DecodeStructure(data)
	if err != nil {
		return nil, err
	}
	return DialogEventFromStructure(st)
}

// MarshalJSON emits the wire form.
func (d *DialogEvent) MarshalJSON() ([]byte, error) {
	return d.ToStructure().MarshalJSON()
}

// UnmarshalJSON decodes the wire form in place.
func (d *DialogEvent) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDialogEvent(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}
