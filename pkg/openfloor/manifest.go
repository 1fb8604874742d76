package openfloor

// Identification is the immutable identity record of a conversant. Only the
// speakerUri is required; a URI form is recommended but any non-empty string
// is legal.
type Identification struct {
	SpeakerURI         string
	ServiceURL         string
	Organization       string
	ConversationalName string
	Department         string
	Role               string
	Synopsis           string

	Extra *Structure
}

// NewIdentification builds an identity for speakerURI.
func NewIdentification(speakerURI string) (*Identification, error) {
	if speakerURI == "" {
		return nil, validationErrorf("speakerUri", "is required")
	}
	return &Identification{SpeakerURI: speakerURI}, nil
}

// ToStructure converts the identification to its wire form.
func (id *Identification) ToStructure() *Structure {
	out := NewStructure()
	out.Set("speakerUri", id.SpeakerURI)
	if id.ServiceURL != "" {
		out.Set("serviceUrl", id.ServiceURL)
	}
	if id.Organization != "" {
		out.Set("organization", id.Organization)
	}
	if id.ConversationalName != "" {
		out.Set("conversationalName", id.ConversationalName)
	}
	if id.Department != "" {
		out.Set("department", id.Department)
	}
	if id.Role != "" {
		out.Set("role", id.Role)
	}
	if id.Synopsis != "" {
		out.Set("synopsis", id.Synopsis)
	}
	mergeExtra(out, id.Extra)
	return out
}

func identificationFromStructure(st *Structure, path string) (*Identification, error) {
	id := &Identification{}
	var err error
	if id.SpeakerURI, err = requiredString(st, path, "speakerUri"); err != nil {
		return nil, err
	}
	if id.ServiceURL, err = optionalString(st, path, "serviceUrl"); err != nil {
		return nil, err
	}
	if id.Organization, err = optionalString(st, path, "organization"); err != nil {
		return nil, err
	}
	if id.ConversationalName, err = optionalString(st, path, "conversationalName"); err != nil {
		return nil, err
	}
	if id.Department, err = optionalString(st, path, "department"); err != nil {
		return nil, err
	}
	if id.Role, err = optionalString(st, path, "role"); err != nil {
		return nil, err
	}
	if id.Synopsis, err = optionalString(st, path, "synopsis"); err != nil {
		return nil, err
	}
	id.Extra = restStructure(st, "speakerUri", "serviceUrl", "organization",
		"conversationalName", "department", "role", "synopsis")
	return id, nil
}

// SupportedLayers lists the input and output modes a capability handles.
type SupportedLayers struct {
	Input  []string
	Output []string

	Extra *Structure
}

// DefaultSupportedLayers returns the text-only default.
func DefaultSupportedLayers() *SupportedLayers {
	return &SupportedLayers{Input: []string{"text"}, Output: []string{"text"}}
}

// ToStructure converts the layers to their wire form.
func (sl *SupportedLayers) ToStructure() *Structure {
	out := NewStructure()
	out.Set("input", stringsToValues(sl.Input))
	out.Set("output", stringsToValues(sl.Output))
	mergeExtra(out, sl.Extra)
	return out
}

func stringsToValues(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func supportedLayersFromStructure(st *Structure, path string) (*SupportedLayers, error) {
	sl := &SupportedLayers{}
	var err error
	if sl.Input, err = optionalStringSlice(st, path, "input"); err != nil {
		return nil, err
	}
	if sl.Output, err = optionalStringSlice(st, path, "output"); err != nil {
		return nil, err
	}
	if sl.Input == nil {
		sl.Input = []string{"text"}
	}
	if sl.Output == nil {
		sl.Output = []string{"text"}
	}
	sl.Extra = restStructure(st, "input", "output")
	return sl, nil
}

// Capability is one descriptive entry of a manifest: what the agent can do,
// phrased for discovery matching. No cross-validation against a runtime
// feature catalog happens here.
type Capability struct {
	Keyphrases      []string
	Descriptions    []string
	Languages       []string
	SupportedLayers *SupportedLayers

	Extra *Structure
}

// ToStructure converts the capability to its wire form. SupportedLayers
// defaults to text-only when unset.
func (c *Capability) ToStructure() *Structure {
	out := NewStructure()
	out.Set("keyphrases", stringsToValues(c.Keyphrases))
	out.Set("descriptions", stringsToValues(c.Descriptions))
	if c.Languages != nil {
		out.Set("languages", stringsToValues(c.Languages))
	}
	layers := c.SupportedLayers
	if layers == nil {
		layers = DefaultSupportedLayers()
	}
	out.Set("supportedLayers", layers.ToStructure())
	mergeExtra(out, c.Extra)
	return out
}

func capabilityFromStructure(st *Structure, path string) (*Capability, error) {
	c := &Capability{}
	var err error
	if c.Keyphrases, err = optionalStringSlice(st, path, "keyphrases"); err != nil {
		return nil, err
	}
	if c.Descriptions, err = optionalStringSlice(st, path, "descriptions"); err != nil {
		return nil, err
	}
	if c.Languages, err = optionalStringSlice(st, path, "languages"); err != nil {
		return nil, err
	}
	layersSt, err := optionalStructure(st, path, "supportedLayers")
	if err != nil {
		return nil, err
	}
	if layersSt != nil {
		if c.SupportedLayers, err = supportedLayersFromStructure(layersSt, joinPath(path, "supportedLayers")); err != nil {
			return nil, err
		}
	} else {
		c.SupportedLayers = DefaultSupportedLayers()
	}
	c.Extra = restStructure(st, "keyphrases", "descriptions", "languages", "supportedLayers")
	return c, nil
}

// Manifest is an agent's self-description for discovery: one identification
// plus an ordered capability list.
type Manifest struct {
	Identification *Identification
	Capabilities   []*Capability

	Extra *Structure
}

// NewManifest builds a manifest around an identification.
func NewManifest(id *Identification, capabilities ...*Capability) (*Manifest, error) {
	if id == nil {
		return nil, validationErrorf("identification", "is required")
	}
	return &Manifest{Identification: id, Capabilities: capabilities}, nil
}

// ToStructure converts the manifest to its wire form.
func (m *Manifest) ToStructure() *Structure {
	out := NewStructure()
	out.Set("identification", m.Identification.ToStructure())
	caps := make([]any, len(m.Capabilities))
	for i, c := range m.Capabilities {
		caps[i] = c.ToStructure()
	}
	out.Set("capabilities", caps)
	mergeExtra(out, m.Extra)
	return out
}

// ManifestFromStructure decodes a manifest.
func ManifestFromStructure(st *Structure) (*Manifest, error) {
	return manifestFromStructure(st, "manifest")
}

func manifestFromStructure(st *Structure, path string) (*Manifest, error) {
	m := &Manifest{}
	idSt, err := requiredStructure(st, path, "identification")
	if err != nil {
		return nil, err
	}
	if m.Identification, err = identificationFromStructure(idSt, joinPath(path, "identification")); err != nil {
		return nil, err
	}
	caps, err := optionalArray(st, path, "capabilities")
	if err != nil {
		return nil, err
	}
	for i, entry := range caps {
		cPath := indexPath(joinPath(path, "capabilities"), i)
		sub, ok := entry.(*Structure)
		if !ok {
			return nil, schemaErrorf(cPath, entry, "expected a capability object")
		}
		c, err := capabilityFromStructure(sub, cPath)
		if err != nil {
			return nil, err
		}
		m.Capabilities = append(m.Capabilities, c)
	}
	m.Extra = restStructure(st, "identification", "capabilities")
	return m, nil
}

// ParseManifest decodes a manifest from JSON text.
func ParseManifest(data []byte) (*Manifest, error) {
	st, err := DecodeStructure(data)
	if err != nil {
		return nil, err
	}
	return ManifestFromStructure(st)
}

// MarshalJSON emits the wire form.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return m.ToStructure().MarshalJSON()
}

// UnmarshalJSON decodes the wire form in place.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	parsed, err := ParseManifest(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}
