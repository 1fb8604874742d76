// Package openfloor implements the Open Floor inter-agent message model:
// envelopes, conversations, dialog events and assistant manifests, together
// with their JSON wire codec.
//
// All model types convert to and from a Structure (an insertion-ordered JSON
// object) so that vendor extension fields survive a full round trip. Events
// are a discriminated union selected by the eventType string; the built-in
// set can be extended at runtime via RegisterEventType.
package openfloor
