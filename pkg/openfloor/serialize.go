package openfloor

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

// Structured is the structural conversion capability every model type
// implements: conversion to the ordered key/value wire form.
type Structured interface {
	ToStructure() *Structure
}

// Marshal renders any model type as compact JSON text.
func Marshal(v Structured) ([]byte, error) {
	return v.ToStructure().MarshalJSON()
}

// MarshalIndent renders any model type as indented JSON text.
func MarshalIndent(v Structured, indent string) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile persists a model type as UTF-8 JSON text. The write is
// all-or-nothing: content goes to a temporary file in the target directory
// which is renamed over the destination only after a successful write, so a
// serialization or I/O failure never leaves a partially written file behind.
func WriteFile(path string, v Structured) error {
	data, err := MarshalIndent(v, "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ReadStructureFile reads a JSON file into a Structure. I/O errors propagate
// unchanged.
func ReadStructureFile(path string) (*Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeStructure(data)
}

// LoadEnvelope reads and decodes an envelope file.
func LoadEnvelope(path string, opts ...ParseOption) (*Envelope, error) {
	st, err := ReadStructureFile(path)
	if err != nil {
		return nil, err
	}
	return EnvelopeFromStructure(st, opts...)
}

// LoadManifest reads and decodes a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	st, err := ReadStructureFile(path)
	if err != nil {
		return nil, err
	}
	return ManifestFromStructure(st)
}

// LoadDialogEvent reads and decodes a dialog event file.
func LoadDialogEvent(path string) (*DialogEvent, error) {
	st, err := ReadStructureFile(path)
	if err != nil {
		return nil, err
	}
	return DialogEventFromStructure(st)
}
