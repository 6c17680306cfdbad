// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package wire converts between the upstream XML wire format and an
// in-memory document tree. The tree mirrors the upstream schema directly:
// element names keep their namespace prefix (e.g. "ad:ad"), element
// attributes are keyed with a leading "@" (e.g. "@id"), and the text
// content of an element that also carries attributes lives under "#text".
package wire

import (
	"fmt"

	"github.com/clbanning/mxj/v2"
)

func init() {
	// Attribute keys use "@" so tree paths read like the upstream docs
	// ("ad:ad", "@id") instead of mxj's default hyphen prefix.
	mxj.SetAttrPrefix("@")
}

// Document is a parsed wire document: a nested map of element names to
// child maps, lists of child maps, or string values.
type Document map[string]any

// xmlHeader is prepended to marshaled documents; the upstream expects a
// declaration on posted bodies.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Parse decodes an XML body into a Document. A body that is not
// well-formed XML is an explicit error; callers must not treat a failed
// parse as an empty document.
func Parse(data []byte) (Document, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("wire parse: %w", err)
	}
	return Document(m), nil
}

// Marshal encodes a Document as indented XML with a declaration header.
// Output is deterministic for a given input tree.
func (d Document) Marshal() ([]byte, error) {
	out, err := mxj.Map(d).XmlIndent("", "  ")
	if err != nil {
		return nil, fmt.Errorf("wire marshal: %w", err)
	}
	return append([]byte(xmlHeader), out...), nil
}

// Get walks the tree along the given keys and returns the value found.
// The second return is false if any step of the path is missing or the
// intermediate value is not a map.
func (d Document) Get(path ...string) (any, bool) {
	var cur any = map[string]any(d)
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the string at the given path, or "" when the path is
// missing or does not hold a string. An element with attributes stores its
// text under "#text"; GetString transparently unwraps that case.
func (d Document) GetString(path ...string) string {
	v, ok := d.Get(path...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if text, ok := val["#text"].(string); ok {
			return text
		}
	}
	return ""
}

// GetMap returns the subtree at the given path as a Document.
func (d Document) GetMap(path ...string) (Document, bool) {
	v, ok := d.Get(path...)
	if !ok {
		return nil, false
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	return Document(m), true
}

// List normalizes the value at the given path to a slice of Documents.
// The wire format is ambiguous for repeated elements: one occurrence
// parses as a single map, several as a list. List always hands back a
// slice so callers can range over it; a missing path yields nil.
func (d Document) List(path ...string) []Document {
	v, ok := d.Get(path...)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []any:
		out := make([]Document, 0, len(val))
		for _, item := range val {
			if m, ok := asMap(item); ok {
				out = append(out, Document(m))
			}
		}
		return out
	case map[string]any:
		return []Document{Document(val)}
	default:
		return nil
	}
}

// ListValues is List without the map restriction: repeated elements that
// parsed as plain strings (no attributes, no children) are kept as-is.
func (d Document) ListValues(path ...string) []any {
	v, ok := d.Get(path...)
	if !ok {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// Text returns the text content of a value that may be either a plain
// string or an attributed element map holding "#text".
func Text(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if text, ok := val["#text"].(string); ok {
			return text
		}
	}
	return ""
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return map[string]any(m), true
	}
	return nil, false
}
