// Package figma decodes design-tree documents exported by Figma and exposes
// read-only accessors over their nodes.
//
// Documents are kept as generic JSON values (map[string]interface{} and
// []interface{}) rather than typed structs: node payloads such as
// interactions and style overrides are opaque and must be handed on exactly
// as they were received. Numbers are decoded as json.Number for the same
// reason.
package figma

import (
	"coveriq/internal/logging"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultRootPath locates the tree root in a raw file export.
var DefaultRootPath = []string{"document"}

// ServiceRootPath locates the tree root when the export is wrapped in a
// {"file_key": ..., "figma_data": {...}} envelope.
var ServiceRootPath = []string{"figma_data", "document"}

// ErrNotObject is returned by Decode when the top-level JSON value is not an
// object.
var ErrNotObject = errors.New("figma: document is not a JSON object")

// ErrTrailingData is returned by Decode when anything other than whitespace
// follows the document.
var ErrTrailingData = errors.New("figma: trailing data after document")

// Decode reads a single JSON object from r. The object must be the only
// value in the input.
func Decode(r io.Reader) (map[string]interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("figma: decode document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w at offset %d", ErrTrailingData, dec.InputOffset())
	}
	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrNotObject
	}
	logging.FigmaDebug("Decoded document with %d top-level keys", len(doc))
	return doc, nil
}

// ParsePath splits a dotted lookup path such as "figma_data.document".
// Empty segments are dropped.
func ParsePath(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ".") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Lookup follows path through nested objects starting at doc. It reports
// false when a key is missing or an intermediate value is not an object.
// An empty path yields doc itself.
func Lookup(doc map[string]interface{}, path []string) (interface{}, bool) {
	var cur interface{} = doc
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
