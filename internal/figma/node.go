package figma

import (
	"encoding/json"
	"strconv"
)

// Field names used by the design-tool export.
const (
	FieldID                 = "id"
	FieldName               = "name"
	FieldType               = "type"
	FieldInteractions       = "interactions"
	FieldStyleOverrideTable = "styleOverrideTable"
	FieldBoundingBox        = "absoluteBoundingBox"
	FieldChildren           = "children"
)

// TypeFrame is the node type of top-level screens.
const TypeFrame = "FRAME"

// Node is a read-only view over a decoded design node.
type Node map[string]interface{}

// AsNode converts a decoded JSON value into a Node.
func AsNode(v interface{}) (Node, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return Node(m), true
}

// ID returns the node id, or nil when absent or not a string.
func (n Node) ID() *string { return n.str(FieldID) }

// Name returns the display name, or nil when absent or not a string.
func (n Node) Name() *string { return n.str(FieldName) }

// Type returns the type tag, or nil when absent or not a string.
func (n Node) Type() *string { return n.str(FieldType) }

func (n Node) str(key string) *string {
	s, ok := n[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// Raw returns the field value exactly as decoded and whether it was present.
func (n Node) Raw(key string) (interface{}, bool) {
	v, ok := n[key]
	return v, ok
}

// HasInteractions reports whether interactions is a non-empty array.
func (n Node) HasInteractions() bool {
	list, ok := n[FieldInteractions].([]interface{})
	return ok && len(list) > 0
}

// HasStyleOverrides reports whether styleOverrideTable is a non-empty object.
func (n Node) HasStyleOverrides() bool {
	table, ok := n[FieldStyleOverrideTable].(map[string]interface{})
	return ok && len(table) > 0
}

// Children returns the child list. ok is false when children is present but
// is not an array; an absent or null children field is an empty list.
func (n Node) Children() (children []interface{}, ok bool) {
	v, present := n[FieldChildren]
	if !present || v == nil {
		return nil, true
	}
	children, ok = v.([]interface{})
	return children, ok
}

// Box is an absolute bounding box. Any coordinate may be nil.
type Box struct {
	X, Y, Width, Height *float64
}

// BoundingBox returns the node's absoluteBoundingBox. Missing or
// non-numeric coordinates are nil.
func (n Node) BoundingBox() Box {
	m, _ := n[FieldBoundingBox].(map[string]interface{})
	return Box{
		X:      number(m["x"]),
		Y:      number(m["y"]),
		Width:  number(m["width"]),
		Height: number(m["height"]),
	}
}

func number(v interface{}) *float64 {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return nil
	}
	return &f
}
