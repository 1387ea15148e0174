package figma

import (
	"coveriq/internal/logging"
	"errors"
	"fmt"
)

// ErrNoDocument is returned when the export has no traversable document root.
var ErrNoDocument = errors.New("figma: document root not found")

// Frame is a top-level screen on a page.
type Frame struct {
	Page   string `json:"page"`
	Name   string `json:"name"`
	ID     string `json:"id"`
	NodeID string `json:"node_id"` // ID in link form, see NodeIDForURL
}

// Frames lists the FRAME nodes that sit directly on each page of the
// document found at rootPath, in document order. Pages are the children of
// the root; nodes nested deeper than a page's direct children are not
// frames for this purpose. Entries that are not objects or lack an id are
// skipped.
func Frames(doc map[string]interface{}, rootPath []string) ([]Frame, error) {
	v, found := Lookup(doc, rootPath)
	if !found {
		return nil, ErrNoDocument
	}
	root, ok := AsNode(v)
	if !ok {
		return nil, fmt.Errorf("%w: root is %T", ErrNoDocument, v)
	}
	pages, ok := root.Children()
	if !ok {
		return nil, fmt.Errorf("figma: document children is not an array")
	}

	frames := make([]Frame, 0)
	for _, p := range pages {
		page, ok := AsNode(p)
		if !ok {
			continue
		}
		pageName := deref(page.Name())
		nodes, ok := page.Children()
		if !ok {
			logging.FigmaDebug("Skipping page %q: children is not an array", pageName)
			continue
		}
		for _, c := range nodes {
			node, ok := AsNode(c)
			if !ok {
				continue
			}
			typ, id := node.Type(), node.ID()
			if typ == nil || *typ != TypeFrame || id == nil {
				continue
			}
			frames = append(frames, Frame{
				Page:   pageName,
				Name:   deref(node.Name()),
				ID:     *id,
				NodeID: NodeIDForURL(*id),
			})
		}
	}
	return frames, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
