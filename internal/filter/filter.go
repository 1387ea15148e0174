// Package filter reduces a design-tree document to the flat, pre-ordered list
// of components that carry interactions or style overrides.
//
// Traversal uses an explicit work stack instead of recursion, so document
// depth is bounded by Options.MaxDepth rather than by the goroutine stack.
// Filter performs no I/O and never mutates its input; concurrent calls on
// independent documents need no coordination.
package filter

import (
	"coveriq/internal/figma"
	"coveriq/internal/logging"
	"io"
	"strconv"
	"strings"
)

// frame is one pending node on the work stack.
type frame struct {
	value    interface{}
	parentID *string
	depth    int
	loc      *location
}

// location records how a node was reached. It is rendered only when an
// error needs it, keeping deep documents linear in memory.
type location struct {
	parent *location
	index  int
}

func (l *location) render(root string) string {
	var idx []int
	for ; l != nil; l = l.parent {
		idx = append(idx, l.index)
	}
	var b strings.Builder
	b.WriteString(root)
	for i := len(idx) - 1; i >= 0; i-- {
		b.WriteString(".children[")
		b.WriteString(strconv.Itoa(idx[i]))
		b.WriteString("]")
	}
	return b.String()
}

// Filter walks the tree found at opts.RootPath in doc and returns the
// retained components in pre-order. A missing root yields an empty result.
func Filter(doc map[string]interface{}, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryFilter, "Filter")
	defer timer.Stop()

	if doc == nil {
		return nil, invalid("", "document is nil")
	}

	result := &Result{
		FigmaData:          make([]Component, 0),
		FeatureDescription: copyString(opts.FeatureDescription),
	}

	rootPath := opts.rootPath()
	rootName := strings.Join(rootPath, ".")
	root, found := figma.Lookup(doc, rootPath)
	if !found {
		logging.FilterDebug("No root at %q; returning empty result", rootName)
		return result, nil
	}

	maxDepth := opts.maxDepth()
	visited := 0
	stack := []frame{{value: root, depth: 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if maxDepth > 0 && f.depth > maxDepth {
			return nil, invalid(f.loc.render(rootName), "tree deeper than %d levels", maxDepth)
		}
		node, ok := figma.AsNode(f.value)
		if !ok {
			return nil, invalid(f.loc.render(rootName), "node is %s, not an object", kind(f.value))
		}
		children, ok := node.Children()
		if !ok {
			return nil, invalid(f.loc.render(rootName), "children is %s, not an array", kind(node[figma.FieldChildren]))
		}
		visited++

		if opts.Policy.Retains(node, len(children)) {
			result.FigmaData = append(result.FigmaData, newComponent(node, f.parentID, !opts.OmitSize))
		}

		// Reverse push keeps the first child on top, preserving pre-order.
		id := node.ID()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				value:    children[i],
				parentID: id,
				depth:    f.depth + 1,
				loc:      &location{parent: f.loc, index: i},
			})
		}
	}

	logging.FilterDebug("Visited %d nodes, retained %d (policy=%s)", visited, len(result.FigmaData), opts.Policy)
	return result, nil
}

// FilterJSON decodes a document from r and filters it. Malformed JSON is
// reported as invalid input.
func FilterJSON(r io.Reader, opts Options) (*Result, error) {
	doc, err := figma.Decode(r)
	if err != nil {
		return nil, &InvalidInputError{Msg: "document is not a single JSON object", Err: err}
	}
	return Filter(doc, opts)
}

func newComponent(n figma.Node, parentID *string, withSize bool) Component {
	box := n.BoundingBox()
	c := Component{
		ParentID: parentID,
		ID:       n.ID(),
		Name:     n.Name(),
		Type:     n.Type(),
		Position: Position{X: box.X, Y: box.Y},
	}
	if withSize {
		c.Size = &Size{Width: box.Width, Height: box.Height}
	}
	c.Interactions, _ = n.Raw(figma.FieldInteractions)
	c.StyleOverrideTable, _ = n.Raw(figma.FieldStyleOverrideTable)
	return c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func kind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}
