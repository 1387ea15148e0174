package filter

// Position is the top-left corner of a component's absolute bounding box.
type Position struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// Size is the extent of a component's absolute bounding box.
type Size struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

// Component is one retained design node.
//
// ParentID is the id of the node's immediate structural parent, whether or
// not that parent was itself retained. Use Result.Unresolved to find
// components whose parent is missing from the list.
//
// Interactions and StyleOverrideTable are the source values as decoded,
// shared with the input document; they are nil when the field was absent.
type Component struct {
	ParentID           *string     `json:"parent_id"`
	ID                 *string     `json:"id"`
	Name               *string     `json:"name"`
	Type               *string     `json:"type"`
	Position           Position    `json:"position"`
	Size               *Size       `json:"size,omitempty"`
	Interactions       interface{} `json:"interactions"`
	StyleOverrideTable interface{} `json:"styleOverrideTable"`
}

// Result is the filter output handed to the next pipeline stage.
type Result struct {
	FigmaData          []Component `json:"figma_data"`
	FeatureDescription *string     `json:"feature_description"`
}

// Index maps component ids to their position in FigmaData. When ids repeat
// the earliest component wins. Components without an id are not indexed.
func (r *Result) Index() map[string]*Component {
	idx := make(map[string]*Component, len(r.FigmaData))
	for i := range r.FigmaData {
		c := &r.FigmaData[i]
		if c.ID == nil {
			continue
		}
		if _, seen := idx[*c.ID]; !seen {
			idx[*c.ID] = c
		}
	}
	return idx
}

// Unresolved returns the components whose parent_id is set but does not
// name any component in the list, in output order.
func (r *Result) Unresolved() []Component {
	idx := r.Index()
	var out []Component
	for _, c := range r.FigmaData {
		if c.ParentID == nil {
			continue
		}
		if _, ok := idx[*c.ParentID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Ancestors walks parent_id links from the component with the given id and
// returns the retained ancestors, nearest first. The walk stops at the first
// parent that is not in the list.
func (r *Result) Ancestors(id string) []*Component {
	idx := r.Index()
	c, ok := idx[id]
	if !ok {
		return nil
	}
	var chain []*Component
	seen := map[string]bool{id: true}
	for c.ParentID != nil && !seen[*c.ParentID] {
		parent, ok := idx[*c.ParentID]
		if !ok {
			break
		}
		seen[*c.ParentID] = true
		chain = append(chain, parent)
		c = parent
	}
	return chain
}
