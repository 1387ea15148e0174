package filter

import (
	"coveriq/internal/figma"
	"fmt"
	"strings"
)

// Policy is the retention predicate applied to every visited node.
type Policy int

const (
	// PolicyStrict retains a node only when it carries interactions or
	// style overrides.
	PolicyStrict Policy = iota

	// PolicyStructural additionally retains every node with at least one
	// child, which keeps nearly all containers in the output.
	PolicyStructural
)

// DefaultMaxDepth bounds traversal depth when Options.MaxDepth is zero.
const DefaultMaxDepth = 512

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyStructural:
		return "structural"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration value to a Policy. Empty means strict.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "structural":
		return PolicyStructural, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown filter policy %q (valid: strict, structural)", s)
	}
}

// Retains reports whether n belongs in the output. childCount is the
// length of n's children list.
func (p Policy) Retains(n figma.Node, childCount int) bool {
	if n.HasInteractions() || n.HasStyleOverrides() {
		return true
	}
	return p == PolicyStructural && childCount > 0
}

// Options configures a Filter call. The zero value selects the raw-export
// root path, the strict policy, includes size and applies DefaultMaxDepth.
type Options struct {
	// RootPath locates the tree root. nil selects figma.DefaultRootPath; an
	// empty non-nil slice treats the document itself as the root.
	RootPath []string

	Policy Policy

	// OmitSize drops the size object from every component.
	OmitSize bool

	// MaxDepth is the deepest node level accepted, the root being level 1.
	// Zero means DefaultMaxDepth; negative disables the ceiling.
	MaxDepth int

	// FeatureDescription is copied into the result unchanged.
	FeatureDescription *string
}

func (o Options) rootPath() []string {
	if o.RootPath == nil {
		return figma.DefaultRootPath
	}
	return o.RootPath
}

func (o Options) maxDepth() int {
	if o.MaxDepth == 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}
