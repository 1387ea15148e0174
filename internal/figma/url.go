package figma

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for links that are not Figma file or design URLs.
var ErrInvalidURL = errors.New("figma: invalid Figma URL format")

var fileURLPattern = regexp.MustCompile(`^https://www\.figma\.com/(file|design)/([a-zA-Z0-9]+)(?:/([^?#]*))?`)

// FileRef identifies a design file by its key and, when the link carried
// one, the project name slug.
type FileRef struct {
	Key         string `json:"project_key"`
	ProjectName string `json:"project_name"`
}

// ParseFileURL extracts the file key and project name from a /file/ or
// /design/ link.
func ParseFileURL(raw string) (FileRef, error) {
	m := fileURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return FileRef{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return FileRef{Key: m[2], ProjectName: strings.TrimSuffix(m[3], "/")}, nil
}

// NodeIDForURL converts a node id ("12:34") to the form used in links ("12-34").
func NodeIDForURL(id string) string {
	return strings.ReplaceAll(id, ":", "-")
}

// PrototypeURL returns the prototype-viewer link that opens nodeID.
func (r FileRef) PrototypeURL(nodeID string) string {
	return fmt.Sprintf("https://www.figma.com/proto/%s/%s?node-id=%s", r.Key, r.ProjectName, NodeIDForURL(nodeID))
}
