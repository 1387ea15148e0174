// Package diff compares stored stage outputs: a line diff of their JSON text
// rendered as unified hunks, and a component-level summary for filter
// results.
package diff

import (
	"bytes"
	"coveriq/internal/filter"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff line.
type Op int

const (
	OpContext Op = iota // Unchanged line
	OpAdded             // Only in the new text
	OpRemoved           // Only in the old text
)

func (o Op) prefix() byte {
	switch o {
	case OpAdded:
		return '+'
	case OpRemoved:
		return '-'
	default:
		return ' '
	}
}

// Line is one line of a hunk.
type Line struct {
	Op   Op
	Text string
}

// Hunk is a run of changes with surrounding context. Starts are 1-based;
// a zero-length side starts at the line before the change.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Header renders the "@@ -a,b +c,d @@" range line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// Engine computes line diffs.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	Context int // Unchanged lines kept around each change
}

// NewEngine returns an Engine with three lines of context.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp, Context: 3}
}

// Compute returns the hunks turning oldText into newText. Identical inputs
// yield no hunks.
func (e *Engine) Compute(oldText, newText string) []Hunk {
	if oldText == newText {
		return nil
	}
	// Line-level reduction keeps hunks on line boundaries.
	a, b, lines := e.dmp.DiffLinesToChars(oldText, newText)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lines)
	return group(toOps(diffs), e.Context)
}

// op is a line with its position in both texts (0-based count of lines
// consumed before it).
type op struct {
	Line
	oldAt, newAt int
}

func toOps(diffs []diffmatchpatch.Diff) []op {
	var (
		ops          []op
		oldAt, newAt int
	)
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		for _, text := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			o := op{oldAt: oldAt, newAt: newAt}
			o.Text = text
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				o.Op = OpContext
				oldAt++
				newAt++
			case diffmatchpatch.DiffDelete:
				o.Op = OpRemoved
				oldAt++
			case diffmatchpatch.DiffInsert:
				o.Op = OpAdded
				newAt++
			}
			ops = append(ops, o)
		}
	}
	return ops
}

// group cuts ops into hunks, merging changes separated by at most
// 2*context unchanged lines.
func group(ops []op, context int) []Hunk {
	var hunks []Hunk
	for i := 0; i < len(ops); {
		if ops[i].Op == OpContext {
			i++
			continue
		}
		start := max(0, i-context)
		last := i
		for j := i; j < len(ops); j++ {
			if ops[j].Op != OpContext {
				last = j
			} else if j-last > 2*context {
				break
			}
		}
		stop := min(len(ops), last+context+1)
		hunks = append(hunks, newHunk(ops[start:stop]))
		i = stop
	}
	return hunks
}

func newHunk(ops []op) Hunk {
	h := Hunk{Lines: make([]Line, len(ops))}
	for i, o := range ops {
		h.Lines[i] = o.Line
		if o.Op != OpAdded {
			h.OldCount++
		}
		if o.Op != OpRemoved {
			h.NewCount++
		}
	}
	h.OldStart, h.NewStart = ops[0].oldAt, ops[0].newAt
	if h.OldCount > 0 {
		h.OldStart++
	}
	if h.NewCount > 0 {
		h.NewStart++
	}
	return h
}

// WriteUnified renders hunks in unified diff format. Nothing is written
// when there are no hunks.
func WriteUnified(w io.Writer, oldName, newName string, hunks []Hunk) error {
	if len(hunks) == 0 {
		return nil
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks {
		buf.WriteString(h.Header())
		buf.WriteByte('\n')
		for _, l := range h.Lines {
			buf.WriteByte(l.Op.prefix())
			buf.WriteString(l.Text)
			buf.WriteByte('\n')
		}
	}
	_, err := buf.WriteTo(w)
	return err
}

// JSON diffs two JSON documents after indenting both, so formatting
// differences in the stored text do not show up as changes.
func (e *Engine) JSON(oldDoc, newDoc json.RawMessage) ([]Hunk, error) {
	a, err := indent(oldDoc)
	if err != nil {
		return nil, fmt.Errorf("diff: old document: %w", err)
	}
	b, err := indent(newDoc)
	if err != nil {
		return nil, fmt.Errorf("diff: new document: %w", err)
	}
	return e.Compute(a, b), nil
}

func indent(doc json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

// Changes summarizes how the component list of a filter result moved
// between two runs. Components are matched by id; components without an id
// are ignored.
type Changes struct {
	Added   []string `json:"added"`   // in new-result order
	Removed []string `json:"removed"` // in old-result order
	Changed []string `json:"changed"` // in new-result order
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

func (c Changes) String() string {
	return fmt.Sprintf("components: +%d -%d ~%d", len(c.Added), len(c.Removed), len(c.Changed))
}

// Components compares two filter results. When an id repeats, its first
// occurrence is used.
func Components(oldRes, newRes *filter.Result) (Changes, error) {
	oldIdx, newIdx := oldRes.Index(), newRes.Index()
	var ch Changes
	seen := make(map[string]bool)
	for _, c := range newRes.FigmaData {
		if c.ID == nil || seen[*c.ID] {
			continue
		}
		id := *c.ID
		seen[id] = true
		prev, ok := oldIdx[id]
		if !ok {
			ch.Added = append(ch.Added, id)
			continue
		}
		same, err := equal(prev, newIdx[id])
		if err != nil {
			return Changes{}, err
		}
		if !same {
			ch.Changed = append(ch.Changed, id)
		}
	}
	gone := make(map[string]bool)
	for _, c := range oldRes.FigmaData {
		if c.ID == nil || gone[*c.ID] {
			continue
		}
		if _, ok := newIdx[*c.ID]; !ok {
			gone[*c.ID] = true
			ch.Removed = append(ch.Removed, *c.ID)
		}
	}
	return ch, nil
}

func equal(a, b *filter.Component) (bool, error) {
	x, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("diff: encode component: %w", err)
	}
	y, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("diff: encode component: %w", err)
	}
	return bytes.Equal(x, y), nil
}
