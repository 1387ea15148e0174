// Package regression runs batteries of filter cases: YAML files listing
// design exports together with the components each one is expected to
// yield. Batteries pin down filter behavior over a corpus of real exports
// and can be run from the CLI or in CI.
package regression

import (
	"context"
	"coveriq/internal/figma"
	"coveriq/internal/filter"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Battery is a collection of filter cases.
type Battery struct {
	Version  int    `yaml:"version"`
	FailFast bool   `yaml:"fail_fast,omitempty"`
	Cases    []Case `yaml:"cases"`

	dir string // directory of the battery file; case inputs resolve against it
}

// Case is a single export and what filtering it must produce.
type Case struct {
	ID       string `yaml:"id"`
	Input    string `yaml:"input"`
	RootPath string `yaml:"root_path,omitempty"` // dotted; overrides the run's root path
	Policy   string `yaml:"policy,omitempty"`    // overrides the run's policy
	Expect   Expect `yaml:"expect"`
}

// Expect describes the outcome of a case. With Invalid set the filter must
// reject the input; otherwise IDs (exact, in order) and Count are checked
// when given.
type Expect struct {
	IDs     []string `yaml:"ids,omitempty"`
	Count   *int     `yaml:"count,omitempty"`
	Invalid bool     `yaml:"invalid,omitempty"`
}

// Result captures the outcome of one case.
type Result struct {
	CaseID     string
	Success    bool
	Components int
	Error      string
	DurationMs int64
}

// LoadBattery reads a YAML battery file from disk.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	b.dir = filepath.Dir(path)
	for i, c := range b.Cases {
		if strings.TrimSpace(c.Input) == "" {
			return nil, fmt.Errorf("case %d (%s): input is required", i, c.ID)
		}
	}
	return &b, nil
}

// RunBattery filters every case's input with base options plus the case's
// overrides. A failing case does not stop the run unless FailFast is set.
// The returned error is reserved for cancellation.
func RunBattery(ctx context.Context, b *Battery, base filter.Options) ([]Result, error) {
	if b == nil || len(b.Cases) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(b.Cases))
	for _, c := range b.Cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		start := time.Now()
		res := Result{CaseID: c.ID}
		n, err := b.runCase(c, base)
		res.Components = n
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
		}
		res.DurationMs = time.Since(start).Milliseconds()
		results = append(results, res)

		if !res.Success && b.FailFast {
			break
		}
	}
	return results, nil
}

func (b *Battery) runCase(c Case, opts filter.Options) (int, error) {
	if c.RootPath != "" {
		opts.RootPath = figma.ParsePath(c.RootPath)
	}
	if c.Policy != "" {
		p, err := filter.ParsePolicy(c.Policy)
		if err != nil {
			return 0, err
		}
		opts.Policy = p
	}

	path := c.Input
	if !filepath.IsAbs(path) && b.dir != "" {
		path = filepath.Join(b.dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	res, err := filter.FilterJSON(f, opts)
	if c.Expect.Invalid {
		if errors.Is(err, filter.ErrInvalidInput) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return len(res.FigmaData), fmt.Errorf("expected invalid input, got %d components", len(res.FigmaData))
	}
	if err != nil {
		return 0, err
	}

	n := len(res.FigmaData)
	if c.Expect.Count != nil && n != *c.Expect.Count {
		return n, fmt.Errorf("expected %d components, got %d", *c.Expect.Count, n)
	}
	if c.Expect.IDs != nil {
		got := make([]string, 0, n)
		for _, comp := range res.FigmaData {
			if comp.ID != nil {
				got = append(got, *comp.ID)
			}
		}
		if !slices.Equal(got, c.Expect.IDs) {
			return n, fmt.Errorf("expected ids %v, got %v", c.Expect.IDs, got)
		}
	}
	return n, nil
}

// Failed counts the unsuccessful results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

// DefaultBatteryPath returns the canonical battery path for a workspace.
func DefaultBatteryPath(workspace string) string {
	return filepath.Join(workspace, ".coveriq", "battery.yaml")
}
