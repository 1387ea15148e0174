// Package stage stores the output of each pipeline stage per session.
//
// Every Put appends a new version for its (session, stage) pair, so
// concurrent sessions never overwrite one another and earlier outputs stay
// retrievable with GetVersion.
package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage names a pipeline step whose output is kept.
type Stage string

const (
	StageFigmaData   Stage = "figma_data"   // fetched design document
	StageFeatureList Stage = "feature_list" // filter result
	StageTestPlan    Stage = "test_plan"
	StageTestCases   Stage = "test_cases"
)

var (
	// ErrUnknownStage is returned for stage names outside the known set.
	ErrUnknownStage = errors.New("stage: unknown stage")
	// ErrNotFound is returned when nothing was stored for a stage.
	ErrNotFound = errors.New("stage: no data found")
	// ErrInvalidSession is returned for an empty session id.
	ErrInvalidSession = errors.New("stage: session id required")
)

var aliases = map[string]Stage{
	"figma":   StageFigmaData,
	"feature": StageFeatureList,
	"plan":    StageTestPlan,
	"cases":   StageTestCases,
}

// All returns the known stages in pipeline order.
func All() []Stage {
	return []Stage{StageFigmaData, StageFeatureList, StageTestPlan, StageTestCases}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, known := range All() {
		if s == known {
			return true
		}
	}
	return false
}

// Parse accepts a full stage name or one of its short aliases
// (figma, feature, plan, cases).
func Parse(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if st, ok := aliases[name]; ok {
		return st, nil
	}
	if st := Stage(name); st.Valid() {
		return st, nil
	}
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "", fmt.Errorf("%w %q (valid: %s)", ErrUnknownStage, name, strings.Join(keys, ", "))
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Entry is one stored version of a stage output.
type Entry struct {
	Session   string          `json:"session"`
	Stage     Stage           `json:"stage"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the stored data into v.
func (e *Entry) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("stage: decode %s v%d: %w", e.Stage, e.Version, err)
	}
	return nil
}

// Store persists stage outputs keyed by session.
type Store interface {
	// Put stores value (JSON-encoded) as the next version and returns it.
	Put(ctx context.Context, session string, st Stage, value interface{}) (int64, error)
	// Get returns the latest version.
	Get(ctx context.Context, session string, st Stage) (*Entry, error)
	// GetVersion returns a specific version; 0 means latest.
	GetVersion(ctx context.Context, session string, st Stage, version int64) (*Entry, error)
	// Sessions lists sessions with stored data, oldest first.
	Sessions(ctx context.Context) ([]string, error)
	Close() error
}

// Open returns a Store for the given backend. driver is "memory", "sqlite"
// (pure Go) or "sqlite3" (cgo); dsn is ignored for memory.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case DriverSQLite, DriverSQLite3:
		return NewSQLStore(driver, dsn)
	default:
		return nil, fmt.Errorf("stage: unknown store driver %q", driver)
	}
}

func checkKey(session string, st Stage) error {
	if strings.TrimSpace(session) == "" {
		return ErrInvalidSession
	}
	if !st.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownStage, st)
	}
	return nil
}

func encode(value interface{}) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("stage: value is not valid JSON")
		}
		return raw, nil
	}
	// Design names keep characters like "<" and "&" as written.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("stage: encode value: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
