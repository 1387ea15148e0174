package filter

import (
	"coveriq/internal/figma"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t testing.TB, s string) map[string]interface{} {
	t.Helper()
	doc, err := figma.Decode(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func ids(r *Result) []string {
	out := make([]string, 0, len(r.FigmaData))
	for _, c := range r.FigmaData {
		if c.ID == nil {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, *c.ID)
	}
	return out
}

func strp(s string) *string { return &s }

// =============================================================================
// SCENARIOS
// =============================================================================

func TestFilter_EmptyDocumentUnderServicePath(t *testing.T) {
	doc := decode(t, `{"document": {}}`)

	result, err := Filter(doc, Options{RootPath: figma.ServiceRootPath})
	require.NoError(t, err)

	assert.NotNil(t, result.FigmaData)
	assert.Empty(t, result.FigmaData)
	assert.Nil(t, result.FeatureDescription)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"figma_data": [], "feature_description": null}`, string(data))
}

func TestFilter_NodeWithInteractions(t *testing.T) {
	doc := decode(t, `{"document": {
		"id": "1", "name": "Test Node", "type": "FRAME",
		"interactions": [{"type": "CLICK"}],
		"absoluteBoundingBox": {"x": 0, "y": 0, "width": 100, "height": 100},
		"children": []
	}}`)

	result, err := Filter(doc, Options{})
	require.NoError(t, err)
	require.Len(t, result.FigmaData, 1)

	c := result.FigmaData[0]
	assert.Equal(t, "1", *c.ID)
	assert.Equal(t, "Test Node", *c.Name)
	assert.Equal(t, "FRAME", *c.Type)
	assert.Nil(t, c.ParentID)
	assert.Equal(t, 0.0, *c.Position.X)
	assert.Equal(t, 0.0, *c.Position.Y)
	require.NotNil(t, c.Size)
	assert.Equal(t, 100.0, *c.Size.Width)
	assert.Equal(t, 100.0, *c.Size.Height)
	assert.Nil(t, c.StyleOverrideTable)

	out, err := json.Marshal(c.Interactions)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type": "CLICK"}]`, string(out))
}

func TestFilter_NodeWithStyleOverride(t *testing.T) {
	doc := decode(t, `{"document": {
		"id": "1", "name": "Test Node", "type": "FRAME",
		"styleOverrideTable": {"color": "#000000"}
	}}`)

	result, err := Filter(doc, Options{})
	require.NoError(t, err)
	require.Len(t, result.FigmaData, 1)
	assert.Equal(t, map[string]interface{}{"color": "#000000"}, result.FigmaData[0].StyleOverrideTable)
	assert.Nil(t, result.FigmaData[0].Interactions)
}

func TestFilter_FeatureDescriptionPassThrough(t *testing.T) {
	desc := "Test feature description"
	for _, input := range []string{`{"document": {}}`, `{"document": {"id": "1", "interactions": [1]}}`, `{}`} {
		result, err := Filter(decode(t, input), Options{FeatureDescription: &desc})
		require.NoError(t, err)
		require.NotNil(t, result.FeatureDescription)
		assert.Equal(t, desc, *result.FeatureDescription)
		assert.NotSame(t, &desc, result.FeatureDescription)
	}
}

func TestFilter_GrandchildParentIsStructuralParent(t *testing.T) {
	doc := decode(t, `{"document": {"id": "root", "children": [
		{"id": "child", "children": [
			{"id": "grandchild", "interactions": [{"type": "HOVER"}]}
		]}
	]}}`)

	result, err := Filter(doc, Options{})
	require.NoError(t, err)
	require.Len(t, result.FigmaData, 1)
	assert.Equal(t, "grandchild", *result.FigmaData[0].ID)
	assert.Equal(t, "child", *result.FigmaData[0].ParentID)

	unresolved := result.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "grandchild", *unresolved[0].ID)
}

// =============================================================================
// PROPERTIES
// =============================================================================

const sampleTree = `{"document": {"id": "0:0", "name": "Document", "type": "DOCUMENT", "children": [
	{"id": "0:1", "name": "Page", "type": "CANVAS", "children": [
		{"id": "1:1", "name": "Screen", "type": "FRAME",
		 "interactions": [{"trigger": {"type": "ON_CLICK"}, "actions": [{"type": "NODE", "destinationId": "1:9"}]}],
		 "children": [
			{"id": "1:2", "name": "Header", "type": "GROUP", "children": [
				{"id": "1:3", "name": "Title", "type": "TEXT", "styleOverrideTable": {"1": {"fontWeight": 700}}},
				{"id": "1:4", "name": "Divider", "type": "LINE"}
			]},
			{"id": "1:5", "name": "CTA", "type": "INSTANCE", "interactions": [{"trigger": {"type": "ON_HOVER"}}],
			 "children": [{"id": "1:6", "name": "Label", "type": "TEXT", "styleOverrideTable": {"2": {"fill": "#fff"}}}]}
		 ]},
		{"id": "1:7", "name": "Decoration", "type": "RECTANGLE"}
	]}
]}}`

func TestFilter_PreOrder(t *testing.T) {
	result, err := Filter(decode(t, sampleTree), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1:1", "1:3", "1:5", "1:6"}, ids(result))

	for i, c := range result.FigmaData {
		for _, anc := range result.Ancestors(*c.ID) {
			j := indexOf(result, *anc.ID)
			assert.Less(t, j, i, "ancestor %s must precede %s", *anc.ID, *c.ID)
		}
	}
}

func indexOf(r *Result, id string) int {
	for i, c := range r.FigmaData {
		if c.ID != nil && *c.ID == id {
			return i
		}
	}
	return -1
}

func TestFilter_ParentLinkage(t *testing.T) {
	result, err := Filter(decode(t, sampleTree), Options{})
	require.NoError(t, err)

	want := map[string]string{
		"1:1": "0:1", // page was dropped but is still the parent
		"1:3": "1:2", // group was dropped
		"1:5": "1:1",
		"1:6": "1:5",
	}
	for _, c := range result.FigmaData {
		require.NotNil(t, c.ParentID)
		assert.Equal(t, want[*c.ID], *c.ParentID, "parent of %s", *c.ID)
	}
	assert.Len(t, result.Unresolved(), 2)
}

func TestFilter_PassThroughIsDeepEqual(t *testing.T) {
	doc := decode(t, sampleTree)
	result, err := Filter(doc, Options{})
	require.NoError(t, err)

	screen, _ := figma.Lookup(doc, []string{"document", "children"})
	page := screen.([]interface{})[0].(map[string]interface{})
	frame := page["children"].([]interface{})[0].(map[string]interface{})

	if diff := cmp.Diff(frame["interactions"], result.FigmaData[0].Interactions); diff != "" {
		t.Errorf("interactions changed (-source +output):\n%s", diff)
	}

	title := frame["children"].([]interface{})[0].(map[string]interface{})["children"].([]interface{})[0].(map[string]interface{})
	if diff := cmp.Diff(title["styleOverrideTable"], result.FigmaData[1].StyleOverrideTable); diff != "" {
		t.Errorf("styleOverrideTable changed (-source +output):\n%s", diff)
	}
}

func TestFilter_Deterministic(t *testing.T) {
	desc := "checkout flow"
	var first []byte
	for i := 0; i < 5; i++ {
		result, err := Filter(decode(t, sampleTree), Options{FeatureDescription: &desc})
		require.NoError(t, err)
		data, err := json.Marshal(result)
		require.NoError(t, err)
		if first == nil {
			first = data
			continue
		}
		assert.Equal(t, string(first), string(data))
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	doc := decode(t, sampleTree)
	before := decode(t, sampleTree)

	_, err := Filter(doc, Options{Policy: PolicyStructural})
	require.NoError(t, err)

	if diff := cmp.Diff(before, doc); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestFilter_EmptyTreeProperty(t *testing.T) {
	result, err := Filter(decode(t, `{"document": {"id": "0:0", "name": "Lonely", "interactions": [], "styleOverrideTable": {}}}`), Options{})
	require.NoError(t, err)
	assert.Empty(t, result.FigmaData)
	assert.Nil(t, result.FeatureDescription)
}

// =============================================================================
// POLICIES AND OPTIONS
// =============================================================================

func TestFilter_StructuralPolicyRetainsContainers(t *testing.T) {
	result, err := Filter(decode(t, sampleTree), Options{Policy: PolicyStructural})
	require.NoError(t, err)
	assert.Equal(t, []string{"0:0", "0:1", "1:1", "1:2", "1:3", "1:5", "1:6"}, ids(result))
	assert.Empty(t, result.Unresolved())
	assert.Nil(t, result.FigmaData[0].ParentID)
}

func TestFilter_OmitSize(t *testing.T) {
	result, err := Filter(decode(t, sampleTree), Options{OmitSize: true})
	require.NoError(t, err)

	data, err := json.Marshal(result.FigmaData[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"size"`)
	assert.Contains(t, string(data), `"position":{"x":null,"y":null}`)
}

func TestFilter_RootPaths(t *testing.T) {
	wrapped := `{"file_key": "abc", "figma_data": {"document": {"id": "9", "interactions": [{}]}}}`

	tests := []struct {
		name string
		doc  string
		path []string
		want []string
	}{
		{"default path on raw export", `{"document": {"id": "9", "interactions": [{}]}}`, nil, []string{"9"}},
		{"service path on envelope", wrapped, figma.ServiceRootPath, []string{"9"}},
		{"default path on envelope", wrapped, nil, []string{}},
		{"document itself", `{"id": "9", "interactions": [{}]}`, []string{}, []string{"9"}},
		{"intermediate scalar", `{"figma_data": 3}`, figma.ServiceRootPath, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Filter(decode(t, tt.doc), Options{RootPath: tt.path})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(result))
		})
	}
}

func TestFilter_MissingFieldsBecomeNull(t *testing.T) {
	result, err := Filter(decode(t, `{"document": {"interactions": [{"type": "DRAG"}]}}`), Options{})
	require.NoError(t, err)
	require.Len(t, result.FigmaData, 1)

	data, err := json.Marshal(result.FigmaData[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"parent_id": null, "id": null, "name": null, "type": null,
		"position": {"x": null, "y": null},
		"size": {"width": null, "height": null},
		"interactions": [{"type": "DRAG"}],
		"styleOverrideTable": null
	}`, string(data))
}

func TestFilter_NumbersKeepTheirText(t *testing.T) {
	result, err := Filter(decode(t, `{"document": {"id": "1", "interactions": [{"delay": 0.250}]}}`), Options{})
	require.NoError(t, err)

	data, err := json.Marshal(result.FigmaData[0].Interactions)
	require.NoError(t, err)
	assert.Equal(t, `[{"delay":0.250}]`, string(data))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy(" Structural ")
	require.NoError(t, err)
	assert.Equal(t, PolicyStructural, p)
	assert.Equal(t, "structural", p.String())

	_, err = ParsePolicy("everything")
	assert.Error(t, err)
}

// =============================================================================
// INVALID INPUT
// =============================================================================

func TestFilter_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantPath string
	}{
		{"root is a string", `{"document": "oops"}`, "document"},
		{"root is null", `{"document": null}`, "document"},
		{"children not an array", `{"document": {"id": "1", "children": {"a": 1}}}`, "document"},
		{"child not an object", `{"document": {"id": "1", "children": [{"id": "2"}, 7]}}`, "document.children[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Filter(decode(t, tt.doc), Options{})
			assert.Nil(t, result)
			require.ErrorIs(t, err, ErrInvalidInput)

			var inv *InvalidInputError
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, tt.wantPath, inv.Path)
		})
	}
}

func TestFilter_NilDocument(t *testing.T) {
	_, err := Filter(nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFilterJSON(t *testing.T) {
	result, err := FilterJSON(strings.NewReader(sampleTree), Options{})
	require.NoError(t, err)
	assert.Len(t, result.FigmaData, 4)

	for _, bad := range []string{`[]`, `{"document": `, `"text"`} {
		_, err := FilterJSON(strings.NewReader(bad), Options{})
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", bad)
	}

	_, err = FilterJSON(strings.NewReader(`[]`), Options{})
	assert.ErrorIs(t, err, figma.ErrNotObject)

	// A valid export followed by anything else is not a valid export.
	trailing := `{"document":{"id":"1","interactions":[{"type":"CLICK"}]}} {"document": garbage`
	result, err = FilterJSON(strings.NewReader(trailing), Options{})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, figma.ErrTrailingData)
	assert.Nil(t, result)
}

func deepChain(depth int) map[string]interface{} {
	leaf := map[string]interface{}{"id": fmt.Sprintf("n%d", depth), "interactions": []interface{}{"tap"}}
	node := leaf
	for i := depth - 1; i >= 1; i-- {
		node = map[string]interface{}{"id": fmt.Sprintf("n%d", i), "children": []interface{}{node}}
	}
	return map[string]interface{}{"document": node}
}

func TestFilter_DepthCeiling(t *testing.T) {
	_, err := Filter(deepChain(DefaultMaxDepth+1), Options{})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "deeper than 512 levels")

	result, err := Filter(deepChain(DefaultMaxDepth), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"n512"}, ids(result))

	_, err = Filter(deepChain(10), Options{MaxDepth: 5})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFilter_UnboundedDepthIsIterative(t *testing.T) {
	result, err := Filter(deepChain(200000), Options{MaxDepth: -1})
	require.NoError(t, err)
	require.Len(t, result.FigmaData, 1)
	assert.Equal(t, "n199999", *result.FigmaData[0].ParentID)
}

// =============================================================================
// RESULT HELPERS
// =============================================================================

func TestResult_IndexAndAncestors(t *testing.T) {
	r := &Result{FigmaData: []Component{
		{ID: strp("a")},
		{ID: strp("b"), ParentID: strp("a")},
		{ID: strp("c"), ParentID: strp("b")},
		{ID: strp("b"), ParentID: strp("zz")},
		{ParentID: strp("a")},
		{ID: strp("d"), ParentID: strp("gone")},
	}}

	idx := r.Index()
	assert.Len(t, idx, 4)
	assert.Same(t, &r.FigmaData[1], idx["b"], "earliest duplicate wins")

	chain := r.Ancestors("c")
	require.Len(t, chain, 2)
	assert.Equal(t, "b", *chain[0].ID)
	assert.Equal(t, "a", *chain[1].ID)

	assert.Empty(t, r.Ancestors("d"))
	assert.Nil(t, r.Ancestors("missing"))

	var unresolved []string
	for _, c := range r.Unresolved() {
		unresolved = append(unresolved, *c.ParentID)
	}
	assert.Equal(t, []string{"zz", "gone"}, unresolved)
}

func TestResult_AncestorsStopsOnCycle(t *testing.T) {
	r := &Result{FigmaData: []Component{
		{ID: strp("a"), ParentID: strp("b")},
		{ID: strp("b"), ParentID: strp("a")},
	}}
	chain := r.Ancestors("a")
	require.Len(t, chain, 1)
	assert.Equal(t, "b", *chain[0].ID)
}

func TestInvalidInputError_Message(t *testing.T) {
	assert.Equal(t, "invalid input", (&InvalidInputError{}).Error())
	assert.Equal(t, "invalid input: bad", (&InvalidInputError{Msg: "bad"}).Error())
	assert.Equal(t, "invalid input: document: bad", (&InvalidInputError{Path: "document", Msg: "bad"}).Error())

	cause := errors.New("eof")
	err := &InvalidInputError{Err: cause}
	assert.Equal(t, "invalid input: eof", err.Error())
	assert.ErrorIs(t, err, cause)
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func wideTree(fanout, depth int) map[string]interface{} {
	var build func(prefix string, level int) map[string]interface{}
	build = func(prefix string, level int) map[string]interface{} {
		n := map[string]interface{}{"id": prefix, "type": "FRAME"}
		if level%2 == 0 {
			n["interactions"] = []interface{}{map[string]interface{}{"type": "ON_CLICK"}}
		}
		if level < depth {
			children := make([]interface{}, fanout)
			for i := range children {
				children[i] = build(fmt.Sprintf("%s:%d", prefix, i), level+1)
			}
			n["children"] = children
		}
		return n
	}
	return map[string]interface{}{"document": build("0", 1)}
}

func BenchmarkFilter(b *testing.B) {
	doc := wideTree(6, 6)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Filter(doc, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
