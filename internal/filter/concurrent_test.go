package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestFilter_ConcurrentCallersShareDocument(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := decode(t, sampleTree)
	want, err := Filter(doc, Options{})
	require.NoError(t, err)
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	outputs := make([][]byte, 32)
	var g errgroup.Group
	for i := range outputs {
		i := i
		policy := PolicyStrict
		if i%2 == 1 {
			policy = PolicyStructural
		}
		g.Go(func() error {
			r, err := Filter(doc, Options{Policy: policy})
			if err != nil {
				return err
			}
			if policy == PolicyStrict {
				outputs[i], err = json.Marshal(r)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < len(outputs); i += 2 {
		assert.JSONEq(t, string(wantJSON), string(outputs[i]))
	}
}
