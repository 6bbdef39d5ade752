package rate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_CountsDetectableEvents(t *testing.T) {
	store := NewParamStore(filepath.Join(t.TempDir(), "s.json"), StoreMeta{})
	require.NoError(t, store.Append(map[string][]float64{
		"snr": {1, 9, 12, 3},
	}))

	sum, err := Summarize(store, "snr", 8)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Events)
	assert.Equal(t, 2, sum.Detectable)
	assert.InDelta(t, 0.5, sum.DetectableFrac, 1e-15)
	assert.InDelta(t, 6.25, sum.MeanSNR, 1e-12)
	assert.Equal(t, 12.0, sum.MaxSNR)
}

func TestSummarize_ThresholdIsExclusive(t *testing.T) {
	store := NewParamStore(filepath.Join(t.TempDir(), "s.json"), StoreMeta{})
	require.NoError(t, store.Append(map[string][]float64{"snr": {8, 8.0001}}))

	sum, err := Summarize(store, "snr", 8)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Detectable)
}

func TestSummarize_MissingField_Errors(t *testing.T) {
	store := NewParamStore(filepath.Join(t.TempDir(), "s.json"), StoreMeta{})
	require.NoError(t, store.Append(map[string][]float64{"zs": {1}}))

	_, err := Summarize(store, "snr", 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"snr"`)
}
