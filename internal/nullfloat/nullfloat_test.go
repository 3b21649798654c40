package nullfloat

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	b, err := json.Marshal([]Float{1.5, Float(math.NaN()), Float(math.Inf(-1)), 0})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null, null, 0]`, string(b))
}

func TestUnmarshal(t *testing.T) {
	var got struct {
		A Float `json:"a"`
		B Float `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 2.25, "b": null}`), &got))
	assert.Equal(t, Float(2.25), got.A)
	assert.True(t, math.IsNaN(float64(got.B)))

	assert.Error(t, json.Unmarshal([]byte(`{"a": "x"}`), &got))
}

func TestSlice(t *testing.T) {
	assert.Nil(t, Slice(nil))
	assert.Equal(t, []Float{1, 2}, Slice([]float64{1, 2}))
}
