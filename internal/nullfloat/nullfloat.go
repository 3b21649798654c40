// Package nullfloat encodes float64 values whose NaN and infinite states are
// meaningful as JSON null. encoding/json refuses to marshal them otherwise.
package nullfloat

import (
	"bytes"
	"encoding/json"
	"math"
)

// Float marshals as a JSON number, or null when NaN or infinite.
// Unmarshalling null yields NaN.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Slice converts xs element-wise. A nil input stays nil.
func Slice(xs []float64) []Float {
	if xs == nil {
		return nil
	}
	out := make([]Float, len(xs))
	for i, x := range xs {
		out[i] = Float(x)
	}
	return out
}
