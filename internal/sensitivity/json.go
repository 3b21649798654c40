package sensitivity

import (
	"encoding/json"

	"github.com/contactkeval/option-pricer/internal/nullfloat"
	"github.com/contactkeval/option-pricer/internal/pricing"
)

// MarshalJSON encodes a sentinel output as null.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X float64         `json:"x"`
		Y nullfloat.Float `json:"y"`
	}{p.X, nullfloat.Float(p.Y)})
}

func (p Profile) MarshalJSON() ([]byte, error) {
	curves := make(map[pricing.Greek][]nullfloat.Float, len(p.Curves))
	for g, ys := range p.Curves {
		curves[g] = nullfloat.Slice(ys)
	}
	type plain Profile
	return json.Marshal(struct {
		plain
		Curves map[pricing.Greek][]nullfloat.Float `json:"curves"`
	}{plain(p), curves})
}
