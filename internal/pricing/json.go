package pricing

import (
	"encoding/json"

	"github.com/contactkeval/option-pricer/internal/nullfloat"
)

// MarshalJSON encodes sentinel NaN Greeks as null.
func (g Greeks) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Delta nullfloat.Float `json:"delta"`
		Gamma nullfloat.Float `json:"gamma"`
		Vega  nullfloat.Float `json:"vega"`
		Theta nullfloat.Float `json:"theta"`
		Rho   nullfloat.Float `json:"rho"`
	}{
		nullfloat.Float(g.Delta),
		nullfloat.Float(g.Gamma),
		nullfloat.Float(g.Vega),
		nullfloat.Float(g.Theta),
		nullfloat.Float(g.Rho),
	})
}

// MarshalJSON encodes non-finite inputs as null.
func (p Params) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		S     nullfloat.Float `json:"S"`
		K     nullfloat.Float `json:"K"`
		T     nullfloat.Float `json:"T"`
		R     nullfloat.Float `json:"r"`
		Sigma nullfloat.Float `json:"sigma"`
	}{
		nullfloat.Float(p.S),
		nullfloat.Float(p.K),
		nullfloat.Float(p.T),
		nullfloat.Float(p.R),
		nullfloat.Float(p.Sigma),
	})
}
