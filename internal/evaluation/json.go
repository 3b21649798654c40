package evaluation

import (
	"encoding/json"

	"github.com/contactkeval/option-pricer/internal/nullfloat"
)

// MarshalJSON encodes an undefined R2 as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MAE  nullfloat.Float `json:"MAE"`
		MSE  nullfloat.Float `json:"MSE"`
		RMSE nullfloat.Float `json:"RMSE"`
		R2   nullfloat.Float `json:"R2"`
	}{nullfloat.Float(m.MAE), nullfloat.Float(m.MSE), nullfloat.Float(m.RMSE), nullfloat.Float(m.R2)})
}

func (r Residual) MarshalJSON() ([]byte, error) {
	type plain Residual
	return json.Marshal(struct {
		plain
		ModelPrice   nullfloat.Float `json:"model_price"`
		PriceDiff    nullfloat.Float `json:"price_diff"`
		PriceDiffPct nullfloat.Float `json:"price_diff_pct"`
	}{plain(r), nullfloat.Float(r.ModelPrice), nullfloat.Float(r.PriceDiff), nullfloat.Float(r.PriceDiffPct)})
}

func (b Bucket) MarshalJSON() ([]byte, error) {
	type plain Bucket
	return json.Marshal(struct {
		plain
		MeanPriceDiff    nullfloat.Float `json:"mean_price_diff"`
		MeanPriceDiffPct nullfloat.Float `json:"mean_price_diff_pct"`
	}{plain(b), nullfloat.Float(b.MeanPriceDiff), nullfloat.Float(b.MeanPriceDiffPct)})
}
