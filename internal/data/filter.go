package data

// FilterByMoneyness keeps quotes with a positive last price whose
// moneyness S/K lies in [lo, hi]. The input is not modified.
func FilterByMoneyness(quotes []OptionQuote, spot, lo, hi float64) []OptionQuote {
	out := make([]OptionQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.LastPrice <= 0 || q.Strike <= 0 {
			continue
		}
		m := spot / q.Strike
		if m < lo || m > hi {
			continue
		}
		out = append(out, q)
	}
	return out
}
