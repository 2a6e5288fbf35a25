package abc

// ExchangePairHint asks an exchange plugin for one rate.
type ExchangePairHint struct {
	FromCurrency string `json:"fromCurrency"`
	ToCurrency   string `json:"toCurrency"`
}

// ExchangePair is a rate reported by an exchange plugin.
type ExchangePair struct {
	FromCurrency string  `json:"fromCurrency"`
	ToCurrency   string  `json:"toCurrency"`
	Rate         float64 `json:"rate"`
}
