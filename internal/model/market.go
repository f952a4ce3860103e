package model

// Sample is one (price, volume) observation of a symbol, taken once per poll cycle.
type Sample struct {
	Price  float64
	Volume float64
}

// Quote is a single row of a market-data snapshot.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume24h float64 `json:"volume_24h"`
}
