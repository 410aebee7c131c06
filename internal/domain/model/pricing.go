package model

// PriceLine is one component of a quote breakdown.
type PriceLine struct {
	Label       string `json:"label"`
	AmountPaise int64  `json:"amount_paise"`
}

// Quote is the pricing calculator's output for a booking. Amounts are in
// minor units; the total is fixed onto the Payment row at creation time and
// never recomputed afterwards.
type Quote struct {
	AmountPaise int64       `json:"amount_paise"`
	Currency    string      `json:"currency"`
	Breakdown   []PriceLine `json:"breakdown"`
}
