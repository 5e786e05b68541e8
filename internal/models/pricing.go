package models

// Rate is a model price in USD per million tokens
type Rate struct {
	InputPerMTok  float64 `json:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok"`
}

// Cost returns the USD cost of a call
func (r Rate) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*r.InputPerMTok + float64(outputTokens)*r.OutputPerMTok) / 1_000_000
}

// Pricing holds the rates of the scan and research tiers
type Pricing struct {
	Scan     Rate `json:"scan"`
	Research Rate `json:"research"`
}

// DefaultPricing matches the default scan and research models
func DefaultPricing() Pricing {
	return Pricing{
		Scan:     Rate{InputPerMTok: 1, OutputPerMTok: 5},
		Research: Rate{InputPerMTok: 3, OutputPerMTok: 15},
	}
}
