package usage

// ModelPricing holds USD prices per million tokens for one model, input and
// output priced separately. The table is configuration, not derived data:
// it must be kept in sync with the provider's published pricing out-of-band.
type ModelPricing struct {
	InputPerMtok  float64 `json:"input_per_mtok" koanf:"input_per_mtok"`
	OutputPerMtok float64 `json:"output_per_mtok" koanf:"output_per_mtok"`
}

// Pricing maps model IDs to their prices.
type Pricing map[string]ModelPricing

// DefaultPricing returns a starter price table for common OpenAI models.
// Deployments override this from configuration.
func DefaultPricing() Pricing {
	return Pricing{
		"gpt-4o":                 {InputPerMtok: 2.50, OutputPerMtok: 10.00},
		"gpt-4o-mini":            {InputPerMtok: 0.15, OutputPerMtok: 0.60},
		"gpt-4.1":                {InputPerMtok: 2.00, OutputPerMtok: 8.00},
		"gpt-4.1-mini":           {InputPerMtok: 0.40, OutputPerMtok: 1.60},
		"text-embedding-3-small": {InputPerMtok: 0.02, OutputPerMtok: 0},
		"text-embedding-3-large": {InputPerMtok: 0.13, OutputPerMtok: 0},
	}
}

// Cost estimates the USD cost of a call. The second return is false when the
// model is not in the table.
func (p Pricing) Cost(model string, promptTokens, completionTokens int) (float64, bool) {
	mp, ok := p[model]
	if !ok {
		return 0, false
	}
	cost := float64(promptTokens)*mp.InputPerMtok/1_000_000 +
		float64(completionTokens)*mp.OutputPerMtok/1_000_000
	return cost, true
}
