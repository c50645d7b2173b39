package aibridge

// ModelConfig declares the capabilities and prices of a model. It is bound to an adapter at construction.
// Token costs are prices per million tokens; WebSearchCost is a flat fee per response.
type ModelConfig struct {
	ID                   string   `yaml:"id" koanf:"id" validate:"required"`
	IsVision             bool     `yaml:"vision" koanf:"vision"`
	IsImageGeneration    bool     `yaml:"image_generation" koanf:"image_generation"`
	IsThinking           bool     `yaml:"thinking" koanf:"thinking"`
	InputTokenCost       *float64 `yaml:"input_token_cost" koanf:"input_token_cost" validate:"omitnil,gte=0"`
	OutputTokenCost      *float64 `yaml:"output_token_cost" koanf:"output_token_cost" validate:"omitnil,gte=0"`
	ImageOutputTokenCost *float64 `yaml:"image_output_token_cost" koanf:"image_output_token_cost" validate:"omitnil,gte=0"`
	WebSearchCost        *float64 `yaml:"web_search_cost" koanf:"web_search_cost" validate:"omitnil,gte=0"`
}

// VendorConfig holds the credentials and endpoint of a vendor.
type VendorConfig struct {
	APIKey         string `koanf:"api_key"`
	OrganizationID string `koanf:"organization_id"`
	BaseURL        string `koanf:"base_url" validate:"omitempty,url"`
}
