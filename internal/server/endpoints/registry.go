package endpoints

import (
	"github.com/quotient-labs/quotient/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// MaxUploadBytes bounds document uploads. Zero uses the default.
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Hardware and model selection
		&HardwareEndpoint{},
		&SelectEndpoint{},

		// Pipeline stages
		&PreprocessEndpoint{},
		&ExtractEndpoint{},
		&ProcessTextEndpoint{},
		&ProcessFileEndpoint{MaxUploadBytes: cfg.MaxUploadBytes},

		// Metrics
		&MetricsEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},
	}
}
