package endpoints

import (
	"github.com/lexpipe/lexpipe/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Document endpoints
		&UploadDocumentEndpoint{},
		&GetDocumentEndpoint{},
		&GetExtractionEndpoint{},

		// Extraction endpoints
		&ListExtractionsEndpoint{},
	}
}
