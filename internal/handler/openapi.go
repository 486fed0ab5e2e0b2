package handler

import (
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/consultease/adminguard/internal/openapi"
)

// OpenAPIHandler serves the generated OpenAPI 3.1 document. The document is
// built once on first request.
type OpenAPIHandler struct {
	version string
	once    sync.Once
	doc     *openapi3.T
}

// NewOpenAPIHandler creates an OpenAPIHandler reporting version.
func NewOpenAPIHandler(version string) *OpenAPIHandler {
	return &OpenAPIHandler{version: version}
}

// ServeSpec writes the API description.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.doc = openapi.Generate(h.version, "")
	})
	writeJSON(w, http.StatusOK, h.doc)
}
