package httpapi

import (
	_ "embed"
	"net/http"
)

// openAPISpec documents the routes registered by Router.
//
//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPISpec returns a copy of the embedded OpenAPI document.
func OpenAPISpec() []byte {
	return append([]byte(nil), openAPISpec...)
}

func handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}
