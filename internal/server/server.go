// package server contains the callback router and handlers for CLI OAuth flows
package server

import (
	"net/http"
)

// Handler defines the interface for HTTP request handlers in the OAuth callback flow.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing.
// Implementations register handlers and serve the callback endpoints.
type Router interface {
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}
