// Package httpserver builds the API's http.Server with the timeouts the
// service runs with in every environment.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the given address and handler. Per-request
// deadlines come from the router's timeout middleware, so only the
// connection-level timeouts are set here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
