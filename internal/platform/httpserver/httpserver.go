package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Write and idle timeouts are generous
// because action submissions wait on the downstream bundle store.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
