package httpserver

import (
	"net/http"
	"time"

	"careon/internal/platform/config"
)

// writeGrace leaves room for the request-timeout middleware to write its 504
// before the server drops the connection.
const writeGrace = 5 * time.Second

// New builds the HTTP server. The write timeout tracks the request timeout.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	write := 45 * time.Second
	if cfg.RequestTimeout > 0 {
		write = cfg.RequestTimeout + writeGrace
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       120 * time.Second,
	}
}
