package httpserver

import (
	"context"
	"net/http"
	"time"
)

// shutdownGrace bounds how long a draining listener waits for in-flight
// requests. It must exceed the gateway's staged-ticket fetch timeout so a
// drain does not cut off a reply mid-write.
const shutdownGrace = 10 * time.Second

// New builds an HTTP server with the timeouts both processes share.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Shutdown drains srv with the shared grace period.
func Shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}
