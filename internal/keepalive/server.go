// Package keepalive runs the liveness HTTP listener some hosting
// platforms require. Any path answers 200 with a static body; there is
// no logic behind it.
package keepalive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Server is the keep-alive HTTP listener.
type Server struct {
	httpServer *http.Server
}

// New creates the listener bound to host:port.
func New(host string, port int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", handleProbe)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func handleProbe(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Bot is running!")
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("keep-alive server shutdown", "error", err)
		}
	}()

	slog.Info("keep-alive server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("keep-alive server: %w", err)
	}
	return nil
}
