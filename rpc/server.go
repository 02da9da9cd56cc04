package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server owns the process-wide HTTP listener for the façade, with an
// explicit start/stop lifecycle; restart is stop + wait-for-port-free +
// start, per spec.md §5's process-wide state note. The teacher starts a
// gin.Engine directly from main (main.go); this generalizes that into a
// reusable, stoppable unit.
type Server struct {
	addr   string
	engine *gin.Engine
	http   *http.Server
}

func NewServer(addr string, facade *Facade) *Server {
	g := gin.New()
	g.Use(gin.Recovery())
	RegisterRoutes(g, facade)
	return &Server{addr: addr, engine: g}
}

func (s *Server) Start() error {
	s.http = &http.Server{Addr: s.addr, Handler: s.engine}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc: failed to bind %s: %w", s.addr, err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("rpc server stopped unexpectedly", "error", err.Error())
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Restart stops the server, waits for the port to free, then starts again.
func (s *Server) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	if err := waitForPortFree(s.addr, 5*time.Second); err != nil {
		return err
	}
	return s.Start()
}

func waitForPortFree(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("rpc: port %s did not free within %s", addr, timeout)
}
