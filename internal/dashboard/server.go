// Package dashboard serves a read-only JSON view of the directory and the
// message log.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/signalbox/internal/service"
)

const (
	defaultPort     = 8080
	eventPoll       = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Service *service.Service
	Port    int
	Out     io.Writer
}

// newEngine builds the gin engine with every API route. poll is how often
// the event stream checks the log for new rows.
func newEngine(svc *service.Service, poll time.Duration) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no route " + c.Request.URL.Path})
	})
	registerRoutes(engine, svc, poll)
	return engine
}

// Start serves the API on opts.Port until ctx is cancelled.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("dashboard: service is required")
	}
	if opts.Port <= 0 {
		opts.Port = defaultPort
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           newEngine(opts.Service, eventPoll),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("dashboard: shutdown: %v", err)
		}
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d/api/agents\n", opts.Port)
	}

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return fmt.Errorf("dashboard: listen on %s: %w", srv.Addr, err)
}
