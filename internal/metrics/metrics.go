// Package metrics serves prometheus metrics on an optional debug listener.
// The MCP transport occupies stdio, so observability gets its own port.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdelaney/crm-mcp/internal/logger"
)

// Start serves /metrics on addr in the background and returns the server so
// the caller can shut it down. Listen failures are logged, not fatal; the
// server is a debugging aid.
func Start(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("metrics listener on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warnf("metrics listener stopped: %v", err)
		}
	}()
	return srv
}
