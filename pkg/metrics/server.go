package metrics

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

var indexPage = template.Must(template.New("index").Parse(`<html><body>
<h1>Block Inventory Operations</h1>
<ul>
<li><a href="/metrics">/metrics</a> build counters and item scan totals</li>
{{if .}}<li><a href="/health/ready">/health/ready</a> dependency checks</li>{{end}}
</ul>
</body></html>
`))

// NewMux serves Prometheus metrics plus an index page. A non-nil ready
// handler is mounted at /health/ready, which needs no API key.
func NewMux(ready http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	if ready != nil {
		mux.Handle("GET /health/ready", ready)
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexPage.Execute(w, ready != nil); err != nil {
			slog.Error("rendering metrics index", "error", err)
		}
	})
	return mux
}

// StartServer runs NewMux on port in the background and returns its
// shutdown func.
func StartServer(port int, ready http.Handler) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewMux(ready),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
