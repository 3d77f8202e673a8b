// Package router wires up the admin routes and applies the middleware chain.
package router

import (
	"net/http"
	"time"

	adminhandler "github.com/Adithya-Monish-Kumar-K/block-inventory/internal/admin/handler"
	adminmw "github.com/Adithya-Monish-Kumar-K/block-inventory/internal/admin/middleware"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/middleware"
)

// Deps are the collaborators of the admin router.
type Deps struct {
	Handler            *adminhandler.Handler
	Health             *health.Checker
	Validator          adminmw.KeyValidator
	Limiter            *ratelimit.Limiter
	Metrics            *metrics.Metrics
	RequiredCapability string
	AllowOrigins       []string
	RequestTimeout     time.Duration
}

// New builds the admin HTTP handler with all routes and middleware.
//
// Route table:
//
//	GET    /health                          → liveness summary
//	GET    /health/live                     → liveness check
//	GET    /health/ready                    → readiness check
//	GET    /pages/{id}                      → item body, directives expanded
//	GET    /admin/kitchen-sink              → dashboard
//	GET    /admin/nonces                    → issue action nonces
//	POST   /admin/ajax/load-blocks-chunk    → usage chunk (AJAX)
//	POST   /admin/ajax/export-blocks-csv    → usage CSV (AJAX)
//	GET    /admin/references/{id}           → fragment references
//	GET    /admin/directives/{name}         → directive preview
//	POST   /admin/keys                      → create API key
//	GET    /admin/keys                      → list API keys
//	DELETE /admin/keys/{id}                 → revoke API key
//
// Middleware chain (outermost first):
//
//	RequestID → OTel → Recover → Logger → Metrics → CORS → Auth → Capability → RateLimit → Timeout → mux
func New(d Deps) http.Handler {
	h := d.Handler
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	if d.Health != nil {
		mux.HandleFunc("GET /health/live", d.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", d.Health.ReadyHandler())
	}
	mux.HandleFunc("GET /pages/{id}", h.Page)

	mux.HandleFunc("GET /admin/kitchen-sink", h.KitchenSink)
	mux.HandleFunc("GET /admin/nonces", h.Nonces)
	mux.HandleFunc("POST "+adminmw.AJAXPrefix+"load-blocks-chunk", h.LoadBlocksChunk)
	mux.HandleFunc("POST "+adminmw.AJAXPrefix+"export-blocks-csv", h.ExportBlocksCSV)
	mux.HandleFunc("GET /admin/references/{id}", h.References)
	mux.HandleFunc("GET /admin/directives/{name}", h.DirectivePreview)

	if h.ManagesKeys() {
		mux.HandleFunc("POST /admin/keys", h.CreateAPIKey)
		mux.HandleFunc("GET /admin/keys", h.ListAPIKeys)
		mux.HandleFunc("DELETE /admin/keys/{id}", h.RevokeAPIKey)
	}

	chain := []pkgmw.Middleware{
		pkgmw.RequestID,
		pkgmw.OTel("admin"),
		pkgmw.Recover,
		pkgmw.Logger,
	}
	if d.Metrics != nil {
		chain = append(chain, pkgmw.Metrics(d.Metrics))
	}
	chain = append(chain,
		adminmw.CORS(adminmw.DefaultCORSConfig(d.AllowOrigins)),
		adminmw.Auth(d.Validator),
		adminmw.RequireCapability(d.RequiredCapability),
	)
	if d.Limiter != nil {
		chain = append(chain, adminmw.RateLimit(d.Limiter, 60))
	}
	chain = append(chain, pkgmw.Timeout(d.RequestTimeout))
	return pkgmw.Chain(mux, chain...)
}
