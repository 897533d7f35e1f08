// Package httpapi exposes the batch service over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/scorebill/productfetch/pkg/batch"
	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/upstream"
)

// maxBodyBytes bounds request bodies; a batch of tens of thousands of
// identifiers plus a cookie jar fits well below it.
const maxBodyBytes = 32 << 20

// Service is what the handlers need from the batch layer.
// *batch.Service implements it.
type Service interface {
	Run(ctx context.Context, req batch.Request) (batch.Result, error)
	FetchOne(ctx context.Context, id string, creds credentials.Bundle) (upstream.Outcome, error)
}

// Options configures the router.
type Options struct {
	// Logger is the base for request-scoped loggers.
	Logger zerolog.Logger
}

// NewRouter builds the API handler.
func NewRouter(svc Service, opts Options) http.Handler {
	r := chi.NewRouter()

	// outermost first
	r.Use(
		chimw.RealIP,
		requestLogger(opts.Logger),
		requestID,
		accessLog,
		recoverer,
		chimw.RequestSize(maxBodyBytes),
	)

	h := &Handlers{svc: svc}

	r.Get("/", h.Hello)
	r.Get("/health", h.Health)
	r.Post("/extract_productdata", h.ExtractProduct)
	r.Post("/extract_productdata_multi", h.ExtractProductMulti)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
