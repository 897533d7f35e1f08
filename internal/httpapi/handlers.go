package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/scorebill/productfetch/pkg/batch"
	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/upstream"
)

// Handlers serves the product API.
type Handlers struct {
	svc Service
}

// Hello answers GET / for uptime probes.
func (h *Handlers) Hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("hello, world"))
}

// Health answers GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExtractProductMulti runs a batch. Per-item failures are part of a 200
// response; only a malformed request is rejected.
func (h *Handlers) ExtractProductMulti(w http.ResponseWriter, r *http.Request) {
	var req MultiRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Run(r.Context(), req.ToBatch())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewMultiResponse(res))
}

// ExtractProduct fetches one identifier without deduplication or retry.
func (h *Handlers) ExtractProduct(w http.ResponseWriter, r *http.Request) {
	var req SingleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.svc.FetchOne(r.Context(), req.NVMID, credentials.Bundle{Cookie: req.Cookies, Headers: req.Headers})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	if !out.Success() {
		msg := "transport error"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		writeJSON(w, singleFailureStatus(out.Err), ErrorResponse{Error: msg, NVMID: req.NVMID})
		return
	}

	writeJSON(w, http.StatusOK, SingleResponse{
		Success:  true,
		Products: []upstream.Product{out.Product},
		NVMID:    req.NVMID,
	})
}

// singleFailureStatus maps a fetch failure to the response status: a missing
// product is a 404, anything else the upstream's fault.
func singleFailureStatus(err *upstream.FetchError) int {
	if err != nil && errors.Is(err, upstream.ErrShape) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func (h *Handlers) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, batch.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg("Batch service failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
