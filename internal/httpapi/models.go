package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/scorebill/productfetch/pkg/batch"
	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/upstream"
)

// MultiRequest is the body of POST /extract_productdata_multi.
type MultiRequest struct {
	NVMIDs      []string          `json:"nvmids"`
	Cookies     string            `json:"cookies"`
	Headers     map[string]string `json:"headers,omitempty"`
	Concurrency int               `json:"concurrency,omitempty"`
}

// ToBatch converts the body into a batch request.
func (m MultiRequest) ToBatch() batch.Request {
	return batch.Request{
		Identifiers: m.NVMIDs,
		Credentials: credentials.Bundle{Cookie: m.Cookies, Headers: m.Headers},
		Concurrency: m.Concurrency,
	}
}

// SingleRequest is the body of POST /extract_productdata.
type SingleRequest struct {
	NVMID   string            `json:"nvmid"`
	Cookies string            `json:"cookies"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ItemResult is one position of a batch response.
type ItemResult struct {
	NVMID   string           `json:"nvmid"`
	Success bool             `json:"success"`
	Product upstream.Product `json:"product"`
	Error   *string          `json:"error"`
}

// MultiResponse is the body of a successful batch call.
type MultiResponse struct {
	Success              bool         `json:"success"`
	Total                int          `json:"total"`
	SuccessCount         int          `json:"success_count"`
	FailCount            int          `json:"fail_count"`
	OriginalUniqueNVMIDs int          `json:"original_unique_nvmids"`
	DuplicatesRemoved    int          `json:"duplicates_removed"`
	Results              []ItemResult `json:"results"`
}

// NewMultiResponse renders a batch result.
func NewMultiResponse(res batch.Result) MultiResponse {
	items := make([]ItemResult, len(res.Items))
	for i, o := range res.Items {
		items[i] = newItemResult(o)
	}
	return MultiResponse{
		Success:              true,
		Total:                res.Total,
		SuccessCount:         res.SuccessCount,
		FailCount:            res.FailCount,
		OriginalUniqueNVMIDs: res.UniqueCount,
		DuplicatesRemoved:    res.DuplicatesRemoved,
		Results:              items,
	}
}

func newItemResult(o upstream.Outcome) ItemResult {
	if o.Success() {
		return ItemResult{NVMID: o.Identifier, Success: true, Product: o.Product}
	}
	msg := "transport error"
	if o.Err != nil {
		msg = o.Err.Error()
	}
	return ItemResult{NVMID: o.Identifier, Error: &msg}
}

// SingleResponse is the body of a successful single-item call.
type SingleResponse struct {
	Success  bool               `json:"success"`
	Products []upstream.Product `json:"products"`
	NVMID    string             `json:"nvmid"`
}

// ErrorResponse is the body of every rejected call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	NVMID   string `json:"nvmid,omitempty"`
}

// decodeBody reads one JSON object into v and turns decoder failures into
// messages a caller can act on.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New(decodeErrorMessage(err))
	}
	return nil
}

func decodeErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return "JSON body is required"
	case errors.As(err, &maxErr):
		return "request body too large"
	case errors.As(err, &typeErr):
		return fieldTypeMessage(typeErr.Field)
	default:
		return "invalid JSON body"
	}
}

func fieldTypeMessage(field string) string {
	root, _, _ := strings.Cut(field, ".")
	switch root {
	case "":
		return "JSON body must be an object"
	case "nvmids":
		return "nvmids must be an array of strings"
	case "nvmid":
		return "nvmid must be a string"
	case "cookies":
		return "cookies must be a string"
	case "headers":
		return "headers must be an object of strings"
	case "concurrency":
		return "concurrency must be an integer"
	default:
		return "invalid value for " + field
	}
}
