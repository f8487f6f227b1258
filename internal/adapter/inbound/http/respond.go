package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// CodeRateLimited is returned with 429 responses.
const CodeRateLimited = "RATE_LIMITED"

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error errorDetail `json:"error"`
}

// respondJSON writes a JSON response with the given status code and data.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		LoggerFromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// respondMessage writes an error body with an explicit status and code.
func respondMessage(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{Error: errorDetail{Message: message, Code: code}})
}

// respondError maps err to a status code and writes the error body.
// Internal errors are logged and reported without their detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.Kind(err)
	status := statusFor(kind)
	message := err.Error()
	switch kind {
	case fault.ErrInternal:
		LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal server error"
	case fault.ErrStoreUnavailable:
		LoggerFromContext(r.Context()).Warn("store unavailable", "path", r.URL.Path, "error", err)
		message = "store unavailable"
	}
	respondMessage(w, r, status, fault.Code(err), message)
}

func statusFor(kind error) int {
	switch kind {
	case fault.ErrNotFound:
		return http.StatusNotFound
	case fault.ErrUnauthorized:
		return http.StatusUnauthorized
	case fault.ErrForbidden:
		return http.StatusForbidden
	case fault.ErrValidation:
		return http.StatusBadRequest
	case fault.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes the request body into v. Decoding failures are validation errors.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fault.Validation("request body is required")
		case errors.As(err, &tooLarge):
			return fault.Validation("request body exceeds %d bytes", tooLarge.Limit)
		default:
			return fault.Validation("invalid JSON body: %v", err)
		}
	}
	return nil
}

// pageParams parses limit and offset query parameters. Missing values are 0,
// which the stores replace with their defaults.
func pageParams(r *http.Request) (limit, offset int, err error) {
	parse := func(name string) (int, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return 0, nil
		}
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 0 {
			return 0, fault.Validation("%s must be a non-negative integer", name)
		}
		return n, nil
	}
	if limit, err = parse("limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = parse("offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// errForbiddenOrg is returned when a token addresses another organization.
func errForbiddenOrg(orgID string) error {
	return fault.Forbidden("token is not authorized for organization %s", orgID)
}
