package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/services/scraper"
	"github.com/estatehub/marketplace/internal/app/storage"
)

const maxBodyBytes = 1 << 20

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return service.Invalid("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps service and storage errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auction.ErrDepositRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrInvalidState),
		errors.Is(err, scraper.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Internal errors are logged and
// hidden from the client.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.WithError(err).
			WithField("path", r.URL.Path).
			WithField("trace_id", traceID(r)).
			Error("request failed")
		err = errors.New("internal error")
	}
	writeError(w, status, err)
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, service.Invalid("%s must be an integer", name)
	}
	return v, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, service.Invalid("%s must be a number", name)
	}
	return v, nil
}

// queryList accepts repeated parameters and comma separated values.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
