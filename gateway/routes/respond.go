package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"lmstaker/crypto"
	"lmstaker/gateway/middleware"
	"lmstaker/native/staker"
)

const requestLimit = 1 << 20 // 1 MiB

var (
	errCallerRequired = errors.New("caller identity required")
	errInvalidLimit   = errors.New("limit must be a non-negative integer")
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func decodeJSON(r *http.Request, out interface{}) error {
	body := io.LimitReader(r.Body, requestLimit)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeEngineError maps the engine error taxonomy onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	kind := staker.Kind(err)
	writeJSON(w, statusForError(err), errorResponse{Error: err.Error(), Kind: kind})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, staker.ErrIncentiveNotFound),
		errors.Is(err, staker.ErrDepositNotFound),
		errors.Is(err, staker.ErrStakeNotFound),
		errors.Is(err, staker.ErrRewardAccountAbsent):
		return http.StatusNotFound
	}
	switch staker.Kind(err) {
	case "schedule", "precondition":
		return http.StatusUnprocessableEntity
	case "state":
		return http.StatusConflict
	case "unauthorized":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func requireCaller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errCallerRequired.Error()})
		return caller, false
	}
	return caller, true
}

func addressParam(r *http.Request, name string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return addr, fmt.Errorf("invalid %s: %w", name, err)
	}
	return addr, nil
}

func idParam(r *http.Request) ([32]byte, error) {
	return staker.ParseID(chi.URLParam(r, "id"))
}

func parseAddressField(name, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, fmt.Errorf("invalid %s: %w", name, err)
	}
	return addr, nil
}

func parseAmount(name, value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return amount, nil
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
