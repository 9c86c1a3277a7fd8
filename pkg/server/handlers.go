package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"mercator-hq/policyd/pkg/policy"
	"mercator-hq/policyd/pkg/policy/loader"
	"mercator-hq/policyd/pkg/policy/store"
)

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// replaceResponse is returned by a successful PUT /v1/policies.
type replaceResponse struct {
	Applied  int            `json:"applied"`
	Snapshot store.Snapshot `json:"snapshot"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

type policyHandlers struct {
	store        store.Store
	maxBodyBytes int64
	logger       *slog.Logger
}

func (h *policyHandlers) list(w http.ResponseWriter, r *http.Request) {
	policies, err := h.store.ReadPolicies(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read policies", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (h *policyHandlers) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read snapshot", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *policyHandlers) replace(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	policies, err := loader.DecodePolicies(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: err.Error(),
			Kind:  policy.KindOf(err).String(),
		})
		return
	}

	applied, snap, err := store.Replace(r.Context(), h.store, policies)
	if err != nil {
		code := http.StatusServiceUnavailable
		var serr *store.Error
		if errors.As(err, &serr) && serr.Cause == nil {
			// The store refused the set itself (empty or duplicate ids).
			code = http.StatusUnprocessableEntity
		}
		h.logger.WarnContext(r.Context(), "policy replacement rejected",
			"count", len(policies),
			"error", err,
		)
		writeJSON(w, code, errorResponse{
			Error: err.Error(),
			Kind:  policy.KindStoreApplyFailure.String(),
		})
		return
	}

	h.logger.InfoContext(r.Context(), "policies replaced",
		"count", len(applied),
		"revision", snap.Revision,
	)
	writeJSON(w, http.StatusOK, replaceResponse{Applied: len(applied), Snapshot: snap})
}
