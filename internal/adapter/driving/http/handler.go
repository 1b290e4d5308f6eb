// Package httphandler is the HTTP driving adapter serving the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ericfisherdev/sessionwatch/internal/application"
	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
	"github.com/ericfisherdev/sessionwatch/internal/domain/port/driven"
)

// ownerHeader names the trusted header carrying the authenticated owner id.
// An authenticating reverse proxy is expected to set it; requests without
// it are rejected.
const ownerHeader = "X-Owner-ID"

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	store     driven.CredentialStore
	verifySvc *application.VerifyService
	probe     driven.SessionProbe
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	store driven.CredentialStore,
	verifySvc *application.VerifyService,
	probe driven.SessionProbe,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:     store,
		verifySvc: verifySvc,
		probe:     probe,
		logger:    logger,
	}
}

// RegisterAPIRoutes registers all API routes on the given mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("POST /api/v1/credentials", h.CreateCredential)
	mux.HandleFunc("POST /api/v1/credentials/import", h.ImportCredential)
	mux.HandleFunc("POST /api/v1/credentials/verify", h.VerifyAll)
	mux.HandleFunc("GET /api/v1/credentials/{id}", h.GetCredential)
	mux.HandleFunc("PATCH /api/v1/credentials/{id}", h.UpdateCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.DeleteCredential)
	mux.HandleFunc("GET /api/v1/credentials/{id}/secret", h.RevealSecret)
	mux.HandleFunc("GET /api/v1/credentials/{id}/detail", h.AccountDetail)
	mux.HandleFunc("POST /api/v1/credentials/{id}/verify", h.VerifyCredential)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// ApplyMiddleware wraps the handler with logging and recovery middleware.
func ApplyMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// ListCredentials returns all credentials owned by the caller, secrets
// omitted.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	creds, err := h.store.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.storeError(w, "list credentials", err)
		return
	}

	resp := make([]CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		resp = append(resp, toCredentialResponse(cred))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateCredential stores a new credential. Status always starts inactive;
// banned and expired can only ever be written by verification.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var req CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Label) == "" || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "label and secret are required")
		return
	}

	tier := model.TierFree
	if req.Tier != "" {
		tier = model.Tier(req.Tier)
		if !model.ValidTier(tier) {
			writeError(w, http.StatusBadRequest, "invalid tier")
			return
		}
	}

	cred, err := h.store.Create(r.Context(), model.Credential{
		OwnerID: ownerID,
		Label:   req.Label,
		Secret:  req.Secret,
		Tier:    tier,
		Status:  model.StatusInactive,
		Notes:   req.Notes,
	})
	if err != nil {
		h.storeError(w, "create credential", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// ImportCredential creates a credential from a bare session token,
// verifying it inline and backfilling the label from the remote account.
func (h *Handler) ImportCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var req ImportCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, "secret is required")
		return
	}

	cred, outcome, err := h.verifySvc.ImportToken(r.Context(), ownerID, req.Secret, req.Notes)
	if err != nil {
		h.storeError(w, "import credential", err)
		return
	}

	writeJSON(w, http.StatusCreated, ImportResponse{
		Credential: toCredentialResponse(cred),
		Outcome:    toOutcomeResponse(outcome),
	})
}

// GetCredential returns a single credential by id, secret omitted.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	cred, err := h.store.GetByID(r.Context(), ownerID, id)
	if err != nil {
		h.storeError(w, "get credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// UpdateCredential applies a partial edit to label, secret, or notes. Tier
// and status are owned by reconciliation and cannot be set here.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	var req UpdateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := driven.CredentialPatch{
		Label:  req.Label,
		Secret: req.Secret,
		Notes:  req.Notes,
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	cred, err := h.store.Update(r.Context(), ownerID, id, patch)
	if err != nil {
		h.storeError(w, "update credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// DeleteCredential removes a credential.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), ownerID, id); err != nil {
		h.storeError(w, "delete credential", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevealSecret returns the plaintext secret. This is the only endpoint that
// ever echoes it.
func (h *Handler) RevealSecret(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	cred, err := h.store.GetByID(r.Context(), ownerID, id)
	if err != nil {
		h.storeError(w, "reveal secret", err)
		return
	}

	writeJSON(w, http.StatusOK, RevealResponse{Secret: cred.Secret})
}

// AccountDetail proxies the remote's raw account metadata for one
// credential.
func (h *Handler) AccountDetail(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	cred, err := h.store.GetByID(r.Context(), ownerID, id)
	if err != nil {
		h.storeError(w, "account detail", err)
		return
	}

	detail, err := h.probe.FetchAccountDetail(r.Context(), cred.Secret)
	if err != nil {
		h.logger.Error("account detail fetch failed", "credential", id, "error", err)
		writeError(w, http.StatusBadGateway, "could not fetch account detail from remote")
		return
	}

	writeJSON(w, http.StatusOK, AccountDetailResponse{Detail: detail})
}

// VerifyCredential runs a single verification pass for one credential and
// returns the outcome. Rejected credentials and transport failures are
// still 200s: the outcome payload carries the failure.
func (h *Handler) VerifyCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	outcome, err := h.verifySvc.VerifyOne(r.Context(), ownerID, id)
	if err != nil {
		h.storeError(w, "verify credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(outcome))
}

// VerifyAll runs a batch verification over every credential the caller
// owns and returns the full report.
func (h *Handler) VerifyAll(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	report, err := h.verifySvc.VerifyAll(r.Context(), ownerID)
	if err != nil {
		h.storeError(w, "verify all credentials", err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchReportResponse(report))
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ownerID extracts and validates the owner id header; on failure it writes
// the error response and returns ok=false.
func (h *Handler) ownerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(ownerHeader)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing owner header")
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid owner header")
		return 0, false
	}

	return id, true
}

// credentialID extracts the {id} path value; on failure it writes the error
// response and returns ok=false.
func (h *Handler) credentialID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid credential id")
		return 0, false
	}
	return id, true
}

// storeError maps persistence-layer errors onto HTTP responses.
func (h *Handler) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, driven.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, "credential storage is not configured")
	default:
		h.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
