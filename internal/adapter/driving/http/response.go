package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
)

// CreateCredentialRequest is the request body for creating a credential.
type CreateCredentialRequest struct {
	Label  string `json:"label"`
	Secret string `json:"secret"`
	Notes  string `json:"notes"`
	Tier   string `json:"tier,omitempty"`
}

// ImportCredentialRequest is the request body for importing a bare token.
type ImportCredentialRequest struct {
	Secret string `json:"secret"`
	Notes  string `json:"notes"`
}

// UpdateCredentialRequest is the request body for partial edits. Absent
// fields are left untouched.
type UpdateCredentialRequest struct {
	Label  *string `json:"label"`
	Secret *string `json:"secret"`
	Notes  *string `json:"notes"`
}

// CredentialResponse is the API view of a credential. The secret never
// appears here.
type CredentialResponse struct {
	ID             int64  `json:"id"`
	OwnerID        int64  `json:"ownerId"`
	Label          string `json:"label"`
	Tier           string `json:"tier"`
	Status         string `json:"status"`
	Notes          string `json:"notes"`
	LastVerifiedAt string `json:"lastVerifiedAt,omitempty"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

// OutcomeResponse is the API view of a single verification outcome.
type OutcomeResponse struct {
	Valid         bool   `json:"valid"`
	Tier          string `json:"tier,omitempty"`
	Status        string `json:"status,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	ObservedEmail string `json:"observedEmail,omitempty"`
	ObservedName  string `json:"observedName,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

// BatchItemResponse is one entry of a batch verification report.
type BatchItemResponse struct {
	CredentialID int64  `json:"credentialId"`
	Label        string `json:"label"`
	Success      bool   `json:"success"`
	Tier         string `json:"tier,omitempty"`
	Status       string `json:"status,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// BatchReportResponse is the full batch verification report.
type BatchReportResponse struct {
	Items    []BatchItemResponse `json:"items"`
	Verified int                 `json:"verified"`
	Failed   int                 `json:"failed"`
}

// ImportResponse pairs the stored credential with its inline verification
// outcome.
type ImportResponse struct {
	Credential CredentialResponse `json:"credential"`
	Outcome    OutcomeResponse    `json:"outcome"`
}

// RevealResponse carries the plaintext secret.
type RevealResponse struct {
	Secret string `json:"secret"`
}

// AccountDetailResponse wraps the remote's raw account metadata.
type AccountDetailResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toCredentialResponse(cred model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:             cred.ID,
		OwnerID:        cred.OwnerID,
		Label:          cred.Label,
		Tier:           string(cred.Tier),
		Status:         string(cred.Status),
		Notes:          cred.Notes,
		LastVerifiedAt: formatOptionalTime(cred.LastVerifiedAt),
		ExpiresAt:      formatOptionalTime(cred.ExpiresAt),
		CreatedAt:      cred.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      cred.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toOutcomeResponse(o model.VerificationOutcome) OutcomeResponse {
	return OutcomeResponse{
		Valid:         o.Valid,
		Tier:          string(o.Tier),
		Status:        string(o.Status),
		ErrorKind:     o.ErrorKind,
		ErrorMessage:  o.ErrorMessage,
		ObservedEmail: o.ObservedEmail,
		ObservedName:  o.ObservedName,
		ExpiresAt:     formatOptionalTime(o.ExpiresAt),
	}
}

func toBatchReportResponse(report model.BatchReport) BatchReportResponse {
	items := make([]BatchItemResponse, 0, len(report.Items))
	for _, item := range report.Items {
		items = append(items, BatchItemResponse{
			CredentialID: item.CredentialID,
			Label:        item.Label,
			Success:      item.Success,
			Tier:         string(item.Tier),
			Status:       string(item.Status),
			ErrorMessage: item.ErrorMessage,
		})
	}
	return BatchReportResponse{
		Items:    items,
		Verified: report.Verified,
		Failed:   report.Failed,
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
