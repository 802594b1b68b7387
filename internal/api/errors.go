package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/auth"
	"github.com/sells-group/dealdesk/internal/dcf"
	"github.com/sells-group/dealdesk/internal/negotiation"
	"github.com/sells-group/dealdesk/internal/research"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
)

// Error codes returned in the "code" field.
const (
	CodeInvalidInput    = "invalid_input"
	CodeParseFailed     = "parse_failed"
	CodeAuthRequired    = "auth_required"
	CodeAuthInvalid     = "auth_invalid"
	CodeQuotaExhausted  = "quota_exhausted"
	CodeExternalSend    = "external_send_blocked"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeRateLimited     = "rate_limited"
	CodeUpstream        = "upstream_unavailable"
	CodeAIFailed        = "ai_failed"
	CodeNotConfigured   = "not_configured"
	CodeInternal        = "internal"
	CodeTooManyRequests = "too_many_requests"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Field     string `json:"field,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describe(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

// describe maps a service error to an HTTP status and body.
func describe(err error) (int, ErrorResponse) {
	var (
		dcfInvalid      *dcf.ValidationError
		negInvalid      *negotiation.ValidationError
		researchInvalid *research.ValidationError
		tickerMissing   *research.NotFoundError
	)

	switch {
	case errors.As(err, &dcfInvalid):
		return http.StatusBadRequest, ErrorResponse{Error: dcfInvalid.Error(), Code: CodeInvalidInput, Field: dcfInvalid.Field}
	case errors.As(err, &negInvalid):
		return http.StatusBadRequest, ErrorResponse{Error: negInvalid.Message, Code: CodeInvalidInput, Field: negInvalid.Field}
	case errors.As(err, &researchInvalid):
		return http.StatusBadRequest, ErrorResponse{Error: researchInvalid.Message, Code: CodeInvalidInput, Field: researchInvalid.Field}
	case eris.Is(err, dcf.ErrMissingInput):
		return http.StatusBadRequest, ErrorResponse{Error: dcf.ErrMissingInput.Error(), Code: CodeInvalidInput}
	case eris.Is(err, dcf.ErrNoRows):
		return http.StatusBadRequest, ErrorResponse{Error: dcf.ErrNoRows.Error(), Code: CodeParseFailed}
	case eris.Is(err, errBadBody):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: CodeInvalidInput}

	case eris.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, ErrorResponse{Error: auth.ErrMissingToken.Error(), Code: CodeAuthRequired}
	case eris.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, ErrorResponse{Error: auth.ErrInvalidToken.Error(), Code: CodeAuthInvalid}

	case eris.Is(err, research.ErrQuotaExhausted):
		zero := 0
		return http.StatusForbidden, ErrorResponse{Error: research.ErrQuotaExhausted.Error(), Code: CodeQuotaExhausted, Remaining: &zero}
	case eris.Is(err, negotiation.ErrExternalSend):
		return http.StatusForbidden, ErrorResponse{Error: negotiation.ErrExternalSend.Error(), Code: CodeExternalSend}

	case eris.Is(err, negotiation.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: negotiation.ErrNotFound.Error(), Code: CodeNotFound}
	case errors.As(err, &tickerMissing):
		return http.StatusNotFound, ErrorResponse{Error: tickerMissing.Error(), Code: CodeNotFound}
	case eris.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Not found", Code: CodeNotFound}

	case eris.Is(err, negotiation.ErrInvalidTransition):
		return http.StatusConflict, ErrorResponse{Error: "Action is not allowed in the negotiation's current state", Code: CodeConflict}
	case eris.Is(err, negotiation.ErrStaleRevision), eris.Is(err, store.ErrRevisionConflict):
		return http.StatusConflict, ErrorResponse{Error: "Revision is not current. Reload and try again.", Code: CodeConflict}
	case eris.Is(err, store.ErrUsageConflict):
		return http.StatusConflict, ErrorResponse{Error: "Failed to update usage quota. Please try again.", Code: CodeConflict}

	case eris.Is(err, research.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: research.ErrRateLimited.Error(), Code: CodeRateLimited}
	case eris.Is(err, research.ErrParse):
		return http.StatusBadGateway, ErrorResponse{Error: research.ErrParse.Error(), Code: CodeAIFailed}
	case eris.Is(err, research.ErrEmptyResponse):
		return http.StatusBadGateway, ErrorResponse{Error: research.ErrEmptyResponse.Error(), Code: CodeAIFailed}
	case eris.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Upstream service unavailable. Please try again later.", Code: CodeUpstream}
	case eris.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable, ErrorResponse{Error: errNotConfigured.Error(), Code: CodeNotConfigured}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: CodeInternal}
}
