package shared

import (
	"errors"
	"net/http"

	"tradepost/internal/transport/http/json"
	dErrors "tradepost/pkg/domain-errors"
)

// WriteError centralizes domain error translation to HTTP responses. It maps
// transport-agnostic domain errors into HTTP status codes and error envelopes.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		json.WriteJSON(w, status, response)
		return
	}

	// Fallback for unexpected errors
	json.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeIncorrectAmount, dErrors.CodeUnderpaid, dErrors.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case dErrors.CodeWrongCapability, dErrors.CodeCapConsumed, dErrors.CodeWrongReceipt, dErrors.CodeExtensionForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound, dErrors.CodeItemNotFound, dErrors.CodeExtensionNotInstalled:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeAlreadyListed, dErrors.CodeNotEmpty:
		return http.StatusConflict
	case dErrors.CodeItemLocked, dErrors.CodeItemListed, dErrors.CodeListedExclusively,
		dErrors.CodeNotListed, dErrors.CodeExtensionDisabled, dErrors.CodeNoTransferPolicy:
		return http.StatusPreconditionFailed
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
