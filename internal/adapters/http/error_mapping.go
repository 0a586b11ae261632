package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrPartialConversion), domain.IsKind(err, domain.ErrPartialTransfer):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrAlreadyConverted):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidState):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorDetails exposes the identifiers a client needs to follow up on a failed conversion.
func errorDetails(err error) map[string]any {
	var converted *domain.AlreadyConvertedError
	if errors.As(err, &converted) {
		return map[string]any{
			"inbox_id":           converted.InboxID,
			"converted_claim_id": converted.ConvertedClaimID,
		}
	}
	var partial *domain.PartialConversionError
	if errors.As(err, &partial) {
		return map[string]any{
			"inbox_id": partial.InboxID,
			"claim_id": partial.ClaimID,
			"step":     partial.Step,
		}
	}
	var transfer *domain.TransferError
	if errors.As(err, &transfer) {
		return map[string]any{
			"inbox_id":         transfer.InboxID,
			"claim_id":         transfer.ClaimID,
			"failed_documents": transfer.Failed,
		}
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if status == http.StatusInternalServerError && errorDetails(err) == nil {
			message = "internal server error"
		}
	}
	writeJSON(w, status, errorBody{
		Message: message,
		Error:   message,
		Details: errorDetails(err),
	})
}
