package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeTransaction       = "TRANSACTION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
)

type ErrorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse maps a service error onto its status code and body.
func errorResponse(err error) (int, ErrorBody) {
	var (
		ve *orders.ValidationError
		nf *orders.NotFoundError
		is *orders.InsufficientStockError
		pe *orders.PermissionError
		it *orders.InvalidTransitionError
	)
	body := ErrorBody{Message: err.Error()}
	switch {
	case errors.As(err, &ve):
		body.Error = CodeValidation
		body.Details = map[string]any{"field": ve.Field, "reason": ve.Reason}
		return http.StatusBadRequest, body
	case errors.As(err, &nf):
		body.Error = CodeNotFound
		body.Details = map[string]any{"entity": nf.Entity, "id": nf.ID}
		return http.StatusNotFound, body
	case errors.As(err, &is):
		body.Error = CodeInsufficientStock
		body.Details = map[string]any{
			"productId":   is.ProductID,
			"productName": is.ProductName,
			"requested":   is.Requested,
			"available":   is.Available,
		}
		return http.StatusBadRequest, body
	case errors.As(err, &pe):
		body.Error = CodeForbidden
		body.Details = map[string]any{"actor": pe.Actor, "action": pe.Action}
		return http.StatusForbidden, body
	case errors.As(err, &it):
		body.Error = CodeInvalidTransition
		body.Details = map[string]any{"from": it.From, "to": it.To}
		return http.StatusBadRequest, body
	default:
		body.Error = CodeTransaction
		body.Message = "the operation could not be completed; nothing was changed, retry later"
		return http.StatusInternalServerError, body
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, body := errorResponse(err)
	writeJSON(w, code, body)
}
