package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/corray333/backend-labs/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/storefront/internal/service/services/paymentsvc"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

var errorStatuses = []struct {
	err    error
	status int
}{
	{iorderrepo.ErrNotFound, http.StatusNotFound},

	{ordersvc.ErrOrderCancelled, http.StatusConflict},
	{ordersvc.ErrAlreadyRefunded, http.StatusConflict},
	{paymentsvc.ErrAlreadyCaptured, http.StatusConflict},
	{paymentsvc.ErrAlreadyRecorded, http.StatusConflict},

	{ordersvc.ErrMissingPaymentInfo, http.StatusUnprocessableEntity},
	{ordersvc.ErrNoCapturableCharge, http.StatusUnprocessableEntity},
	{ordersvc.ErrNotShipped, http.StatusUnprocessableEntity},
	{ordersvc.ErrMissingTrackingCode, http.StatusUnprocessableEntity},
	{ordersvc.ErrMissingRecipient, http.StatusUnprocessableEntity},
	{paymentsvc.ErrPaymentNotConfirmed, http.StatusUnprocessableEntity},
	{paymentsvc.ErrAmountMismatch, http.StatusUnprocessableEntity},
	{paymentsvc.ErrProductUnavailable, http.StatusUnprocessableEntity},

	{order.ErrInvalidStatus, http.StatusBadRequest},
	{ordersvc.ErrPaymentMismatch, http.StatusBadRequest},
	{ordersvc.ErrEmptyOrder, http.StatusBadRequest},
	{paymentsvc.ErrUnknownProduct, http.StatusBadRequest},
	{paymentsvc.ErrCurrencyMismatch, http.StatusBadRequest},
	{paymentsvc.ErrInvalidCoupon, http.StatusBadRequest},
	{paymentsvc.ErrUnknownAddress, http.StatusBadRequest},
	{paymentsvc.ErrUnsupportedProvider, http.StatusBadRequest},

	{paymentsvc.ErrProviderUnavailable, http.StatusServiceUnavailable},
	{ordersvc.ErrRefundUnavailable, http.StatusServiceUnavailable},
	{ordersvc.ErrNotifierUnavailable, http.StatusServiceUnavailable},
}

type errorBody struct {
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

// Message writes a JSON error body.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Message: msg})
}

// StatusOf returns the HTTP status for a service error.
func StatusOf(err error) int {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			return es.status
		}
	}

	return http.StatusInternalServerError
}

// Error writes err with its mapped status. Internal errors are logged and hidden.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		Message(w, status, "internal server error")

		return
	}

	Message(w, status, err.Error())
}

// Decode reads a JSON body into v and validates it.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		Message(w, http.StatusBadRequest, "failed to decode request body")
		slog.Warn("Error decoding request body", "path", r.URL.Path, "error", err)

		return false
	}

	if err := validate.Struct(v); err != nil {
		Message(w, http.StatusBadRequest, validationMessage(err))

		return false
	}

	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}

	return "invalid request: " + strings.Join(parts, ", ")
}
