package checkout

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
)

// Category is the buyer-facing class of a checkout failure.
type Category string

const (
	CategoryConfiguration  Category = "configuration"
	CategoryScriptLoad     Category = "script_load"
	CategoryValidation     Category = "validation"
	CategoryDecline        Category = "decline"
	CategoryAuthentication Category = "authentication"
	CategoryNetwork        Category = "network"
	CategoryConflict       Category = "conflict"
	CategoryPrecondition   Category = "precondition"
	CategoryUnknown        Category = "unknown"
)

const (
	msgCreateOrderFailed = "failed to create order"
	msgAlreadyCaptured   = "order already captured"
	msgCancelled         = "payment cancelled"
)

var defaultMessages = map[Category]string{
	CategoryConfiguration:  "this payment method is not available",
	CategoryScriptLoad:     "the payment service failed to load, please reload the page",
	CategoryValidation:     "please check your payment details",
	CategoryDecline:        "your payment was declined, try again or use another payment method",
	CategoryAuthentication: "payment authentication failed, please try again",
	CategoryNetwork:        "network error, please try again",
	CategoryConflict:       msgAlreadyCaptured,
	CategoryPrecondition:   "the order cannot be paid in its current state",
	CategoryUnknown:        "something went wrong, please try again",
}

var (
	ErrPaymentInFlight        = errors.New("a payment is already in progress")
	ErrWalletAlreadyCompleted = errors.New("wallet payment already completed")
	ErrMissingClientID        = errors.New("redirect provider client id is not configured")
	ErrScriptLoad             = errors.New("payment widget did not load")
	ErrAlreadyCaptured        = errors.New(msgAlreadyCaptured)
	ErrBuyerCancelled         = errors.New(msgCancelled)
	ErrNotMounted             = errors.New("payment handler is not mounted")
	ErrTicketRevoked          = errors.New("completion ticket was revoked")
	ErrMethodUnavailable      = errors.New("payment method is not available")
	ErrMissingPaymentInput    = errors.New("missing payment input")
)

// Error is a categorised checkout failure. Message is safe to show to the buyer.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Category) + ": " + e.Message + ": " + e.Err.Error()
	}

	return string(e.Category) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the same method can succeed.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryConfiguration, CategoryConflict, CategoryPrecondition:
		return false
	default:
		return true
	}
}

func newError(c Category, msg string, err error) *Error {
	if msg == "" {
		msg = defaultMessages[c]
	}

	return &Error{Category: c, Message: msg, Err: err}
}

// statusCoder is implemented by backend errors carrying an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// messenger is implemented by backend errors carrying a server message.
type messenger interface {
	ServerMessage() string
}

// Classify converts any error reaching a handler boundary into an *Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, ErrMissingClientID), errors.Is(err, ErrMethodUnavailable):
		return newError(CategoryConfiguration, "", err)
	case errors.Is(err, ErrScriptLoad):
		return newError(CategoryScriptLoad, "", err)
	case errors.Is(err, ErrAlreadyCaptured):
		return newError(CategoryConflict, msgAlreadyCaptured, err)
	case errors.Is(err, ErrPaymentInFlight):
		return newError(CategoryPrecondition, ErrPaymentInFlight.Error(), err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newError(CategoryNetwork, "", err)
	}

	var pe *payment.ProviderError
	if errors.As(err, &pe) {
		return classifyProvider(pe)
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.HTTPStatus(), err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return newError(CategoryNetwork, "", err)
	}

	return newError(CategoryUnknown, "", err)
}

func classifyProvider(pe *payment.ProviderError) *Error {
	switch pe.Kind {
	case payment.KindValidation:
		return newError(CategoryValidation, pe.Message, pe)
	case payment.KindDecline:
		return newError(CategoryDecline, pe.Message, pe)
	case payment.KindAuthentication:
		return newError(CategoryAuthentication, "", pe)
	case payment.KindNetwork:
		return newError(CategoryNetwork, "", pe)
	case payment.KindConflict:
		return newError(CategoryConflict, "", pe)
	case payment.KindNoCharge, payment.KindNotFound:
		return newError(CategoryPrecondition, pe.Message, pe)
	default:
		return newError(CategoryUnknown, "", pe)
	}
}

// classifyStatus keeps the backend's message for order and validation errors.
func classifyStatus(status int, err error) *Error {
	msg := ""
	var m messenger
	if errors.As(err, &m) {
		msg = m.ServerMessage()
	}

	switch {
	case status == http.StatusConflict:
		return newError(CategoryConflict, msg, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(CategoryAuthentication, "", err)
	case status == http.StatusUnprocessableEntity:
		return newError(CategoryPrecondition, msg, err)
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return newError(CategoryValidation, msg, err)
	case status == http.StatusServiceUnavailable:
		return newError(CategoryConfiguration, msg, err)
	default:
		return newError(CategoryNetwork, "", err)
	}
}
