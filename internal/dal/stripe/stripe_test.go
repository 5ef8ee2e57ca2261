package stripe

import (
	"errors"
	"testing"

	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	stripego "github.com/stripe/stripe-go/v74"
)

func TestIntentIDFromSecret(t *testing.T) {
	assert.Equal(t, "pi_123", IntentIDFromSecret("pi_123_secret_abc"))
	assert.Equal(t, "pi_123", IntentIDFromSecret("pi_123"))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(18999), toMinorUnits(decimal.RequireFromString("189.99")))
	assert.Equal(t, int64(1000), toMinorUnits(decimal.RequireFromString("10")))
}

func TestConvertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want payment.ErrorKind
	}{
		{
			name: "card declined",
			err:  &stripego.Error{Type: "card_error", Code: "card_declined", Msg: "Your card was declined."},
			want: payment.KindDecline,
		},
		{
			name: "bad card number",
			err:  &stripego.Error{Type: "card_error", Code: "incorrect_number", Msg: "Your card number is incorrect."},
			want: payment.KindValidation,
		},
		{
			name: "already refunded",
			err:  &stripego.Error{Type: "invalid_request_error", Code: "charge_already_refunded"},
			want: payment.KindConflict,
		},
		{
			name: "bad api key",
			err:  &stripego.Error{Type: "invalid_request_error", HTTPStatusCode: 401},
			want: payment.KindAuthentication,
		},
		{
			name: "transport failure",
			err:  errors.New("dial tcp: i/o timeout"),
			want: payment.KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := convertError(tt.err)
			assert.Equal(t, tt.want, payment.KindOf(err))
		})
	}
}
