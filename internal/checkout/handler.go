package checkout

import (
	"context"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
)

// Input carries what the buyer entered for the selected method.
// The redirect method needs neither field.
type Input struct {
	Card   *CardForm
	Wallet *WalletEvent
}

// Handler is one payment method. Only a mounted handler accepts Pay, and only
// its ticket can report success.
type Handler interface {
	Method() order.Provider
	Mount(ctx context.Context, ticket *Ticket) error
	Unmount()
	Busy() bool
	Pay(ctx context.Context, in Input) (Outcome, error)
}
