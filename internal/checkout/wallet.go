package checkout

import "sync"

// WalletStatus is the result reported back to the device wallet sheet.
type WalletStatus string

const (
	WalletSuccess WalletStatus = "success"
	WalletFail    WalletStatus = "fail"
)

// WalletEvent is one payment authorised in a device wallet. The wallet sheet
// stays open until Complete is called, which may happen exactly once.
type WalletEvent struct {
	PaymentMethod string
	PayerEmail    string

	mu       sync.Mutex
	done     bool
	status   WalletStatus
	complete func(WalletStatus)
}

// NewWalletEvent creates an event. complete is called with the final status.
func NewWalletEvent(paymentMethod, payerEmail string, complete func(WalletStatus)) *WalletEvent {
	return &WalletEvent{
		PaymentMethod: paymentMethod,
		PayerEmail:    payerEmail,
		complete:      complete,
	}
}

// Complete closes the wallet sheet with status.
func (e *WalletEvent) Complete(status WalletStatus) error {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()

		return ErrWalletAlreadyCompleted
	}
	e.done = true
	e.status = status
	e.mu.Unlock()

	if e.complete != nil {
		e.complete(status)
	}

	return nil
}

// Completed returns the status the event was completed with, if any.
func (e *WalletEvent) Completed() (WalletStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.status, e.done
}
