// Package events publishes pool ledger changes to live subscribers: browser
// clients over WebSocket and downstream consumers over NATS JetStream.
//
// Publishing is fire-and-forget. A slow or absent subscriber never blocks
// a deposit or trade; the ledger in the store stays the source of truth.
package events

import "time"

// Event types.
const (
	TypeUserRegistered          = "user_registered"
	TypePoolInitialized         = "pool_initialized"
	TypeDepositRecorded         = "deposit_recorded"
	TypeTradeExecuted           = "trade_executed"
	TypeWithdrawalRecorded      = "withdrawal_recorded"
	TypeAllocationsRecalculated = "allocations_recalculated"
	TypeTraderStateSaved        = "trader_state_saved"
)

// Event is a JSON message describing one ledger change. Decimal values are
// carried as strings to keep full precision on the wire.
type Event struct {
	Type        string    `json:"type"`
	ID          string    `json:"id,omitempty"`
	Wallet      string    `json:"wallet,omitempty"`
	Asset       string    `json:"asset,omitempty"`
	Direction   string    `json:"direction,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Price       string    `json:"price,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	TxRef       string    `json:"tx_ref,omitempty"`
	Shares      string    `json:"shares,omitempty"`
	NAV         string    `json:"nav,omitempty"`
	TotalShares string    `json:"total_shares,omitempty"`
	Users       int       `json:"users,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notifier receives ledger events. Notify must not block.
type Notifier interface {
	Notify(evt Event)
}

// Fanout delivers every event to each of its notifiers in order.
type Fanout []Notifier

// Notify implements Notifier.
func (f Fanout) Notify(evt Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(evt)
		}
	}
}

// Nop discards events.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Event) {}
