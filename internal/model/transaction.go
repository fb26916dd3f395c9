package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus tracks the payment state of a transaction.
type TransactionStatus string

const (
	TxCompleted TransactionStatus = "completed"
	TxVoided    TransactionStatus = "voided"
	TxRefunded  TransactionStatus = "refunded"
	TxPending   TransactionStatus = "pending"
)

// Reversed reports whether s is a final status that a later write of
// an earlier status must not overwrite.
func (s TransactionStatus) Reversed() bool {
	return s == TxVoided || s == TxRefunded
}

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PayCash     PaymentMethod = "cash"
	PayCard     PaymentMethod = "card"
	PayQR       PaymentMethod = "qr"
	PayPlatform PaymentMethod = "delivery_platform"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayQR, PayPlatform:
		return true
	}
	return false
}

// Transaction is the priced record of an order used for reporting.
// A void or refund produces a second transaction with a negated Amount
// and CompensatesID pointing at the original.
//
// Fields:
//
//	ID            – uuid of the transaction.
//	OrderID       – order this transaction pays for.
//	OrderNumber   – human readable order number, copied for reports.
//	Source        – where the order was entered.
//	Amount        – signed total; negative for compensating entries.
//	PaymentMethod – cash, card, qr or delivery_platform.
//	Status        – completed, voided, refunded or pending.
//	Lines         – priced order lines.
//	CompensatesID – original transaction reversed by this one.
//	CreatedAt     – when the transaction was recorded.
type Transaction struct {
	ID            string            `json:"id"`
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	Source        OrderSource       `json:"source"`
	Amount        decimal.Decimal   `json:"amount"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Status        TransactionStatus `json:"status"`
	Lines         []OrderLine       `json:"lines"`
	CompensatesID string            `json:"compensates_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsCompensation reports whether t reverses another transaction.
func (t Transaction) IsCompensation() bool { return t.CompensatesID != "" }
