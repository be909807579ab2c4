package models

import "time"

// Статусы счета.
const (
	InvoicePaid    = "paid"
	InvoicePending = "pending"
	InvoiceExpired = "expired"
)

// Invoice представляет неизменяемую запись об оплате в реестре
// учетной записи. ExternalID — идентификатор платежа на стороне
// платежного шлюза, уникален в рамках одной учетной записи.
type Invoice struct {
	ID            int64     `json:"id"`
	AccountUID    string    `json:"account_uid"`
	ExternalID    string    `json:"external_id"`
	IssuedAt      time.Time `json:"issued_at"`
	Amount        int64     `json:"amount"` // сумма в минорных единицах валюты
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	ReceiptURL    string    `json:"receipt_url,omitempty"`
}
