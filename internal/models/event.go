package models

// Типы событий платежного шлюза, которые обрабатывает жизненный цикл подписки.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentPending   = "payment.pending"
	EventPaymentCanceled  = "payment.canceled"
	EventPaymentRefunded  = "payment.refunded"
)

// SubscriptionEvent — уже проверенное и разобранное событие платежного
// шлюза. Подпись сырого тела проверяется на границе (webhook-обработчик),
// сюда событие попадает только после успешной проверки.
type SubscriptionEvent struct {
	Type              string `json:"type"`
	CustomerEmail     string `json:"customer_email"`
	ExternalPaymentID string `json:"external_payment_id"`
	Amount            int64  `json:"amount"` // минорные единицы
	Currency          string `json:"currency"`
	PaymentMethod     string `json:"payment_method"`
	ReceiptURL        string `json:"receipt_url"`
}

// BillingNotice — сообщение для очереди уведомлений: отправляется
// после применения события подписки или истечения пробного периода.
type BillingNotice struct {
	Email      string `json:"email"`
	Kind       string `json:"kind"` // invoice.paid или trial.expired
	ExternalID string `json:"external_id,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

// Виды уведомлений BillingNotice.
const (
	NoticeInvoicePaid  = "invoice.paid"
	NoticeTrialExpired = "trial.expired"
)
