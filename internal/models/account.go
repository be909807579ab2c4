// Package models содержит доменные структуры учетной записи,
// контрагентов и счетов, а также общие ошибки бизнес-уровня.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// Статусы подписки учетной записи.
const (
	StatusFree     = "free"
	StatusTrial    = "trial"
	StatusActive   = "active"
	StatusPending  = "pending"
	StatusCanceled = "canceled"
)

// Account представляет учетную запись пользователя системы.
//
// Поля Phone и TaxID хранятся в зашифрованном виде (формат hex(iv):hex(ct)),
// рядом с ними лежат слепые индексы PhoneIndex и TaxIDIndex для поиска
// по равенству без расшифровки.
type Account struct {
	UID                string     // Уникальный идентификатор учетной записи
	Email              string     // Электронная почта (уникальная, без учета регистра)
	PasswordCredential string     // Учетные данные: bcrypt-хэш или легаси-пароль до миграции
	Phone              string     // Телефон, шифротекст
	PhoneIndex         string     // Слепой индекс телефона
	TaxID              string     // Налоговый идентификатор, шифротекст
	TaxIDIndex         string     // Слепой индекс налогового идентификатора
	SubscriptionStatus string     // Статус подписки: free, trial, active, pending, canceled
	TrialEndDate       *time.Time // Дата истечения пробного периода
	NextBillingDate    *time.Time // Дата следующего списания
	Version            int64      // Версия записи для условных обновлений
	CreatedAt          time.Time  // Дата регистрации
}

// DisplayAccount — представление учетной записи для выдачи наружу.
// Чувствительные поля расшифрованы, слепые индексы и учетные данные
// никогда сюда не попадают. Не расшифровавшееся поле отдается как null.
type DisplayAccount struct {
	UID                string     `json:"uid"`
	Email              string     `json:"email"`
	Phone              *string    `json:"phone"`
	TaxID              *string    `json:"tax_id"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndDate       *time.Time `json:"trial_end_date,omitempty"`
	NextBillingDate    *time.Time `json:"next_billing_date,omitempty"`
	CreatedAt          time.Time  `json:"member_since"`
}
