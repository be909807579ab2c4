package models

import "time"

// Виды контрагентов, у которых шифруются контактные поля.
const (
	PartyCustomer = "customer"
	PartySupplier = "supplier"
)

// Party представляет контрагента (покупателя или поставщика),
// привязанного к учетной записи владельца. Телефон хранится
// зашифрованным со слепым индексом, как и у Account.
type Party struct {
	ID         int64     // Идентификатор записи
	OwnerUID   string    // Учетная запись, которой принадлежит контрагент
	Kind       string    // customer или supplier
	Name       string    // Наименование
	Phone      string    // Телефон, шифротекст
	PhoneIndex string    // Слепой индекс телефона
	CreatedAt  time.Time // Дата создания
}

// DisplayParty — представление контрагента для выдачи наружу,
// телефон расшифрован, слепой индекс скрыт.
type DisplayParty struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
