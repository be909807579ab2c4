package models

import "errors"

// Общие ошибки бизнес-уровня. Сравниваются через errors.Is,
// на HTTP-уровне превращаются в коды ответов.
var (
	// ErrDuplicateIdentity — email, телефон или налоговый идентификатор
	// уже зарегистрированы (коллизия по уникальному или слепому индексу).
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrInvalidCredentials — неверный пароль или неизвестный email.
	// Наружу всегда уходит одной и той же ошибкой, чтобы не допустить
	// перебор учетных записей.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotFound — учетная запись не найдена по идентификатору.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotFound — запись (контрагент, счет) не найдена.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownWebhookSubject — событие шлюза не сопоставлено ни с одной
	// учетной записью. Отклоняется явно, доставка может быть повторена.
	ErrUnknownWebhookSubject = errors.New("no account matches webhook subject")

	// ErrStaleWrite — условное обновление не прошло из-за конкурентного
	// изменения записи. Вызывающий повторяет операцию целиком.
	ErrStaleWrite = errors.New("conflicting concurrent update")
)
