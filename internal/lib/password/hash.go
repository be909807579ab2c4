// Package password реализует хранение учетных данных: bcrypt-хэширование
// и проверку пароля с поддержкой легаси-паролей, сохраненных открытым
// текстом до внедрения хэширования.
//
// У учетных данных два состояния — легаси и хэшированные — и один
// необратимый переход: после успешной проверки легаси-пароля вызывающий
// обязан немедленно перехэшировать и сохранить его.
package password

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GetHash принимает пароль пользователя и возвращает его bcrypt-хэш.
// Открытый текст никогда не сохраняется.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// IsHashed сообщает, хранятся ли учетные данные в хэшированном виде.
// Распознавание по префиксу bcrypt-формата.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// Verify сравнивает сохраненные учетные данные с введенным паролем.
//
// Для хэшированных данных — константное по времени сравнение bcrypt,
// поврежденный хэш считается несовпадением, а не ошибкой. Для
// легаси-данных — прямое сравнение; при совпадении legacy = true,
// и вызывающий обязан перехэшировать пароль (однократная прозрачная
// миграция). Неверный пароль никогда не возвращается ошибкой.
func Verify(stored, candidate string) (matched, legacy bool) {
	if IsHashed(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate))
		return err == nil, false
	}
	if len(stored) == 0 {
		return false, false
	}
	equal := subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
	return equal, equal
}
