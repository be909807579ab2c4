// Package fieldcrypt реализует симметричное шифрование чувствительных полей
// (AES-256-CBC, случайный IV на каждую запись) и детерминированный слепой
// индекс для поиска по равенству без расшифровки.
//
// Формат хранения шифротекста: hex(iv):hex(ciphertext). Значения без
// разделителя или с не-hex содержимым считаются легаси-данными, записанными
// до включения шифрования, и возвращаются как есть.
package fieldcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Kind описывает исход расшифровки сохраненного значения.
type Kind int

const (
	// KindLegacy — значение не похоже на шифротекст, это легаси-данные.
	KindLegacy Kind = iota
	// KindDecrypted — значение успешно расшифровано.
	KindDecrypted
	// KindFailed — значение имеет форму шифротекста, но не расшифровалось
	// (чужой ключ или поврежденные данные).
	KindFailed
)

// ErrBadKey возвращается при отсутствующем или некорректном ключе.
// Приложение обязано отказаться стартовать с такой ошибкой: молчаливое
// сохранение открытого текста недопустимо.
var ErrBadKey = errors.New("fieldcrypt: key must be 64 hex characters (32 bytes)")

// Codec шифрует и расшифровывает поля одним процессным ключом и считает
// слепые индексы отдельным индексным ключом. Иммутабелен после создания,
// безопасен для конкурентного использования.
type Codec struct {
	key      []byte
	indexKey []byte
}

// New создает Codec из hex-ключа шифрования (ровно 32 байта) и индексного
// ключа произвольной длины. Пустой или некорректный ключ — ErrBadKey.
func New(hexKey, indexKey string) (*Codec, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(key) != 32 {
		return nil, ErrBadKey
	}
	if strings.TrimSpace(indexKey) == "" {
		return nil, ErrBadKey
	}
	return &Codec{key: key, indexKey: []byte(indexKey)}, nil
}

// Encrypt шифрует открытый текст со свежим случайным IV и возвращает
// hex(iv):hex(ciphertext). Пустая строка возвращается без изменений,
// чтобы вызывающий не зашифровал отсутствующее значение.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	const op = "fieldcrypt.Encrypt"
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt разбирает сохраненное значение и возвращает результат с тегом:
// легаси-данные отдаются без изменений, неудачная расшифровка возвращает
// исходную непрозрачную строку с KindFailed. Ошибку наружу не поднимает —
// решение о деградации или тревоге принимает вызывающий по Kind.
func (c *Codec) Decrypt(stored string) (string, Kind) {
	iv, ciphertext, ok := splitStored(stored)
	if !ok {
		return stored, KindLegacy
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return stored, KindFailed
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return stored, KindFailed
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return stored, KindFailed
	}
	return string(unpadded), KindDecrypted
}

// BlindIndex считает детерминированный слепой индекс нормализованного
// открытого текста: HMAC-SHA256 индексным ключом, hex. Одинаковый
// нормализованный вход всегда дает одинаковый индекс, независимо от
// процесса и момента вычисления. Пустой вход дает пустой индекс.
func (c *Codec) BlindIndex(plaintext string) string {
	normalized := strings.TrimSpace(plaintext)
	if normalized == "" {
		return ""
	}
	mac := hmac.New(sha256.New, c.indexKey)
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}

// splitStored проверяет форму hex(iv):hex(ct) и декодирует обе части.
func splitStored(stored string) (iv, ciphertext []byte, ok bool) {
	sep := strings.IndexByte(stored, ':')
	if sep < 0 {
		return nil, nil, false
	}
	iv, err := hex.DecodeString(stored[:sep])
	if err != nil || len(iv) != aes.BlockSize {
		return nil, nil, false
	}
	ciphertext, err = hex.DecodeString(stored[sep+1:])
	if err != nil {
		return nil, nil, false
	}
	return iv, ciphertext, true
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
