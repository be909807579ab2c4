// Package protect реализует прозрачную защиту чувствительных полей:
// шифрование при записи, расшифровку при чтении и поддержание слепых
// индексов. Все сущности с защищаемыми полями (учетная запись,
// контрагенты) проходят через этот слой, а не шифруют поля сами.
package protect

import (
	"log/slog"

	"github.com/magabrotheeeer/identity-guard/internal/lib/fieldcrypt"
	"github.com/magabrotheeeer/identity-guard/internal/metrics"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// Vault шифрует и расшифровывает поля через fieldcrypt и решает, как
// реагировать на сбой расшифровки: по умолчанию поле деградирует до
// null с записью в лог, при включенной тревоге целостности сбой
// дополнительно попадает в счетчик prometheus.
type Vault struct {
	codec          *fieldcrypt.Codec
	log            *slog.Logger
	metrics        *metrics.Metrics
	integrityAlarm bool
}

// NewVault создает новый экземпляр Vault.
func NewVault(codec *fieldcrypt.Codec, log *slog.Logger, m *metrics.Metrics, integrityAlarm bool) *Vault {
	return &Vault{
		codec:          codec,
		log:            log,
		metrics:        m,
		integrityAlarm: integrityAlarm,
	}
}

// SealedField — пара «шифротекст + слепой индекс», которая хранится
// вместо открытого значения.
type SealedField struct {
	Ciphertext string
	Index      string
}

// Seal шифрует открытый текст и считает его слепой индекс. Пустое
// значение остается пустым: отсутствующее поле не шифруется.
func (v *Vault) Seal(plaintext string) (SealedField, error) {
	ciphertext, err := v.codec.Encrypt(plaintext)
	if err != nil {
		return SealedField{}, err
	}
	return SealedField{
		Ciphertext: ciphertext,
		Index:      v.codec.BlindIndex(plaintext),
	}, nil
}

// Changed сообщает, отличается ли новый открытый текст от значения,
// которое уже хранится. Сравнение идет по расшифрованному значению —
// без него каждое обновление профиля перешифровывало бы поле заново,
// а легаси-значение сравнивается как есть. Нерасшифровываемое хранимое
// значение считается измененным, чтобы запись его вылечила.
func (v *Vault) Changed(plaintext, stored string) bool {
	if stored == "" {
		return plaintext != ""
	}
	current, kind := v.codec.Decrypt(stored)
	if kind == fieldcrypt.KindFailed {
		return true
	}
	return plaintext != current
}

// Index возвращает слепой индекс нормализованного открытого текста.
// Единственная опора для поиска и проверки уникальности по
// зашифрованным полям.
func (v *Vault) Index(plaintext string) string {
	return v.codec.BlindIndex(plaintext)
}

// Reveal расшифровывает хранимое значение для выдачи наружу.
// Легаси-значение возвращается как есть, сбой расшифровки деградирует
// до nil и логируется, но никогда не роняет чтение целиком.
func (v *Vault) Reveal(field, stored string) *string {
	if stored == "" {
		return nil
	}
	plaintext, kind := v.codec.Decrypt(stored)
	switch kind {
	case fieldcrypt.KindFailed:
		v.log.Error("field decryption failed",
			slog.String("field", field))
		if v.integrityAlarm {
			v.metrics.IncrementDecryptFailure(field)
		}
		return nil
	default:
		return &plaintext
	}
}

// DisplayAccount строит внешнее представление учетной записи:
// чувствительные поля расшифрованы, слепые индексы и учетные данные
// отброшены.
func (v *Vault) DisplayAccount(acc *models.Account) models.DisplayAccount {
	return models.DisplayAccount{
		UID:                acc.UID,
		Email:              acc.Email,
		Phone:              v.Reveal("phone", acc.Phone),
		TaxID:              v.Reveal("tax_id", acc.TaxID),
		SubscriptionStatus: acc.SubscriptionStatus,
		TrialEndDate:       acc.TrialEndDate,
		NextBillingDate:    acc.NextBillingDate,
		CreatedAt:          acc.CreatedAt,
	}
}

// DisplayParty строит внешнее представление контрагента.
func (v *Vault) DisplayParty(p *models.Party) models.DisplayParty {
	return models.DisplayParty{
		ID:        p.ID,
		Kind:      p.Kind,
		Name:      p.Name,
		Phone:     v.Reveal("phone", p.Phone),
		CreatedAt: p.CreatedAt,
	}
}

// VerifyRoundTrip проверяет, что хранимое значение расшифровывается
// обратно в ожидаемый открытый текст. Используется там, где нужна
// строгая корректность, различающая легаси, успех и сбой.
func (v *Vault) VerifyRoundTrip(plaintext, stored string) (fieldcrypt.Kind, bool) {
	got, kind := v.codec.Decrypt(stored)
	return kind, kind == fieldcrypt.KindDecrypted && got == plaintext
}
