package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/identity-guard/internal/models"
)

const accountColumns = `uid, email, password_credential,
			      phone_encrypted, phone_bidx, tax_id_encrypted, tax_id_bidx,
			      subscription_status, trial_end_date, next_billing_date,
			      version, created_at`

// CreateAccount сохраняет новую учетную запись и возвращает её в
// записанном виде: версия и дата создания берутся из базы, а не
// выдумываются на стороне клиента. Коллизия по email или по слепому
// индексу телефона/налогового идентификатора возвращает
// models.ErrDuplicateIdentity.
func (s *Storage) CreateAccount(ctx context.Context, acc models.Account) (models.Account, error) {
	const op = "storage.CreateAccount"
	select {
	case <-ctx.Done():
		return models.Account{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (uid, email, password_credential,
			      phone_encrypted, phone_bidx, tax_id_encrypted, tax_id_bidx,
			      subscription_status, trial_end_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING uid, version, created_at;`
	if err := s.DB.QueryRowContext(ctx, query,
		acc.UID, acc.Email, acc.PasswordCredential,
		nullIfEmpty(acc.Phone), nullIfEmpty(acc.PhoneIndex),
		nullIfEmpty(acc.TaxID), nullIfEmpty(acc.TaxIDIndex),
		acc.SubscriptionStatus, acc.TrialEndDate).Scan(&acc.UID, &acc.Version, &acc.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, models.ErrDuplicateIdentity
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	return acc, nil
}

// GetAccountByEmail возвращает учетную запись по email без учета регистра.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE LOWER(email) = LOWER($1)`
	return s.scanAccount(s.DB.QueryRowContext(ctx, query, email), op)
}

// GetAccount возвращает учетную запись по её uid.
func (s *Storage) GetAccount(ctx context.Context, uid string) (*models.Account, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE uid = $1`
	return s.scanAccount(s.DB.QueryRowContext(ctx, query, uid), op)
}

// FindAccountByPhoneIndex ищет учетную запись по слепому индексу телефона.
func (s *Storage) FindAccountByPhoneIndex(ctx context.Context, digest string) (*models.Account, error) {
	return s.findAccountByIndex(ctx, "phone_bidx", digest)
}

// FindAccountByTaxIDIndex ищет учетную запись по слепому индексу
// налогового идентификатора.
func (s *Storage) FindAccountByTaxIDIndex(ctx context.Context, digest string) (*models.Account, error) {
	return s.findAccountByIndex(ctx, "tax_id_bidx", digest)
}

func (s *Storage) findAccountByIndex(ctx context.Context, column, digest string) (*models.Account, error) {
	const op = "storage.FindAccountByIndex"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  WHERE ` + column + ` = $1`
	return s.scanAccount(s.DB.QueryRowContext(ctx, query, digest), op)
}

// UpdatePasswordCredential заменяет учетные данные условно: строка
// обновляется, только если в ней всё ещё хранится expected. Нулевое
// число затронутых строк означает конкурентное изменение.
func (s *Storage) UpdatePasswordCredential(ctx context.Context, uid, expected, credential string) error {
	const op = "storage.UpdatePasswordCredential"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET password_credential = $1,
			      version = version + 1
			  WHERE uid = $2 AND password_credential = $3`
	res, err := s.DB.ExecContext(ctx, query, credential, uid, expected)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return models.ErrStaleWrite
	}
	return nil
}

// UpdateContactFields записывает шифротексты и слепые индексы контактных
// полей одним условным обновлением по версии записи. Конкурентное
// изменение возвращает models.ErrStaleWrite, коллизия слепого индекса —
// models.ErrDuplicateIdentity.
func (s *Storage) UpdateContactFields(ctx context.Context, acc *models.Account) error {
	const op = "storage.UpdateContactFields"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET phone_encrypted = $1,
			      phone_bidx = $2,
			      tax_id_encrypted = $3,
			      tax_id_bidx = $4,
			      version = version + 1
			  WHERE uid = $5 AND version = $6`
	res, err := s.DB.ExecContext(ctx, query,
		nullIfEmpty(acc.Phone), nullIfEmpty(acc.PhoneIndex),
		nullIfEmpty(acc.TaxID), nullIfEmpty(acc.TaxIDIndex),
		acc.UID, acc.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateIdentity
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return models.ErrStaleWrite
	}
	return nil
}

// MarkTrialExpired переводит учетную запись из trial в pending, если
// пробный период истек к моменту now. Возвращает true, если переход
// произошел именно в этом вызове: предикат по статусу и дате делает
// проверку-и-запись одним атомарным условным обновлением.
func (s *Storage) MarkTrialExpired(ctx context.Context, uid string, now time.Time) (bool, error) {
	const op = "storage.MarkTrialExpired"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET subscription_status = $1,
			      version = version + 1
			  WHERE uid = $2
			    AND subscription_status = $3
			    AND trial_end_date IS NOT NULL
			    AND trial_end_date < $4`
	res, err := s.DB.ExecContext(ctx, query, models.StatusPending, uid, models.StatusTrial, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

// ActivateSubscription переводит учетную запись в active, выставляет дату
// следующего списания и очищает дату пробного периода. Уже активная
// запись не затрагивается (возвращается false) — на этом построена
// идемпотентность webhook-обработчика.
func (s *Storage) ActivateSubscription(ctx context.Context, uid string, nextBilling time.Time) (bool, error) {
	const op = "storage.ActivateSubscription"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET subscription_status = $1,
			      next_billing_date = $2,
			      trial_end_date = NULL,
			      version = version + 1
			  WHERE uid = $3 AND subscription_status <> $1`
	res, err := s.DB.ExecContext(ctx, query, models.StatusActive, nextBilling, uid)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

// DowngradeSubscription переводит учетную запись в pending или canceled
// по событию шлюза. Повторное применение того же статуса безвредно.
func (s *Storage) DowngradeSubscription(ctx context.Context, uid, status string) error {
	const op = "storage.DowngradeSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET subscription_status = $1,
			      version = version + 1
			  WHERE uid = $2 AND subscription_status <> $1`
	if _, err := s.DB.ExecContext(ctx, query, status, uid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) scanAccount(row *sql.Row, op string) (*models.Account, error) {
	acc := &models.Account{}
	var phone, phoneIdx, taxID, taxIDIdx sql.NullString
	var trialEndDate, nextBillingDate sql.NullTime
	if err := row.Scan(&acc.UID, &acc.Email, &acc.PasswordCredential,
		&phone, &phoneIdx, &taxID, &taxIDIdx,
		&acc.SubscriptionStatus, &trialEndDate, &nextBillingDate,
		&acc.Version, &acc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	acc.Phone = phone.String
	acc.PhoneIndex = phoneIdx.String
	acc.TaxID = taxID.String
	acc.TaxIDIndex = taxIDIdx.String
	if trialEndDate.Valid {
		acc.TrialEndDate = &trialEndDate.Time
	}
	if nextBillingDate.Valid {
		acc.NextBillingDate = &nextBillingDate.Time
	}
	return acc, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
