package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// AppendInvoice добавляет счет в реестр учетной записи. Внешний
// идентификатор платежа служит естественным ключом дедупликации:
// повторная доставка того же события не создает дубликат, вставка
// тогда возвращает false.
func (s *Storage) AppendInvoice(ctx context.Context, inv models.Invoice) (bool, error) {
	const op = "storage.AppendInvoice"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO invoices (account_uid, external_id, issued_at, amount,
			      currency, status, payment_method, receipt_url)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (account_uid, external_id) DO NOTHING
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		inv.AccountUID, inv.ExternalID, inv.IssuedAt, inv.Amount,
		inv.Currency, inv.Status, inv.PaymentMethod, nullIfEmpty(inv.ReceiptURL)).Scan(&newID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// ListInvoices возвращает реестр счетов учетной записи в порядке добавления.
func (s *Storage) ListInvoices(ctx context.Context, accountUID string) ([]*models.Invoice, error) {
	const op = "storage.ListInvoices"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, external_id, issued_at, amount,
			      currency, status, payment_method, receipt_url
			  FROM invoices
			  WHERE account_uid = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, accountUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Invoice
	for rows.Next() {
		var inv models.Invoice
		var receiptURL sql.NullString
		if err := rows.Scan(&inv.ID, &inv.AccountUID, &inv.ExternalID, &inv.IssuedAt,
			&inv.Amount, &inv.Currency, &inv.Status, &inv.PaymentMethod, &receiptURL); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		inv.ReceiptURL = receiptURL.String
		result = append(result, &inv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
