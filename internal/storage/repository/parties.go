package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// CreateParty сохраняет контрагента с уже зашифрованным телефоном и его
// слепым индексом. Коллизия индекса в рамках владельца и вида
// возвращает models.ErrDuplicateIdentity.
func (s *Storage) CreateParty(ctx context.Context, p models.Party) (int64, error) {
	const op = "storage.CreateParty"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO parties (owner_uid, kind, name, phone_encrypted, phone_bidx)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		p.OwnerUID, p.Kind, p.Name, nullIfEmpty(p.Phone), nullIfEmpty(p.PhoneIndex)).Scan(&newID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, models.ErrDuplicateIdentity
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindPartyByPhoneIndex ищет контрагента владельца по слепому индексу
// телефона. Единственный поддерживаемый режим поиска по зашифрованному
// полю — равенство индексов.
func (s *Storage) FindPartyByPhoneIndex(ctx context.Context, ownerUID, kind, digest string) (*models.Party, error) {
	const op = "storage.FindPartyByPhoneIndex"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, owner_uid, kind, name, phone_encrypted, phone_bidx, created_at
			  FROM parties
			  WHERE owner_uid = $1 AND kind = $2 AND phone_bidx = $3`
	p := &models.Party{}
	var phone, phoneIdx sql.NullString
	err := s.DB.QueryRowContext(ctx, query, ownerUID, kind, digest).
		Scan(&p.ID, &p.OwnerUID, &p.Kind, &p.Name, &phone, &phoneIdx, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Phone = phone.String
	p.PhoneIndex = phoneIdx.String
	return p, nil
}
