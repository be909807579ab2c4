// Package contacts ведет справочник контрагентов владельца —
// покупателей и поставщиков — с шифрованием телефона и поиском
// по слепому индексу.
package contacts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/identity-guard/internal/models"
	"github.com/magabrotheeeer/identity-guard/internal/services/protect"
)

// PartyRepository описывает операции хранилища над контрагентами.
type PartyRepository interface {
	// CreateParty сохраняет контрагента и возвращает его идентификатор.
	CreateParty(ctx context.Context, party models.Party) (int64, error)

	// FindPartyByPhoneIndex ищет контрагента владельца по слепому индексу телефона.
	FindPartyByPhoneIndex(ctx context.Context, ownerUID, kind, digest string) (*models.Party, error)
}

// Service реализует операции над контрагентами.
type Service struct {
	repo  PartyRepository
	vault *protect.Vault
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo PartyRepository, vault *protect.Vault, log *slog.Logger) *Service {
	return &Service{repo: repo, vault: vault, log: log}
}

// Create добавляет контрагента. Телефон шифруется, слепой индекс
// обеспечивает уникальность в пределах владельца и вида контрагента.
// Повторный телефон — models.ErrDuplicateIdentity.
func (s *Service) Create(ctx context.Context, ownerUID, kind, name, phone string) (models.DisplayParty, error) {
	const op = "contacts.Create"

	sealed, err := s.vault.Seal(phone)
	if err != nil {
		return models.DisplayParty{}, fmt.Errorf("%s: %w", op, err)
	}

	party := models.Party{
		OwnerUID:   ownerUID,
		Kind:       kind,
		Name:       name,
		Phone:      sealed.Ciphertext,
		PhoneIndex: sealed.Index,
	}
	id, err := s.repo.CreateParty(ctx, party)
	if err != nil {
		return models.DisplayParty{}, err
	}
	party.ID = id

	s.log.Info("party created",
		slog.String("owner_uid", ownerUID),
		slog.String("kind", kind),
		slog.Int64("id", id))
	return s.vault.DisplayParty(&party), nil
}

// FindByPhone ищет контрагента по открытому значению телефона через
// слепой индекс. Отсутствие совпадения — models.ErrNotFound.
func (s *Service) FindByPhone(ctx context.Context, ownerUID, kind, phone string) (models.DisplayParty, error) {
	party, err := s.repo.FindPartyByPhoneIndex(ctx, ownerUID, kind, s.vault.Index(phone))
	if err != nil {
		return models.DisplayParty{}, err
	}
	return s.vault.DisplayParty(party), nil
}
