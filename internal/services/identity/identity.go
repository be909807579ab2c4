// Package identity содержит логику бизнес-уровня для регистрации и
// аутентификации учетных записей, включая прозрачную миграцию
// легаси-паролей и защиту контактных полей.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/identity-guard/internal/lib/jwt"
	"github.com/magabrotheeeer/identity-guard/internal/lib/password"
	"github.com/magabrotheeeer/identity-guard/internal/models"
	"github.com/magabrotheeeer/identity-guard/internal/services/protect"
)

// AccountRepository описывает контракт для работы с учетными записями
// в базе данных.
type AccountRepository interface {
	// CreateAccount сохраняет новую учетную запись и возвращает её в том
	// виде, в котором она записана, включая выставленные базой поля.
	CreateAccount(ctx context.Context, acc models.Account) (models.Account, error)

	// GetAccountByEmail возвращает учетную запись по email или ошибку, если не найдена.
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// GetAccount возвращает учетную запись по uid.
	GetAccount(ctx context.Context, uid string) (*models.Account, error)

	// UpdatePasswordCredential условно заменяет учетные данные.
	UpdatePasswordCredential(ctx context.Context, uid, expected, credential string) error

	// UpdateContactFields условно записывает контактные поля по версии.
	UpdateContactFields(ctx context.Context, acc *models.Account) error

	// FindAccountByTaxIDIndex ищет учетную запись по слепому индексу налогового идентификатора.
	FindAccountByTaxIDIndex(ctx context.Context, digest string) (*models.Account, error)

	// FindAccountByPhoneIndex ищет учетную запись по слепому индексу телефона.
	FindAccountByPhoneIndex(ctx context.Context, digest string) (*models.Account, error)
}

// Lifecycle лениво применяет истечение пробного периода при
// аутентифицированном доступе и возвращает актуальный статус подписки.
type Lifecycle interface {
	EnforceTrial(ctx context.Context, uid string) (string, error)
}

// Service отвечает за регистрацию, авторизацию и выдачу внешнего
// представления учетной записи.
type Service struct {
	repo        AccountRepository
	vault       *protect.Vault
	jwtMaker    jwt.Maker
	lifecycle   Lifecycle
	log         *slog.Logger
	trialWindow time.Duration
	now         func() time.Time
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, vault *protect.Vault, jwtMaker jwt.Maker, lifecycle Lifecycle, log *slog.Logger, trialWindow time.Duration) *Service {
	return &Service{
		repo:        repo,
		vault:       vault,
		jwtMaker:    jwtMaker,
		lifecycle:   lifecycle,
		log:         log,
		trialWindow: trialWindow,
		now:         time.Now,
	}
}

// RegisterRequest — входные данные регистрации с открытыми значениями
// чувствительных полей. Шифрование и хэширование происходят здесь,
// синхронно, до первой записи в хранилище.
type RegisterRequest struct {
	Email    string
	Password string
	Phone    string
	TaxID    string
	FreePlan bool
}

// Register создает новую учетную запись: пароль хэшируется, контактные
// поля шифруются со слепыми индексами, подписка стартует в trial с
// датой истечения (или в free, если так выбрал путь регистрации).
// Коллизия email или слепого индекса — models.ErrDuplicateIdentity.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (models.DisplayAccount, error) {
	const op = "identity.Register"

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return models.DisplayAccount{}, fmt.Errorf("%s: %w", op, err)
	}
	phone, err := s.vault.Seal(req.Phone)
	if err != nil {
		return models.DisplayAccount{}, fmt.Errorf("%s: %w", op, err)
	}
	taxID, err := s.vault.Seal(req.TaxID)
	if err != nil {
		return models.DisplayAccount{}, fmt.Errorf("%s: %w", op, err)
	}

	acc := models.Account{
		UID:                uuid.New().String(),
		Email:              req.Email,
		PasswordCredential: hashed,
		Phone:              phone.Ciphertext,
		PhoneIndex:         phone.Index,
		TaxID:              taxID.Ciphertext,
		TaxIDIndex:         taxID.Index,
		SubscriptionStatus: models.StatusTrial,
	}
	if req.FreePlan {
		acc.SubscriptionStatus = models.StatusFree
	} else {
		trialEnd := s.now().UTC().Add(s.trialWindow)
		acc.TrialEndDate = &trialEnd
	}

	created, err := s.repo.CreateAccount(ctx, acc)
	if err != nil {
		return models.DisplayAccount{}, err
	}
	s.log.Info("account registered", slog.String("uid", created.UID))
	return s.vault.DisplayAccount(&created), nil
}

// LoginResult — результат успешного входа.
type LoginResult struct {
	Token    string
	Account  models.DisplayAccount
	Migrated bool
}

// Login проверяет пароль и выдает JWT. Неизвестный email и неверный
// пароль неразличимы для вызывающего — оба дают ErrInvalidCredentials.
// Легаси-пароль, совпавший при прямом сравнении, немедленно
// перехэшируется и сохраняется условным обновлением; проигранная гонка
// миграции не мешает входу. Вход — аутентифицированное обращение,
// поэтому просроченный trial переводится в pending прямо здесь, и в
// ответе виден уже актуальный статус подписки.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (LoginResult, error) {
	const op = "identity.Login"

	acc, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return LoginResult{}, models.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	matched, legacy := password.Verify(acc.PasswordCredential, rawPassword)
	if !matched {
		return LoginResult{}, models.ErrInvalidCredentials
	}

	migrated := false
	if legacy {
		hashed, err := password.GetHash(rawPassword)
		if err != nil {
			return LoginResult{}, fmt.Errorf("%s: %w", op, err)
		}
		err = s.repo.UpdatePasswordCredential(ctx, acc.UID, acc.PasswordCredential, hashed)
		switch {
		case err == nil:
			migrated = true
			s.log.Info("legacy password migrated", slog.String("uid", acc.UID))
		case errors.Is(err, models.ErrStaleWrite):
			// учетные данные уже изменены конкурентно, вход продолжается
			s.log.Warn("lost password migration race", slog.String("uid", acc.UID))
		default:
			return LoginResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	status, err := s.lifecycle.EnforceTrial(ctx, acc.UID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	acc.SubscriptionStatus = status

	token, err := s.jwtMaker.GenerateToken(acc.Email, acc.UID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return LoginResult{
		Token:    token,
		Account:  s.vault.DisplayAccount(acc),
		Migrated: migrated,
	}, nil
}

// GetDisplayView возвращает внешнее представление учетной записи:
// без учетных данных и слепых индексов, с расшифрованными контактами.
func (s *Service) GetDisplayView(ctx context.Context, uid string) (models.DisplayAccount, error) {
	acc, err := s.repo.GetAccount(ctx, uid)
	if err != nil {
		return models.DisplayAccount{}, err
	}
	return s.vault.DisplayAccount(acc), nil
}

// UpdateContacts перезаписывает контактные поля учетной записи.
// Неизмененное значение не перешифровывается; если не изменилось ни
// одно поле, запись в хранилище не выполняется. Конкурентное изменение
// возвращает models.ErrStaleWrite — вызывающий повторяет операцию.
func (s *Service) UpdateContacts(ctx context.Context, uid, phone, taxID string) (models.DisplayAccount, error) {
	const op = "identity.UpdateContacts"

	acc, err := s.repo.GetAccount(ctx, uid)
	if err != nil {
		return models.DisplayAccount{}, err
	}

	changed := false
	if s.vault.Changed(phone, acc.Phone) {
		sealed, err := s.vault.Seal(phone)
		if err != nil {
			return models.DisplayAccount{}, fmt.Errorf("%s: %w", op, err)
		}
		acc.Phone, acc.PhoneIndex = sealed.Ciphertext, sealed.Index
		changed = true
	}
	if s.vault.Changed(taxID, acc.TaxID) {
		sealed, err := s.vault.Seal(taxID)
		if err != nil {
			return models.DisplayAccount{}, fmt.Errorf("%s: %w", op, err)
		}
		acc.TaxID, acc.TaxIDIndex = sealed.Ciphertext, sealed.Index
		changed = true
	}
	if !changed {
		return s.vault.DisplayAccount(acc), nil
	}

	if err := s.repo.UpdateContactFields(ctx, acc); err != nil {
		return models.DisplayAccount{}, err
	}
	s.log.Info("contact fields updated", slog.String("uid", uid))
	return s.vault.DisplayAccount(acc), nil
}

// FindByTaxID ищет учетную запись по открытому значению налогового
// идентификатора через слепой индекс, без расшифровки хранимых данных.
func (s *Service) FindByTaxID(ctx context.Context, taxID string) (models.DisplayAccount, error) {
	acc, err := s.repo.FindAccountByTaxIDIndex(ctx, s.vault.Index(taxID))
	if err != nil {
		return models.DisplayAccount{}, err
	}
	return s.vault.DisplayAccount(acc), nil
}

// FindByPhone ищет учетную запись по открытому значению телефона.
func (s *Service) FindByPhone(ctx context.Context, phone string) (models.DisplayAccount, error) {
	acc, err := s.repo.FindAccountByPhoneIndex(ctx, s.vault.Index(phone))
	if err != nil {
		return models.DisplayAccount{}, err
	}
	return s.vault.DisplayAccount(acc), nil
}
