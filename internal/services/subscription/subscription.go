// Package subscription реализует жизненный цикл подписки: ленивую
// проверку истечения пробного периода и обработку событий платежного
// провайдера с идемпотентной активацией.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/metrics"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// Результаты обработки webhook-события.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
)

// AccountRepository описывает операции хранилища, нужные жизненному
// циклу подписки. Все переходы статусов — условные обновления:
// проверка и запись выполняются одним оператором.
type AccountRepository interface {
	// GetAccount возвращает учетную запись по uid.
	GetAccount(ctx context.Context, uid string) (*models.Account, error)

	// GetAccountByEmail возвращает учетную запись по email.
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// MarkTrialExpired переводит trial в pending, если срок вышел.
	// Возвращает true, если переход выполнила именно эта попытка.
	MarkTrialExpired(ctx context.Context, uid string, now time.Time) (bool, error)

	// ActivateSubscription переводит любую неактивную подписку в active.
	// Возвращает true, если переход выполнила именно эта попытка.
	ActivateSubscription(ctx context.Context, uid string, nextBilling time.Time) (bool, error)

	// DowngradeSubscription безусловно выставляет заданный статус.
	DowngradeSubscription(ctx context.Context, uid, status string) error

	// AppendInvoice добавляет счет. Возвращает false, если счет с тем же
	// внешним идентификатором платежа уже записан.
	AppendInvoice(ctx context.Context, inv models.Invoice) (bool, error)

	// ListInvoices возвращает счета учетной записи в порядке добавления.
	ListInvoices(ctx context.Context, accountUID string) ([]*models.Invoice, error)
}

// Notifier публикует биллинговые уведомления для отправки почтой.
type Notifier interface {
	PublishBillingNotice(notice models.BillingNotice) error
}

// DisplayCache сбрасывает кешированное внешнее представление учетной
// записи. Любая смена статуса подписки обязана сбросить кеш, иначе
// профиль до истечения TTL показывает уже неверный статус.
type DisplayCache interface {
	InvalidateDisplayAccount(uid string) error
}

// Service реализует операции жизненного цикла подписки.
type Service struct {
	repo          AccountRepository
	notifier      Notifier
	cache         DisplayCache
	log           *slog.Logger
	metrics       *metrics.Metrics
	billingPeriod time.Duration
	now           func() time.Time
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, notifier Notifier, cache DisplayCache, log *slog.Logger, m *metrics.Metrics, billingPeriod time.Duration) *Service {
	return &Service{
		repo:          repo,
		notifier:      notifier,
		cache:         cache,
		log:           log,
		metrics:       m,
		billingPeriod: billingPeriod,
		now:           time.Now,
	}
}

// invalidateDisplay сбрасывает кеш после смены статуса. Ошибка кеша не
// отменяет уже выполненный переход — запись просто доживет до TTL.
func (s *Service) invalidateDisplay(uid string) {
	if err := s.cache.InvalidateDisplayAccount(uid); err != nil {
		s.log.Warn("failed to invalidate display cache",
			slog.String("uid", uid), sl.Err(err))
	}
}

// EnforceTrial проверяет пробный период учетной записи на каждом
// аутентифицированном обращении и лениво переводит просроченный trial
// в pending. Возвращает актуальный статус подписки. Переход выполняется
// условным обновлением: проигранная гонка означает, что статус уже
// сменил кто-то другой, поэтому запись перечитывается.
func (s *Service) EnforceTrial(ctx context.Context, uid string) (string, error) {
	const op = "subscription.EnforceTrial"

	acc, err := s.repo.GetAccount(ctx, uid)
	if err != nil {
		return "", err
	}
	if acc.SubscriptionStatus != models.StatusTrial || acc.TrialEndDate == nil {
		return acc.SubscriptionStatus, nil
	}

	now := s.now().UTC()
	if !now.After(*acc.TrialEndDate) {
		return models.StatusTrial, nil
	}

	flipped, err := s.repo.MarkTrialExpired(ctx, acc.UID, now)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !flipped {
		fresh, err := s.repo.GetAccount(ctx, uid)
		if err != nil {
			return "", err
		}
		return fresh.SubscriptionStatus, nil
	}

	s.log.Info("trial expired", slog.String("uid", acc.UID))
	s.invalidateDisplay(acc.UID)
	notice := models.BillingNotice{
		Email: acc.Email,
		Kind:  models.NoticeTrialExpired,
	}
	if err := s.notifier.PublishBillingNotice(notice); err != nil {
		s.log.Error("failed to publish trial notice", sl.Err(err))
	}
	return models.StatusPending, nil
}

// HandleEvent применяет событие платежного провайдера к учетной записи,
// сопоставленной по email. Обработка идемпотентна: повторная доставка
// события об оплате для уже активной подписки — no-op, счет
// дедуплицируется по внешнему идентификатору платежа. Неизвестный
// email отклоняется без каких-либо изменений.
func (s *Service) HandleEvent(ctx context.Context, event models.SubscriptionEvent) (string, error) {
	const op = "subscription.HandleEvent"

	acc, err := s.repo.GetAccountByEmail(ctx, event.CustomerEmail)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			s.log.Warn("webhook for unknown customer", slog.String("email", event.CustomerEmail))
			s.metrics.IncrementOutcome(OutcomeRejected)
			return OutcomeRejected, models.ErrUnknownWebhookSubject
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	switch event.Type {
	case models.EventPaymentSucceeded:
		return s.applyPayment(ctx, acc, event)
	case models.EventPaymentPending:
		return s.downgrade(ctx, acc, models.StatusPending)
	case models.EventPaymentCanceled, models.EventPaymentRefunded:
		return s.downgrade(ctx, acc, models.StatusCanceled)
	default:
		s.log.Warn("unsupported event type", slog.String("type", event.Type))
		s.metrics.IncrementOutcome(OutcomeNoop)
		return OutcomeNoop, nil
	}
}

func (s *Service) applyPayment(ctx context.Context, acc *models.Account, event models.SubscriptionEvent) (string, error) {
	const op = "subscription.applyPayment"

	if acc.SubscriptionStatus == models.StatusActive {
		s.log.Info("subscription already active, skipping",
			slog.String("uid", acc.UID),
			slog.String("external_id", event.ExternalPaymentID))
		s.metrics.IncrementOutcome(OutcomeNoop)
		return OutcomeNoop, nil
	}

	now := s.now().UTC()
	activated, err := s.repo.ActivateSubscription(ctx, acc.UID, now.Add(s.billingPeriod))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !activated {
		// конкурентная доставка того же события уже активировала подписку
		s.metrics.IncrementOutcome(OutcomeNoop)
		return OutcomeNoop, nil
	}
	s.invalidateDisplay(acc.UID)

	inv := models.Invoice{
		AccountUID:    acc.UID,
		ExternalID:    event.ExternalPaymentID,
		IssuedAt:      now,
		Amount:        event.Amount,
		Currency:      event.Currency,
		Status:        models.InvoicePaid,
		PaymentMethod: event.PaymentMethod,
		ReceiptURL:    event.ReceiptURL,
	}
	inserted, err := s.repo.AppendInvoice(ctx, inv)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		s.log.Info("invoice already recorded", slog.String("external_id", event.ExternalPaymentID))
	}

	notice := models.BillingNotice{
		Email:      acc.Email,
		Kind:       models.NoticeInvoicePaid,
		ExternalID: event.ExternalPaymentID,
		Amount:     event.Amount,
		Currency:   event.Currency,
	}
	if err := s.notifier.PublishBillingNotice(notice); err != nil {
		s.log.Error("failed to publish invoice notice", sl.Err(err))
	}

	s.log.Info("subscription activated",
		slog.String("uid", acc.UID),
		slog.String("external_id", event.ExternalPaymentID))
	s.metrics.IncrementOutcome(OutcomeApplied)
	return OutcomeApplied, nil
}

func (s *Service) downgrade(ctx context.Context, acc *models.Account, status string) (string, error) {
	const op = "subscription.downgrade"

	if acc.SubscriptionStatus == status {
		s.metrics.IncrementOutcome(OutcomeNoop)
		return OutcomeNoop, nil
	}
	if err := s.repo.DowngradeSubscription(ctx, acc.UID, status); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateDisplay(acc.UID)
	s.log.Info("subscription downgraded",
		slog.String("uid", acc.UID),
		slog.String("status", status))
	s.metrics.IncrementOutcome(OutcomeApplied)
	return OutcomeApplied, nil
}

// ListInvoices возвращает историю счетов учетной записи.
func (s *Service) ListInvoices(ctx context.Context, accountUID string) ([]*models.Invoice, error) {
	return s.repo.ListInvoices(ctx, accountUID)
}
