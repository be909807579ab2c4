package subscription_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/identity-guard/internal/models"
	"github.com/magabrotheeeer/identity-guard/internal/services/subscription"
)

// Мок для AccountRepository
type AccountRepoMock struct {
	mock.Mock
}

func (m *AccountRepoMock) GetAccount(ctx context.Context, uid string) (*models.Account, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *AccountRepoMock) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *AccountRepoMock) MarkTrialExpired(ctx context.Context, uid string, now time.Time) (bool, error) {
	args := m.Called(ctx, uid, now)
	return args.Bool(0), args.Error(1)
}

func (m *AccountRepoMock) ActivateSubscription(ctx context.Context, uid string, nextBilling time.Time) (bool, error) {
	args := m.Called(ctx, uid, nextBilling)
	return args.Bool(0), args.Error(1)
}

func (m *AccountRepoMock) DowngradeSubscription(ctx context.Context, uid, status string) error {
	args := m.Called(ctx, uid, status)
	return args.Error(0)
}

func (m *AccountRepoMock) AppendInvoice(ctx context.Context, inv models.Invoice) (bool, error) {
	args := m.Called(ctx, inv)
	return args.Bool(0), args.Error(1)
}

func (m *AccountRepoMock) ListInvoices(ctx context.Context, accountUID string) ([]*models.Invoice, error) {
	args := m.Called(ctx, accountUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

// Мок для Notifier
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) PublishBillingNotice(notice models.BillingNotice) error {
	args := m.Called(notice)
	return args.Error(0)
}

// Мок для DisplayCache
type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) InvalidateDisplayAccount(uid string) error {
	args := m.Called(uid)
	return args.Error(0)
}

func newTestService(repo *AccountRepoMock, notifier *NotifierMock, cache *CacheMock) *subscription.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return subscription.New(repo, notifier, cache, log, nil, 30*24*time.Hour)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestSubscriptionService_EnforceTrial(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	tests := []struct {
		name       string
		setupMocks func(r *AccountRepoMock, n *NotifierMock, c *CacheMock)
		wantStatus string
		wantErr    bool
	}{
		{
			name: "active account passes through",
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccount", mock.Anything, "uid-1").Return(&models.Account{
					UID:                "uid-1",
					SubscriptionStatus: models.StatusActive,
				}, nil).Once()
			},
			wantStatus: models.StatusActive,
		},
		{
			name: "trial still running is not touched",
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccount", mock.Anything, "uid-1").Return(&models.Account{
					UID:                "uid-1",
					SubscriptionStatus: models.StatusTrial,
					TrialEndDate:       timePtr(future),
				}, nil).Once()
			},
			wantStatus: models.StatusTrial,
		},
		{
			name: "expired trial flips to pending and notifies",
			setupMocks: func(r *AccountRepoMock, n *NotifierMock, c *CacheMock) {
				r.On("GetAccount", mock.Anything, "uid-1").Return(&models.Account{
					UID:                "uid-1",
					Email:              "owner@example.com",
					SubscriptionStatus: models.StatusTrial,
					TrialEndDate:       timePtr(past),
				}, nil).Once()
				r.On("MarkTrialExpired", mock.Anything, "uid-1", mock.Anything).Return(true, nil).Once()
				c.On("InvalidateDisplayAccount", "uid-1").Return(nil).Once()
				n.On("PublishBillingNotice", mock.MatchedBy(func(notice models.BillingNotice) bool {
					return notice.Email == "owner@example.com" && notice.Kind == models.NoticeTrialExpired
				})).Return(nil).Once()
			},
			wantStatus: models.StatusPending,
		},
		{
			name: "lost flip race rereads the record",
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccount", mock.Anything, "uid-1").Return(&models.Account{
					UID:                "uid-1",
					SubscriptionStatus: models.StatusTrial,
					TrialEndDate:       timePtr(past),
				}, nil).Once()
				r.On("MarkTrialExpired", mock.Anything, "uid-1", mock.Anything).Return(false, nil).Once()
				r.On("GetAccount", mock.Anything, "uid-1").Return(&models.Account{
					UID:                "uid-1",
					SubscriptionStatus: models.StatusActive,
				}, nil).Once()
			},
			wantStatus: models.StatusActive,
		},
		{
			name: "unknown account",
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccount", mock.Anything, "uid-1").Return(nil, models.ErrAccountNotFound).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(AccountRepoMock)
			notifier := new(NotifierMock)
			cache := new(CacheMock)
			svc := newTestService(repo, notifier, cache)

			tt.setupMocks(repo, notifier, cache)

			status, err := svc.EnforceTrial(context.Background(), "uid-1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantStatus, status)
			}

			repo.AssertExpectations(t)
			notifier.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestSubscriptionService_HandleEvent(t *testing.T) {
	pendingAccount := func() *models.Account {
		return &models.Account{
			UID:                "uid-1",
			Email:              "owner@example.com",
			SubscriptionStatus: models.StatusPending,
		}
	}
	activeAccount := func() *models.Account {
		return &models.Account{
			UID:                "uid-1",
			Email:              "owner@example.com",
			SubscriptionStatus: models.StatusActive,
		}
	}
	paidEvent := models.SubscriptionEvent{
		Type:              models.EventPaymentSucceeded,
		CustomerEmail:     "owner@example.com",
		ExternalPaymentID: "pay-123",
		Amount:            49900,
		Currency:          "RUB",
		PaymentMethod:     "bank_card",
	}

	tests := []struct {
		name        string
		event       models.SubscriptionEvent
		setupMocks  func(r *AccountRepoMock, n *NotifierMock, c *CacheMock)
		wantOutcome string
		wantErr     error
	}{
		{
			name:  "payment activates pending subscription",
			event: paidEvent,
			setupMocks: func(r *AccountRepoMock, n *NotifierMock, c *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "owner@example.com").Return(pendingAccount(), nil).Once()
				r.On("ActivateSubscription", mock.Anything, "uid-1", mock.Anything).Return(true, nil).Once()
				c.On("InvalidateDisplayAccount", "uid-1").Return(nil).Once()
				r.On("AppendInvoice", mock.Anything, mock.MatchedBy(func(inv models.Invoice) bool {
					return inv.ExternalID == "pay-123" &&
						inv.Status == models.InvoicePaid &&
						inv.Amount == int64(49900)
				})).Return(true, nil).Once()
				n.On("PublishBillingNotice", mock.MatchedBy(func(notice models.BillingNotice) bool {
					return notice.Kind == models.NoticeInvoicePaid && notice.ExternalID == "pay-123"
				})).Return(nil).Once()
			},
			wantOutcome: subscription.OutcomeApplied,
		},
		{
			name:  "redelivery for active subscription is a noop",
			event: paidEvent,
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "owner@example.com").Return(activeAccount(), nil).Once()
			},
			wantOutcome: subscription.OutcomeNoop,
		},
		{
			name:  "concurrent activation loses the race gracefully",
			event: paidEvent,
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "owner@example.com").Return(pendingAccount(), nil).Once()
				r.On("ActivateSubscription", mock.Anything, "uid-1", mock.Anything).Return(false, nil).Once()
			},
			wantOutcome: subscription.OutcomeNoop,
		},
		{
			name:  "duplicate invoice does not fail the event",
			event: paidEvent,
			setupMocks: func(r *AccountRepoMock, n *NotifierMock, c *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "owner@example.com").Return(pendingAccount(), nil).Once()
				r.On("ActivateSubscription", mock.Anything, "uid-1", mock.Anything).Return(true, nil).Once()
				c.On("InvalidateDisplayAccount", "uid-1").Return(nil).Once()
				r.On("AppendInvoice", mock.Anything, mock.Anything).Return(false, nil).Once()
				n.On("PublishBillingNotice", mock.Anything).Return(nil).Once()
			},
			wantOutcome: subscription.OutcomeApplied,
		},
		{
			name: "unknown email is rejected",
			event: models.SubscriptionEvent{
				Type:          models.EventPaymentSucceeded,
				CustomerEmail: "stranger@example.com",
			},
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "stranger@example.com").
					Return(nil, models.ErrAccountNotFound).Once()
			},
			wantOutcome: subscription.OutcomeRejected,
			wantErr:     models.ErrUnknownWebhookSubject,
		},
		{
			name: "cancellation downgrades and drops the cached view",
			event: models.SubscriptionEvent{
				Type:          models.EventPaymentCanceled,
				CustomerEmail: "owner@example.com",
			},
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, c *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "owner@example.com").Return(activeAccount(), nil).Once()
				r.On("DowngradeSubscription", mock.Anything, "uid-1", models.StatusCanceled).Return(nil).Once()
				c.On("InvalidateDisplayAccount", "uid-1").Return(nil).Once()
			},
			wantOutcome: subscription.OutcomeApplied,
		},
		{
			name: "cache failure does not undo the transition",
			event: models.SubscriptionEvent{
				Type:          models.EventPaymentCanceled,
				CustomerEmail: "owner@example.com",
			},
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, c *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "owner@example.com").Return(activeAccount(), nil).Once()
				r.On("DowngradeSubscription", mock.Anything, "uid-1", models.StatusCanceled).Return(nil).Once()
				c.On("InvalidateDisplayAccount", "uid-1").Return(errors.New("redis down")).Once()
			},
			wantOutcome: subscription.OutcomeApplied,
		},
		{
			name: "unsupported event type is ignored",
			event: models.SubscriptionEvent{
				Type:          "payment.unknown",
				CustomerEmail: "owner@example.com",
			},
			setupMocks: func(r *AccountRepoMock, _ *NotifierMock, _ *CacheMock) {
				r.On("GetAccountByEmail", mock.Anything, "owner@example.com").Return(activeAccount(), nil).Once()
			},
			wantOutcome: subscription.OutcomeNoop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(AccountRepoMock)
			notifier := new(NotifierMock)
			cache := new(CacheMock)
			svc := newTestService(repo, notifier, cache)

			tt.setupMocks(repo, notifier, cache)

			outcome, err := svc.HandleEvent(context.Background(), tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantOutcome, outcome)

			repo.AssertExpectations(t)
			notifier.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}
