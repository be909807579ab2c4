package sender

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/identity-guard/internal/lib/smtp"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func noticeBody(t *testing.T, notice models.BillingNotice) []byte {
	t.Helper()
	body, err := json.Marshal(notice)
	require.NoError(t, err)
	return body
}

func TestSenderService_SendBillingNotice(t *testing.T) {
	paidNotice := models.BillingNotice{
		Email:      "owner@example.com",
		Kind:       models.NoticeInvoicePaid,
		ExternalID: "pay-123",
		Amount:     49900,
		Currency:   "RUB",
	}
	trialNotice := models.BillingNotice{
		Email: "owner@example.com",
		Kind:  models.NoticeTrialExpired,
	}

	happyPathMocks := func(transport *MockTransport) {
		mockClient := new(MockSMTPClient)
		mockWriter := new(MockSMTPWriter)

		transport.On("GetSMTPUser").Return("billing@example.com")
		transport.On("Connect").Return(mockClient, nil).Once()
		mockClient.On("Mail", "billing@example.com").Return(nil).Once()
		mockClient.On("Rcpt", "owner@example.com").Return(nil).Once()
		mockClient.On("Data").Return(mockWriter, nil).Once()
		mockWriter.On("Write", mock.AnythingOfType("[]uint8")).Return(100, nil).Once()
		mockWriter.On("Close").Return(nil).Once()
		mockClient.On("Quit").Return(nil).Once()
		mockClient.On("Close").Return(nil).Once()
	}

	tests := []struct {
		name       string
		body       []byte
		setupMocks func(*MockTransport)
		wantErr    bool
	}{
		{
			name:       "invoice paid email is sent",
			body:       noticeBody(t, paidNotice),
			setupMocks: happyPathMocks,
		},
		{
			name:       "trial expired email is sent",
			body:       noticeBody(t, trialNotice),
			setupMocks: happyPathMocks,
		},
		{
			name:       "malformed message fails",
			body:       []byte("{not-json"),
			setupMocks: func(_ *MockTransport) {},
			wantErr:    true,
		},
		{
			name: "unknown kind is skipped without connecting",
			body: noticeBody(t, models.BillingNotice{
				Email: "owner@example.com",
				Kind:  "invoice.unknown",
			}),
			setupMocks: func(_ *MockTransport) {},
		},
		{
			name: "connect failure surfaces",
			body: noticeBody(t, paidNotice),
			setupMocks: func(transport *MockTransport) {
				transport.On("GetSMTPUser").Return("billing@example.com")
				transport.On("Connect").Return(nil, errors.New("dial error")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			tt.setupMocks(transport)

			svc := New(transport, newNoopLogger())

			err := svc.SendBillingNotice(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			transport.AssertExpectations(t)
		})
	}
}
