// Package sender отправляет почтовые уведомления по сообщениям из
// очереди биллинга.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/lib/smtp"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// Service отправляет письма по биллинговым уведомлениям.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// SendBillingNotice разбирает сообщение очереди и отправляет письмо,
// соответствующее виду уведомления.
func (s *Service) SendBillingNotice(body []byte) error {
	var notice models.BillingNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		s.log.Error("failed to unmarshal notice", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	switch notice.Kind {
	case models.NoticeInvoicePaid:
		subject := "Оплата подписки получена"
		bodyText := fmt.Sprintf(
			"Здравствуйте!\n\nМы получили ваш платеж %s на сумму %.2f %s.\nПодписка активна, спасибо, что остаетесь с нами.",
			notice.ExternalID, float64(notice.Amount)/100, notice.Currency)
		return s.sendEmail([]string{notice.Email}, subject, bodyText)
	case models.NoticeTrialExpired:
		subject := "Пробный период завершен"
		bodyText := "Здравствуйте!\n\nВаш пробный период закончился, доступ к сервису приостановлен.\nЧтобы продолжить работу, оплатите подписку в личном кабинете."
		return s.sendEmail([]string{notice.Email}, subject, bodyText)
	default:
		s.log.Warn("unknown notice kind", slog.String("kind", notice.Kind))
		return nil
	}
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("failed to close SMTP client", sl.Err(err))
		}
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
