// Package paymentwebhook принимает события платежного шлюза,
// проверяет подпись и передает их жизненному циклу подписки.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// LifecycleService применяет событие платежного шлюза к подписке.
type LifecycleService interface {
	HandleEvent(ctx context.Context, event models.SubscriptionEvent) (string, error)
}

// Handler обрабатывает HTTP-запросы платежного шлюза.
type Handler struct {
	log           *slog.Logger
	service       LifecycleService
	webhookSecret string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service LifecycleService, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — формат тела webhook-запроса платежного шлюза.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`     // идентификатор платежа
		Status string `json:"status"` // статус платежа
		Amount struct {
			Value    string `json:"value"`    // сумма в строке, например "100.00"
			Currency string `json:"currency"` // валюта
		} `json:"amount"`
		PaymentMethod struct {
			Type string `json:"type"` // способ оплаты
		} `json:"payment_method"`
		Confirmation struct {
			ReceiptURL string `json:"receipt_url"`
		} `json:"confirmation"`
		Metadata map[string]string `json:"metadata"` // email плательщика и др.
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// parseAmount переводит строковую сумму "100.00" в минорные единицы.
// Принимаются только десятичные цифры: знаки и прочие символы — ошибка,
// суммы в событиях шлюза неотрицательны.
func parseAmount(value string) (int64, error) {
	const op = "paymentwebhook.parseAmount"
	whole, frac, found := strings.Cut(value, ".")
	if !found {
		frac = "00"
	}
	if whole == "" || !isDigits(whole) || len(frac) != 2 || !isDigits(frac) {
		return 0, errors.New(op + ": amount must be digits with a two-digit fraction")
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return units*100 + cents, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ServeHTTP godoc
// @Summary Webhook платежного шлюза
// @Description Принимает событие платежа, проверяет HMAC-подпись и идемпотентно применяет его к подписке
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param X-Api-Signature header string true "base64(HMAC-SHA256(body))"
// @Param request body Payload true "Событие платежного шлюза"
// @Success 200 {object} response.OKResponse "Результат обработки"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело запроса"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Учетная запись по событию не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read body"))
		return
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Debug("failed to close body", sl.Err(err))
		}
	}()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payload"))
		return
	}

	event, err := h.toEvent(&payload)
	if err != nil {
		log.Error("failed to map webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payload"))
		return
	}

	outcome, err := h.service.HandleEvent(r.Context(), event)
	if err != nil {
		if errors.Is(err, models.ErrUnknownWebhookSubject) {
			// событие не подтверждается: шлюз доставит его повторно,
			// и доставка пройдет, когда учетная запись появится
			log.Warn("webhook for unknown customer", slog.String("payment_id", payload.Object.ID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no account matches event"))
			return
		}
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process event"))
		return
	}

	log.Info("webhook processed",
		slog.String("event", payload.Event),
		slog.String("payment_id", payload.Object.ID),
		slog.String("outcome", outcome))
	render.JSON(w, r, response.OKWithData(map[string]any{"outcome": outcome}))
}

func (h *Handler) toEvent(payload *Payload) (models.SubscriptionEvent, error) {
	event := models.SubscriptionEvent{
		Type:              strings.ToLower(payload.Event),
		CustomerEmail:     payload.Object.Metadata["email"],
		ExternalPaymentID: payload.Object.ID,
		Currency:          payload.Object.Amount.Currency,
		PaymentMethod:     payload.Object.PaymentMethod.Type,
		ReceiptURL:        payload.Object.Confirmation.ReceiptURL,
	}
	if event.CustomerEmail == "" {
		return models.SubscriptionEvent{}, errors.New("payload has no customer email")
	}
	if payload.Object.Amount.Value != "" {
		amount, err := parseAmount(payload.Object.Amount.Value)
		if err != nil {
			return models.SubscriptionEvent{}, err
		}
		event.Amount = amount
	}
	return event, nil
}
