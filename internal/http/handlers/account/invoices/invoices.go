// Package invoices реализует HTTP-обработчик истории счетов.
package invoices

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/identity-guard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// LifecycleService определяет методы бизнес-логики для чтения счетов.
type LifecycleService interface {
	ListInvoices(ctx context.Context, accountUID string) ([]*models.Invoice, error)
}

// Handler обрабатывает HTTP-запросы списка счетов.
type Handler struct {
	log     *slog.Logger
	service LifecycleService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service LifecycleService) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary История счетов
// @Description Возвращает счета учетной записи в порядке добавления
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.OKResponse "Список счетов"
// @Failure 401 {object} response.ErrorResponse "Нет или невалидный токен"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /account/invoices [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.invoices"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := r.Context().Value(middlewarectx.AccountUID).(string)
	if !ok || uid == "" {
		log.Error("account identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("account identification missing"))
		return
	}

	list, err := h.service.ListInvoices(r.Context(), uid)
	if err != nil {
		log.Error("failed to list invoices", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list invoices"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"invoices": list,
		"count":    len(list),
	}))
}
