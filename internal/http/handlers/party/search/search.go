// Package search реализует HTTP-обработчик поиска контрагента по телефону.
package search

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/identity-guard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// ContactsService определяет методы бизнес-логики для поиска контрагентов.
type ContactsService interface {
	FindByPhone(ctx context.Context, ownerUID, kind, phone string) (models.DisplayParty, error)
}

// Handler обрабатывает HTTP-запросы поиска контрагента.
type Handler struct {
	log     *slog.Logger
	service ContactsService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service ContactsService) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Поиск контрагента по телефону
// @Description Ищет контрагента по точному совпадению телефона через слепой индекс, без расшифровки хранимых данных
// @Tags Parties
// @Produce  json
// @Security BearerAuth
// @Param phone query string true "Телефон в открытом виде"
// @Param kind query string false "customer или supplier, по умолчанию customer"
// @Success 200 {object} response.OKResponse "Найденный контрагент"
// @Failure 400 {object} response.ErrorResponse "Не передан телефон"
// @Failure 401 {object} response.ErrorResponse "Нет или невалидный токен"
// @Failure 404 {object} response.ErrorResponse "Контрагент не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /parties/search [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.party.search"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ownerUID, ok := r.Context().Value(middlewarectx.AccountUID).(string)
	if !ok || ownerUID == "" {
		log.Error("account identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("account identification missing"))
		return
	}

	phone := r.URL.Query().Get("phone")
	if phone == "" {
		log.Error("phone query parameter missing")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("phone query parameter is required"))
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = models.PartyCustomer
	}
	if kind != models.PartyCustomer && kind != models.PartySupplier {
		log.Error("unsupported party kind", slog.String("kind", kind))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("kind must be customer or supplier"))
		return
	}

	party, err := h.service.FindByPhone(r.Context(), ownerUID, kind, phone)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("party not found"))
			return
		}
		log.Error("failed to search party", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to search party"))
		return
	}

	render.JSON(w, r, response.OKWithData(party))
}
