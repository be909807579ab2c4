// Package update реализует HTTP-обработчик изменения контактных полей
// учетной записи.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/identity-guard/internal/http/middlewarectx"
	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// Request — новые значения контактных полей в открытом виде.
type Request struct {
	Phone string `json:"phone" validate:"omitempty,min=5,max=32"`
	TaxID string `json:"tax_id" validate:"omitempty,min=5,max=32"`
}

// IdentityService определяет методы бизнес-логики для обновления профиля.
type IdentityService interface {
	UpdateContacts(ctx context.Context, uid, phone, taxID string) (models.DisplayAccount, error)
}

// DisplayCache сбрасывает кэшированное представление после записи.
type DisplayCache interface {
	InvalidateDisplayAccount(uid string) error
}

// Handler обрабатывает HTTP-запросы обновления профиля.
type Handler struct {
	log      *slog.Logger
	service  IdentityService
	cache    DisplayCache
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service IdentityService, cache DisplayCache) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		cache:    cache,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновление контактных полей
// @Description Перезаписывает телефон и налоговый идентификатор. Конкурентное изменение — 409, запрос повторяется.
// @Tags Account
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Новые значения"
// @Success 200 {object} response.OKResponse "Обновленный профиль"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет или невалидный токен"
// @Failure 409 {object} response.ErrorResponse "Конфликт версий или занятое значение"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /account/profile [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.update"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	acc, err := h.service.UpdateContacts(r.Context(), uid, req.Phone, req.TaxID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrStaleWrite):
			log.Warn("stale write conflict", slog.String("account_uid", uid))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("profile was modified concurrently, retry"))
		case errors.Is(err, models.ErrDuplicateIdentity):
			log.Warn("duplicate identity", slog.String("account_uid", uid))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("phone or tax id already in use"))
		default:
			log.Error("failed to update profile", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to update profile"))
		}
		return
	}

	if err := h.cache.InvalidateDisplayAccount(uid); err != nil {
		log.Warn("failed to invalidate display cache", sl.Err(err))
	}

	log.Info("profile updated", slog.String("account_uid", uid))
	render.JSON(w, r, response.OKWithData(acc))
}
