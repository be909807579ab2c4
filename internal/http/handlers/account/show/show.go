// Package show реализует HTTP-обработчик выдачи профиля учетной записи.
package show

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

// IdentityService определяет методы бизнес-логики для чтения профиля.
type IdentityService interface {
	GetDisplayView(ctx context.Context, uid string) (models.DisplayAccount, error)
}

// DisplayCache кэширует внешние представления учетных записей.
type DisplayCache interface {
	GetDisplayAccount(uid string) (*models.DisplayAccount, bool, error)
	SetDisplayAccount(acc models.DisplayAccount) error
}

// Handler обрабатывает HTTP-запросы чтения профиля.
type Handler struct {
	log     *slog.Logger
	service IdentityService
	cache   DisplayCache
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service IdentityService, cache DisplayCache) *Handler {
	return &Handler{log: log, service: service, cache: cache}
}

// ServeHTTP godoc
// @Summary Профиль учетной записи
// @Description Возвращает представление профиля с расшифрованными контактными полями
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.OKResponse "Профиль"
// @Failure 401 {object} response.ErrorResponse "Нет или невалидный токен"
// @Failure 404 {object} response.ErrorResponse "Учетная запись не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /account/profile [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.show"

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

	if cached, found, err := h.cache.GetDisplayAccount(uid); err == nil && found {
		render.JSON(w, r, response.OKWithData(cached))
		return
	} else if err != nil {
		log.Warn("display cache unavailable", sl.Err(err))
	}

	acc, err := h.service.GetDisplayView(r.Context(), uid)
	if err != nil {
		log.Error("failed to load profile", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("account not found"))
		return
	}

	if err := h.cache.SetDisplayAccount(acc); err != nil {
		log.Warn("failed to cache profile", sl.Err(err))
	}

	render.JSON(w, r, response.OKWithData(acc))
}
