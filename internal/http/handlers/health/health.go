// Package health реализует HTTP-обработчик проверки живости сервиса.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/storage/repository"
)

// Handler отвечает на проверки живости.
type Handler struct {
	log     *slog.Logger
	storage *repository.Storage
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, storage *repository.Storage) *Handler {
	return &Handler{log: log, storage: storage}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Description Проверяет доступность сервиса и базы данных
// @Tags Health
// @Produce  json
// @Success 200 {object} response.OKResponse "Сервис работает"
// @Failure 503 {object} response.ErrorResponse "База данных недоступна"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := repository.CheckDatabaseReady(h.storage); err != nil {
		h.log.Error("database is not ready", slog.String("op", op), sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database unavailable"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
