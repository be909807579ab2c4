// Package create реализует HTTP-обработчик добавления контрагента.
package create

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

// Request — входные данные нового контрагента.
type Request struct {
	Kind  string `json:"kind" validate:"required,oneof=customer supplier"`
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Phone string `json:"phone" validate:"required,min=5,max=32"`
}

// ContactsService определяет методы бизнес-логики для контрагентов.
type ContactsService interface {
	Create(ctx context.Context, ownerUID, kind, name, phone string) (models.DisplayParty, error)
}

// Handler обрабатывает HTTP-запросы добавления контрагента.
type Handler struct {
	log      *slog.Logger
	service  ContactsService
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service ContactsService) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Добавление контрагента
// @Description Создает покупателя или поставщика с зашифрованным телефоном
// @Tags Parties
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Данные контрагента"
// @Success 200 {object} response.OKResponse "Созданный контрагент"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет или невалидный токен"
// @Failure 409 {object} response.ErrorResponse "Телефон уже занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /parties [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.party.create"

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

	party, err := h.service.Create(r.Context(), ownerUID, req.Kind, req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateIdentity) {
			log.Warn("duplicate party phone", slog.String("owner_uid", ownerUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("phone already in use"))
			return
		}
		log.Error("failed to create party", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to create party"))
		return
	}

	log.Info("party created", slog.String("owner_uid", ownerUID), slog.Int64("id", party.ID))
	render.JSON(w, r, response.OKWithData(party))
}
