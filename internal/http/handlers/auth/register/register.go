// Package register реализует HTTP-обработчик регистрации учетных записей.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/models"
	"github.com/magabrotheeeer/identity-guard/internal/services/identity"
)

// Request — входные данные для регистрации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,min=5,max=32"`
	TaxID    string `json:"tax_id" validate:"omitempty,min=5,max=32"`
	Plan     string `json:"plan" validate:"omitempty,oneof=trial free"`
}

// IdentityService определяет методы бизнес-логики для регистрации.
type IdentityService interface {
	Register(ctx context.Context, req identity.RegisterRequest) (models.DisplayAccount, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
type Handler struct {
	log      *slog.Logger
	service  IdentityService
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service IdentityService) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация новой учетной записи
// @Description Создает учетную запись с зашифрованными контактными полями и пробным периодом
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные новой учетной записи"
// @Success 200 {object} response.OKResponse "Успешная регистрация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email или идентификатор уже заняты"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при регистрации"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	acc, err := h.service.Register(r.Context(), identity.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		TaxID:    req.TaxID,
		FreePlan: req.Plan == "free",
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateIdentity) {
			log.Warn("duplicate identity", slog.String("email", req.Email))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("email, phone or tax id already in use"))
			return
		}
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to register account"))
		return
	}

	log.Info("register success", slog.String("email", req.Email))
	render.JSON(w, r, response.OKWithData(acc))
}
