package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// LifecycleService проверяет пробный период и возвращает актуальный
// статус подписки учетной записи.
type LifecycleService interface {
	EnforceTrial(ctx context.Context, uid string) (string, error)
}

// SubscriptionStatusMiddleware создает middleware для проверки статуса
// подписки. Просроченный trial здесь же лениво переводится в pending.
// Статусы pending и canceled не проходят дальше — доступ закрыт до оплаты.
func SubscriptionStatusMiddleware(log *slog.Logger, lifecycle LifecycleService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountUID, ok := r.Context().Value(AccountUID).(string)
			if !ok || accountUID == "" {
				log.Error("account identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("account identification missing"))
				return
			}

			status, err := lifecycle.EnforceTrial(r.Context(), accountUID)
			if err != nil {
				log.Error("failed to resolve subscription status", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			if status == models.StatusPending || status == models.StatusCanceled {
				log.Warn("subscription inactive, access denied",
					slog.String("account_uid", accountUID),
					slog.String("status", status))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("subscription inactive, access denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TrialExpiryMiddleware лениво применяет истечение пробного периода на
// аутентифицированных маршрутах, которые остаются доступными при любом
// статусе подписки (профиль). Статус не проверяется и доступ не
// закрывается — выполняется только сам переход trial -> pending.
func TrialExpiryMiddleware(log *slog.Logger, lifecycle LifecycleService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountUID, ok := r.Context().Value(AccountUID).(string)
			if !ok || accountUID == "" {
				log.Error("account identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("account identification missing"))
				return
			}

			if _, err := lifecycle.EnforceTrial(r.Context(), accountUID); err != nil {
				log.Error("failed to resolve subscription status", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
