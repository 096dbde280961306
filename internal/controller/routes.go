package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unclebandit/mailinglist/internal/handler"
	"github.com/unclebandit/mailinglist/internal/logger"
)

// NewRouter mounts the list and campaign endpoints.
func NewRouter(lists *ListController, campaigns *handler.CampaignHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logContext(lists.TenantID))

	r.Route("/lists", func(r chi.Router) {
		r.Post("/subscribe", lists.Subscribe)
		r.Post("/subscribe/batch", lists.BatchSubscribe)
		r.Post("/unsubscribe", lists.Unsubscribe)
		r.Post("/unsubscribe/batch", lists.BatchUnsubscribe)
		r.Post("/update", lists.Update)
		r.Post("/update/batch", lists.BatchUpdate)
		r.Get("/members/{email}", lists.Member)
		r.Get("/queue", lists.QueueStats)
	})

	r.Route("/campaigns/{shortname}", func(r chi.Router) {
		r.Get("/", campaigns.Preview)
		r.Get("/content", campaigns.Content)
		r.Post("/save", campaigns.Save)
		r.Delete("/", campaigns.Delete)
	})
	return r
}

// logContext tags request contexts so log records carry tenant and request id.
func logContext(tenantID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithTenant(r.Context(), tenantID)
			if id := middleware.GetReqID(ctx); id != "" {
				ctx = logger.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
