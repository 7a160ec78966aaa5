package middleware

import (
	"context"
	"net/http"

	"nexusai/internal/reqctx"

	"github.com/google/uuid"
)

// RequestID кладёт идентификатор запроса в контекст и заголовок ответа.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := reqctx.WithRequestID(r.Context(), rid)
		ctx = context.WithValue(ctx, ContextRequestID, rid)
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
