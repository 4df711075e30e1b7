package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/dom/product-console/internal/service"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type requestUserKey struct{}

// requestUser is filled in by Auth so the access log can name the caller.
type requestUser struct {
	id string
}

func noteUser(ctx context.Context, id string) {
	if u, ok := ctx.Value(requestUserKey{}).(*requestUser); ok {
		u.id = id
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			user := &requestUser{}
			ctx := context.WithValue(r.Context(), requestUserKey{}, user)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"durationMs", time.Since(start).Milliseconds(),
				"requestId", chiMiddleware.GetReqID(r.Context()),
			}
			if user.id != "" {
				fields = append(fields, "userId", user.id)
			}
			if status >= http.StatusInternalServerError {
				lg.Errorw("request", fields...)
				return
			}
			lg.Infow("request", fields...)
		})
	}
}

// RequestMeta copies the request id and client address into the context so
// audit entries can record them. Run it after chi's RequestID and RealIP.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithRequestMeta(r.Context(), service.RequestMeta{
			RequestID: chiMiddleware.GetReqID(r.Context()),
			ClientIP:  r.RemoteAddr,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
