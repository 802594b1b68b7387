package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealdesk/internal/auth"
	"github.com/sells-group/dealdesk/internal/negotiation"
)

type logSlotKey struct{}

// logSlot lets inner middleware report the user back to the request logger.
type logSlot struct {
	userID string
}

// requestLogger logs one line per request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		slot := &logSlot{}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		if id := middleware.GetReqID(r.Context()); id != "" {
			ww.Header().Set(middleware.RequestIDHeader, id)
		}

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), logSlotKey{}, slot)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("user_id", slot.userID),
		)
	})
}

// rateLimit rejects requests beyond a shared token bucket. A non-positive
// rate disables it.
func rateLimit(perSec float64, burst int) func(http.Handler) http.Handler {
	if perSec <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSec), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				zap.L().Warn("rate limit exceeded",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error: http.StatusText(http.StatusTooManyRequests),
					Code:  CodeTooManyRequests,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate requires a valid bearer token and stores its subject.
func authenticate(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			userID, err := v.Verify(raw)
			if err != nil {
				zap.L().Debug("api: token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, r, err)
				return
			}
			if slot, ok := r.Context().Value(logSlotKey{}).(*logSlot); ok {
				slot.userID = userID
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
		})
	}
}

// blockExternalSend refuses and audits any negotiation request body asking
// for delivery outside the organisation. The body is restored for handlers.
func blockExternalSend(svc *negotiation.Service, maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			if err != nil {
				writeError(w, r, errBadBody)
				return
			}
			if id, requested := negotiation.ExternalSendRequested(body); requested {
				if id == "" {
					id = chiParam(r, "id")
				}
				writeError(w, r, svc.RefuseExternalSend(r.Context(), auth.UserID(r.Context()), id, body))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
