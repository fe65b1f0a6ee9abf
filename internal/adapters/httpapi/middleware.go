package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SecurityEventRateLimited is the audit event type of a rejected request
const SecurityEventRateLimited = "rate_limit_exceeded"

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			elapsed := time.Since(start)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if s.observer != nil {
				s.observer.ObserveRequest(route, ww.Status(), elapsed)
			}
			s.logger.Info("Request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", elapsed),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		client := clientID(r)
		allowed := s.limiter.Allow(client)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.MaxRequests()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(client)))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(s.limiter.ResetAt(client).Unix(), 10))

		if !allowed {
			if s.observer != nil {
				s.observer.ObserveRateLimited()
			}
			if s.audit != nil {
				details := map[string]string{"client": client, "path": r.URL.Path}
				if err := s.audit.RecordSecurityEvent(r.Context(), SecurityEventRateLimited, details); err != nil {
					s.logger.Warn("Failed to record security event", zap.Error(err))
				}
			}
			retry := time.Until(s.limiter.ResetAt(client))
			if retry < time.Second {
				retry = time.Second
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many requests", "rate_limited")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientID keys the rate limiter by remote host; RealIP has already applied
// X-Forwarded-For and X-Real-IP
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}
