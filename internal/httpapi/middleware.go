package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/taskhive/taskhive/internal/apperr"
	"github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/metrics"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the verified actor attached to an authenticated request.
type Principal struct {
	UserID  string
	IsAdmin bool
	// Channel is session or hmac, depending on how the request was verified.
	Channel string
}

// PrincipalFrom extracts the verified principal from a request context.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// authMiddleware verifies either the bot HMAC header bundle or a Bearer
// session token and stashes the principal in the context. Both channels fail
// closed: no distinction between bad signature and expired timestamp leaks
// to the caller.
func (h *handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Bot channel first: presence of the signature header selects it.
		if r.Header.Get(auth.HeaderSignature) != "" {
			userID, ok := h.hmac.Verify(auth.HMACHeaders{
				UserID:    r.Header.Get(auth.HeaderUserID),
				Timestamp: r.Header.Get(auth.HeaderTimestamp),
				Signature: r.Header.Get(auth.HeaderSignature),
			})
			if !ok {
				metrics.RecordAuthFailure("hmac")
				h.writeError(w, apperr.Authentication("invalid signed request"))
				return
			}
			u, err := h.app.Users.Get(r.Context(), userID)
			if err != nil {
				h.writeError(w, apperr.Authentication("unknown principal"))
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, Principal{
				UserID:  u.ID,
				IsAdmin: u.IsAdmin,
				Channel: "hmac",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			h.writeError(w, apperr.Authentication("missing credentials"))
			return
		}
		claims, err := h.tokens.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			metrics.RecordAuthFailure("session")
			h.writeError(w, apperr.Authentication("invalid session token"))
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, Principal{
			UserID:  claims.UserID,
			IsAdmin: claims.IsAdmin,
			Channel: "session",
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware answers preflight requests for the browser frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Authorization",
			auth.HeaderUserID, auth.HeaderTimestamp, auth.HeaderSignature,
		}, ", "))

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies a per-client token bucket keyed by remote IP.
type rateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newRateLimiter(rps float64, burst int) *rateLimitMiddleware {
	return &rateLimitMiddleware{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (m *rateLimitMiddleware) limiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(m.rps, m.burst)
		m.limiters[key] = l
	}
	return l
}

func (m *rateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !m.limiter(host).Allow() {
			http.Error(w, `{"error":{"type":"rate_limited","message":"too many requests"}}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
