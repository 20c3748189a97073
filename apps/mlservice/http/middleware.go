package mlhttp

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/chat"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

func userFrom(ctx context.Context) (chat.User, bool) {
	u, ok := ctx.Value(userKey).(chat.User)
	return u, ok
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// authenticate verifies the access token and makes sure the caller has a local user row.
func (s *server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, errInvalidToken)
			return
		}
		claims, err := s.opts.Tokens.Parse(token)
		if err != nil {
			s.writeError(w, r, errInvalidToken)
			return
		}
		id, err := claims.Identity()
		if err != nil {
			s.writeError(w, r, errInvalidToken)
			return
		}

		u, err := s.opts.ChatSvc.EnsureUser(r.Context(), id.UserID, id.Username, id.FullName)
		if err != nil {
			s.opts.Logger.Warn("user lookup failed", err, map[string]interface{}{"user": id.UserID.String()})
			s.writeError(w, r, errUserNotFound)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, u)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userLimiters hands out one token bucket per user. Idle buckets expire.
type userLimiters struct {
	perSecond rate.Limit
	burst     int
	cache     *gocache.Cache
}

func newUserLimiters(perSecond float64, burst int) *userLimiters {
	return &userLimiters{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		cache:     gocache.New(time.Hour, 10*time.Minute),
	}
}

func (l *userLimiters) get(key string) *rate.Limiter {
	if v, ok := l.cache.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.perSecond, l.burst)
	if err := l.cache.Add(key, limiter, gocache.DefaultExpiration); err != nil {
		// lost a race with another request of the same user
		if v, ok := l.cache.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// retryAfter is the number of whole seconds until a new token is available.
func (l *userLimiters) retryAfter() int {
	if secs := int(math.Ceil(1 / float64(l.perSecond))); secs > 1 {
		return secs
	}
	return 1
}

func (s *server) limitUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := userFrom(r.Context())
		limiter := s.limiters.get(u.ExternalUserID.String())
		if !limiter.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(s.limiters.retryAfter()))
			s.writeError(w, r, errTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, ok := allowed[origin]
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept, Origin")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder keeps the response status for the access log. It passes Flush through for event streams.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogger(zl zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			zl.Info().
				Str("method", r.Method).
				Str("uri", r.URL.RequestURI()).
				Str("remote_ip", r.RemoteAddr).
				Int("status", rec.status).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}

func recoverer(logger core.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					logger.Error(fmt.Sprintf("[PANIC RECOVER] %v", err), err, requestInfo(r))
					writeJSON(w, errInternal.status, detail(errInternal.detail))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
