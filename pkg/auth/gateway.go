package auth

import (
	"net"
	"net/http"
	"strings"

	"tradepost/pkg/logger"
	"tradepost/pkg/utils"
)

// AuthenticateRequestMiddleware resolves the caller's role from its API key
// and enforces CORS, IP whitelisting, per-key rate limits and route scopes
// before handing the request to the router.
func AuthenticateRequestMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	// rate limiters keyed by api key or remote ip
	limiters := newLimiterPool(cfg.RPS, cfg.Burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			// cors preflight
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-User-ID,X-User-Signature")
				w.Header().Set("Access-Control-Expose-Headers", "X-Role-Name")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// ip whitelist
			if len(cfg.IPWhitelist) > 0 {
				ip := clientIP(r)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					utils.JSONError(w, http.StatusForbidden, "forbidden")
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
					return
				}
			}

			role, key, hasAPIKey := authenticate(r, cfg)

			// allow unauthenticated health checks for probes
			if (r.URL.Path == "/healthz" || r.URL.Path == "/readyz") && r.Method == http.MethodGet {
				r.Header.Set("X-Role-Name", "unauth")
				next.ServeHTTP(w, r)
				return
			}

			var roleName string
			switch role {
			case RoleFrontend:
				roleName = "frontend"
			case RoleBackend:
				roleName = "backend"
			case RoleAdmin:
				roleName = "admin"
			default:
				roleName = "unauth"
			}

			if role == RoleUnauth || !hasAPIKey {
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				return
			}
			// set role type for downstream; the header is stripped first so
			// callers cannot inject a role
			r.Header.Set("X-Role-Name", roleName)

			// admin surface requires the admin role
			if adminOnly(r) && role != RoleAdmin {
				utils.JSONError(w, http.StatusForbidden, "forbidden")
				logger.Warn("request_forbidden", "reason", "admin_route", "path", r.URL.Path, "role", roleName)
				return
			}

			// scope enforcement for frontend keys
			if role == RoleFrontend && !frontendAllowed(r) {
				utils.JSONError(w, http.StatusForbidden, "forbidden")
				logger.Warn("request_forbidden", "reason", "frontend_not_allowed", "path", r.URL.Path)
				return
			}

			// rate limiting
			if !limiters.Allow(key) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "path", r.URL.Path)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}

// apiKey pulls the caller's key from "Authorization: Bearer <key>" or,
// failing that, X-API-Key.
func apiKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.Header.Get("X-API-Key")
}

func authenticate(r *http.Request, cfg SecConfig) (Role, string, bool) {
	key := apiKey(r)
	if key == "" {
		return RoleUnauth, clientIP(r), false
	}
	for _, set := range []struct {
		keys map[string]struct{}
		role Role
	}{
		{cfg.AdminKeys, RoleAdmin},
		{cfg.BackendKeys, RoleBackend},
		{cfg.FrontendKeys, RoleFrontend},
	} {
		if _, ok := set.keys[key]; ok {
			return set.role, key, true
		}
	}
	return RoleUnauth, key, true
}

// adminOnly reports whether the request targets the admin surface:
// /v1/admin/* plus report listing and report status updates.
func adminOnly(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/v1/admin") {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/v1/reports") && r.Method != http.MethodPost {
		return true
	}
	return false
}

// frontendAllowed scopes frontend keys to the user-facing surface:
// messaging, directory lookups, catalog reads and item/report submission.
func frontendAllowed(r *http.Request) bool {
	p := r.URL.Path
	switch {
	case strings.HasPrefix(p, "/v1/conversations"),
		strings.HasPrefix(p, "/v1/messages"):
		return true
	case strings.HasPrefix(p, "/v1/users"):
		return r.Method == http.MethodGet
	case strings.HasPrefix(p, "/v1/items"):
		return r.Method == http.MethodGet || r.Method == http.MethodPost || r.Method == http.MethodPut
	case p == "/v1/reports":
		return r.Method == http.MethodPost
	}
	return false
}
