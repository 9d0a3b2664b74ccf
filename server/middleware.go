package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/flyingwithjoel/fwj-api/authguard"
	"github.com/flyingwithjoel/fwj-api/config"
)

const (
	corsAllowMethods = "GET, POST, PUT, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Correlation-ID"
)

// withCORS echoes the Origin back when it is on the allow-list and answers preflight
// requests with 204.
func withCORS(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		origin := r.Header.Get("Origin")
		if origin != "" && isOriginAllowed(origin, allowedOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed checks if an origin is in the allowed list
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
		// Support wildcard subdomains (e.g., "*.example.com")
		if strings.HasPrefix(allowed, "*.") {
			domain := allowed[2:]
			if strings.HasSuffix(origin, "."+domain) || origin == "https://"+domain || origin == "http://"+domain {
				return true
			}
		}
	}
	return false
}

// clientIP returns the caller's network identity. Proxy headers are honoured only
// when the socket peer is in trusted: CF-Connecting-IP first, then the first
// X-Forwarded-For hop. Otherwise the socket address is the identity.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if !isTrustedProxy(host, trusted) {
		return host
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return host
}

func isTrustedProxy(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// callerIdentity resolves the client IP with the configured trusted proxies.
func (h *Handlers) callerIdentity(r *http.Request) string {
	return clientIP(r, h.deps.Config.TrustedProxies)
}

// requireAdmin protects next with Basic credentials and the failure lockout.
func (h *Handlers) requireAdmin(want config.Credentials, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := h.deps.Guard.Check(r.Context(), r, h.callerIdentity(r), want)
		switch res.Status {
		case authguard.Authorized:
			next(w, r)
		case authguard.NotConfigured:
			writeError(w, http.StatusInternalServerError, "Server not configured.")
		case authguard.Locked:
			writeRetryAfter(w, "Too many failed attempts. Try again later.", res.RetryAfter)
		default:
			w.Header().Set("WWW-Authenticate", `Basic realm="Flying With Joel admin", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized.")
		}
	}
}
