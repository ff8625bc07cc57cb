package security

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	defaultResourcePolicy    = "same-site"
	defaultHSTSMaxAge        = 365 * 24 * 60 * 60
)

// Shopper-specific routes. Their responses must never land in a shared cache.
var defaultPrivatePrefixes = []string{"/api/v1/cart", "/api/v1/auth"}

// Headers configures the hardening headers on storefront responses. The API
// only ever returns JSON, so every response gets a CSP that loads nothing and
// cannot be framed. Responses under PrivatePrefixes are marked no-store;
// catalog reads stay cacheable.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	ResourcePolicy        string
	PrivatePrefixes       []string
}

// Middleware attaches the configured headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	fixed := h.fixedHeaders()
	private := h.PrivatePrefixes
	if private == nil {
		private = defaultPrivatePrefixes
	}
	hsts := h.hstsValue()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for name, value := range fixed {
			headers.Set(name, value)
		}
		if hasAnyPrefix(r.URL.Path, private) {
			headers.Set("Cache-Control", "no-store")
		}
		if hsts != "" && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) fixedHeaders() map[string]string {
	csp := strings.TrimSpace(h.ContentSecurityPolicy)
	if csp == "" {
		csp = apiContentSecurityPolicy
	}
	corp := strings.TrimSpace(h.ResourcePolicy)
	if corp == "" {
		corp = defaultResourcePolicy
	}
	return map[string]string{
		"Content-Security-Policy":      csp,
		"Cross-Origin-Resource-Policy": corp,
		"X-Content-Type-Options":       "nosniff",
		"Referrer-Policy":              "strict-origin-when-cross-origin",
	}
}

func (h Headers) hstsValue() string {
	if !h.EnableHSTS {
		return ""
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	value := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
