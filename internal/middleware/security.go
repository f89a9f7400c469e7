package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

// SecureHeaders sets the browser security headers on every response.
// Zero-valued fields fall back to built-in policies; DevMode relaxes the
// content security policy so a local frontend dev server can talk to
// the API.
type SecureHeaders struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	ContentSecurityPolicy string
	XFrameOptions         string
	XContentTypeOptions   string
	XSSProtection         string
	ReferrerPolicy        string
	PermissionsPolicy     string

	DevMode bool
}

// DefaultSecureHeaders returns secure headers with default settings
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		HSTSMaxAge:            63072000, // 2 years
		HSTSIncludeSubdomains: true,
		HSTSPreload:           true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		XSSProtection:         "1; mode=block",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// Handler returns the middleware handler. WebSocket upgrade requests
// pass through untouched since the headers are meaningless on a
// hijacked connection.
func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		header := w.Header()

		if sh.HSTSMaxAge > 0 && (r.TLS != nil || sh.DevMode) {
			header.Set("Strict-Transport-Security", sh.hstsValue())
		}

		switch {
		case sh.ContentSecurityPolicy != "":
			header.Set("Content-Security-Policy", sh.ContentSecurityPolicy)
		case !sh.DevMode:
			header.Set("Content-Security-Policy", sh.defaultCSP())
		}

		setIfNotEmpty(header, "X-Frame-Options", sh.XFrameOptions)
		setIfNotEmpty(header, "X-Content-Type-Options", sh.XContentTypeOptions)
		setIfNotEmpty(header, "X-XSS-Protection", sh.XSSProtection)
		setIfNotEmpty(header, "Referrer-Policy", sh.ReferrerPolicy)

		switch {
		case sh.PermissionsPolicy != "":
			header.Set("Permissions-Policy", sh.PermissionsPolicy)
		case !sh.DevMode:
			header.Set("Permissions-Policy", defaultPermissionsPolicy)
		}

		next.ServeHTTP(w, r)
	})
}

func setIfNotEmpty(header http.Header, key, value string) {
	if value != "" {
		header.Set(key, value)
	}
}

func (sh *SecureHeaders) hstsValue() string {
	hsts := fmt.Sprintf("max-age=%d", sh.HSTSMaxAge)
	if sh.HSTSIncludeSubdomains {
		hsts += "; includeSubDomains"
	}
	if sh.HSTSPreload {
		hsts += "; preload"
	}
	return hsts
}

// defaultCSP returns the content security policy. The chart pages load
// Plotly from its CDN, so script-src must allow it.
func (sh *SecureHeaders) defaultCSP() string {
	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' 'unsafe-eval' https://cdn.plot.ly https://cdn.jsdelivr.net",
		"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net",
		"img-src 'self' data: https: blob:",
		"font-src 'self' data:",
		"connect-src 'self' ws: wss:",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"upgrade-insecure-requests",
	}, "; ")
}

// defaultPermissionsPolicy opts out of every browser feature the app
// never uses, including FLoC cohorts.
const defaultPermissionsPolicy = "accelerometer=(), camera=(), geolocation=(), " +
	"gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=(), " +
	"interest-cohort=()"
