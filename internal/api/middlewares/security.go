package middlewares

import "net/http"

// SecurityHeaders adds the browser hardening headers every response carries.
// X-Privacy-Mode advertises to the desktop shell that no request ever leaves
// the machine.
func SecurityHeaders(version string) func(http.Handler) http.Handler {
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline';",
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for header, value := range headers {
				w.Header().Set(header, value)
			}
			w.Header().Set("X-API-Version", version)
			w.Header().Set("X-Privacy-Mode", "local-only")
			next.ServeHTTP(w, r)
		})
	}
}
