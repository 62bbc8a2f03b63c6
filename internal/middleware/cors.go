package middleware

import "net/http"

// CORS answers preflight requests and echoes allowed origins. "*" allows any
// origin without credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allow[origin] = struct{}{}
	}
	_, wildcard := allow["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := allow[origin]
				if ok || wildcard {
					h := w.Header()
					h.Add("Vary", "Origin")
					if ok {
						h.Set("Access-Control-Allow-Origin", origin)
						h.Set("Access-Control-Allow-Credentials", "true")
					} else {
						h.Set("Access-Control-Allow-Origin", "*")
					}
					h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Locale, X-Request-ID")
					h.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
					h.Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Language")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
