package i18n

import "net/http"

// Middleware stores a localizer for the server's configured language in
// every request context, so handlers can translate API messages with T/Td/Tp.
// The localizer is built once; requests share it.
func Middleware(lang string) func(http.Handler) http.Handler {
	loc := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
