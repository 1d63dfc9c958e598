package middleware

import (
	"net/http"

	goRewards "github.com/MrEthical07/goRewards"
	"golang.org/x/text/language"
)

// Locale attaches the preferred Accept-Language tag of the request to its
// context, so backend calls made while serving it are localized. Requests
// without a parsable header keep the engine's default locale.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		if err != nil || len(tags) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx := goRewards.WithLocale(r.Context(), tags[0].String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
