// credentials.go — извлечение учётных данных из заголовка Authorization.
package middleware

import (
	"net/http"

	"github.com/bigkaa/goartstore/index-module/internal/auth"
)

// Credentials помещает разобранный заголовок Authorization в контекст запроса.
// Проверка учётных данных выполняется позже, в auth.Gate.
func Credentials() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := auth.ParseAuthorization(r.Header.Get("Authorization"))
			next.ServeHTTP(w, r.WithContext(auth.WithCredentials(r.Context(), c)))
		})
	}
}
