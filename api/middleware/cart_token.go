package middleware

import (
	"net/http"
	"strings"

	"github.com/thanhledev/audiomart-backend/pkg/logger"
)

// CartTokenHeader carries the guest cart identifier for anonymous shoppers.
const CartTokenHeader = "X-Cart-Token"

// CartToken copies the guest cart header into the request context so cart
// controllers can resolve anonymous owners.
func CartToken(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(CartTokenHeader))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithCartToken(r.Context(), token)
			if logg != nil {
				ctx = logg.WithCartID(ctx, token)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
