package middleware

import (
	"context"
	"net/http"

	"github.com/ayush/bookreview/internal/session"
)

type userIDKey struct{}

// RequireAuth redirects requests without a logged-in session to /login and
// injects the user id into the request context otherwise.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := session.FromContext(r.Context()).UserID()
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the id RequireAuth stored, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id
}
