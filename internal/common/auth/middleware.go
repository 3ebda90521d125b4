package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"cardbank/internal/common/logging"
	vo "cardbank/internal/common/value_objects"
)

type userIDKey struct{}

// WithUserID stores the authenticated user in ctx.
func WithUserID(ctx context.Context, userID vo.UserID) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, userID)
	return logging.WithUserID(ctx, userID)
}

// UserIDFromContext returns the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (vo.UserID, bool) {
	userID, ok := ctx.Value(userIDKey{}).(vo.UserID)
	return userID, ok && !userID.IsEmpty()
}

// Middleware rejects requests without a valid bearer token and
// stores the token's user in the request context.
func Middleware(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w, ErrMissingToken)
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				logging.DebugContext(r.Context(), "Rejected token", "error", err)
				unauthorized(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, err error) {
	message := ErrInvalidToken.Error()
	switch err {
	case ErrMissingToken, ErrTokenExpired:
		message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="cardbank"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": message})
}
