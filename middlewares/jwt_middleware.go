package middlewares

import (
	"context"
	"net/http"
	"strings"

	"kpitracker/access"
	"kpitracker/utils"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// JWTMiddleware verifies the bearer token and stores its claims on the request context.
func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.HandleMessageResponse(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.HandleMessageResponse(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := parser.ParseWithClaims(tokenString, &access.Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			})
			if err != nil {
				utils.HandleMessageResponse(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*access.Claims)
			if !ok || !token.Valid {
				utils.HandleMessageResponse(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClaimsFromContext(ctx context.Context) *access.Claims {
	if claims, ok := ctx.Value(ClaimsContextKey).(*access.Claims); ok {
		return claims
	}
	return nil
}

// WithClaims is used by tests and internal callers that bypass token parsing.
func WithClaims(ctx context.Context, claims *access.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
