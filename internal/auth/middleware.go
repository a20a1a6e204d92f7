// internal/auth/middleware.go

package auth

import (
    "context"
    "net/http"
    "strings"

    "github.com/imadgeboyega/fitmatch-backend/internal/common/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// Middleware provides authentication middleware
type Middleware struct {
    jwtSecret string
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(jwtSecret string) *Middleware {
    return &Middleware{jwtSecret: jwtSecret}
}

// Authenticate verifies the bearer token and adds the user ID to the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        token := extractToken(r)
        if token == "" {
            utils.ErrorResponse(w, "Missing or invalid authorization header", http.StatusUnauthorized)
            return
        }

        claims, err := utils.ValidateJWT(token, m.jwtSecret)
        if err != nil {
            utils.ErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized)
            return
        }

        // Refresh tokens cannot be used against the API
        if claims.Type != "access" {
            utils.ErrorResponse(w, "Invalid token type", http.StatusUnauthorized)
            return
        }

        next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
    })
}

// extractToken extracts the JWT token from a "Bearer <token>" Authorization header.
// Browsers cannot set headers on websocket upgrades, so the "token" query
// parameter is accepted as a fallback.
func extractToken(r *http.Request) string {
    authHeader := r.Header.Get("Authorization")
    if authHeader == "" {
        return r.URL.Query().Get("token")
    }

    parts := strings.Split(authHeader, " ")
    if len(parts) != 2 || parts[0] != "Bearer" {
        return ""
    }

    return parts[1]
}

// WithUserID returns a context carrying the authenticated user ID
func WithUserID(ctx context.Context, userID int64) context.Context {
    return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
    userID, ok := ctx.Value(userIDKey).(int64)
    return userID, ok
}
