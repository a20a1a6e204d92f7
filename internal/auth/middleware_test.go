package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/fitmatch-backend/internal/common/utils"
)

const testSecret = "test-secret-key-for-testing"

func signToken(t *testing.T, userID int64, tokenType string, expiry time.Duration) string {
	t.Helper()
	now := time.Now()
	token, err := utils.GenerateJWT(&utils.JWTClaims{
		UserID:    userID,
		Type:      tokenType,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(expiry).Unix(),
	}, testSecret)
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	var gotID int64
	var gotOK bool
	handler := NewMiddleware(testSecret).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantID     int64
	}{
		{"valid access token", "Bearer " + signToken(t, 11, "access", time.Hour), "", http.StatusNoContent, 11},
		{"token in query", "", "?token=" + signToken(t, 12, "access", time.Hour), http.StatusNoContent, 12},
		{"missing header", "", "", http.StatusUnauthorized, 0},
		{"malformed header", "Token abc", "", http.StatusUnauthorized, 0},
		{"refresh token", "Bearer " + signToken(t, 11, "refresh", time.Hour), "", http.StatusUnauthorized, 0},
		{"expired token", "Bearer " + signToken(t, 11, "access", -time.Hour), "", http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotOK = 0, false
			req := httptest.NewRequest(http.MethodGet, "/api/v1/matching/matches"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantID != 0 {
				assert.True(t, gotOK)
				assert.Equal(t, tt.wantID, gotID)
			} else {
				assert.False(t, gotOK)
			}
		})
	}
}
