package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponses(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		SuccessResponse(w, map[string]int{"count": 2}, http.StatusOK)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Empty(t, resp.Error)
	})

	t.Run("error envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		ErrorResponse(w, "Profile not found", http.StatusNotFound)

		assert.Equal(t, http.StatusNotFound, w.Code)
		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "Profile not found", resp.Error)
	})
}

func TestValidateStruct(t *testing.T) {
	type request struct {
		TargetID int64  `validate:"required,gt=0"`
		Kind     string `validate:"required,oneof=like dislike"`
	}

	assert.NoError(t, ValidateStruct(request{TargetID: 3, Kind: "like"}))

	err := ValidateStruct(request{Kind: "superlike"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TargetID is required")
	assert.Contains(t, err.Error(), "Kind must be one of [like dislike]")
}

func TestJWTRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := GenerateJWT(&JWTClaims{
		UserID:    42,
		Type:      "access",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}, "secret")
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "access", claims.Type)

	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)
}
