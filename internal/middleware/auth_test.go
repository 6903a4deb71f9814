package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func setupRouter(verifier auth.Verifier, store *mocks.MemoryStore, recorder Recorder, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(verifier, store, recorder))
	if len(roles) > 0 {
		r.Use(RequireRole(roles...))
	}
	r.GET("/me", func(c *gin.Context) {
		identity, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": identity.ID, "user_id": c.GetInt(UserIDKey)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("VerifyToken", mock.Anything, "good").Return(models.Identity{ID: 5, Role: models.RoleUser, DisplayName: "eve"}, nil)
	verifier.On("VerifyToken", mock.Anything, "bad").Return(nil, auth.ErrInvalidToken)
	store := mocks.NewMemoryStore()
	recorder := new(mocks.RecorderMock)
	recorder.On("Record", mock.Anything, 5, models.ActionRegistration, mock.Anything).Return(models.Activity{ID: 1}, nil).Once()
	router := setupRouter(verifier, store, recorder)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token good", http.StatusUnauthorized},
		{"invalid", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	acc, err := store.GetAccount(t.Context(), 5)
	require.NoError(t, err)
	assert.Equal(t, "eve", acc.DisplayName)
	assert.Zero(t, acc.Balance)
	// Only the first authenticated request registers the account.
	recorder.AssertNumberOfCalls(t, "Record", 1)
}

func TestRequireRole(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	verifier.On("VerifyToken", mock.Anything, "user").Return(models.Identity{ID: 1, Role: models.RoleUser}, nil)
	verifier.On("VerifyToken", mock.Anything, "admin").Return(models.Identity{ID: 2, Role: models.RoleAdmin}, nil)
	router := setupRouter(verifier, mocks.NewMemoryStore(), nil, models.RoleAdmin, models.RoleModerator)

	for token, status := range map[string]int{"user": http.StatusForbidden, "admin": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, token)
	}
}
