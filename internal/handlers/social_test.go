package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/visibility"
)

func TestFavorites(t *testing.T) {
	app := newTestApp(t)
	app.social.On("AddFavorite", mock.Anything, user.ID, operator.ID).
		Return(models.Favorite{UserID: user.ID, TargetUserID: operator.ID}, nil).Once()
	app.social.On("AddFavorite", mock.Anything, user.ID, broke.ID).
		Return(nil, repositories.ErrAlreadyFavorited).Once()
	app.social.On("RemoveFavorite", mock.Anything, user.ID, operator.ID).Return(nil).Once()
	app.social.On("ListFavorites", mock.Anything, user.ID).
		Return([]models.ViewerEntry{{UserID: operator.ID, DisplayName: "op"}}, nil).Once()

	assert.Equal(t, http.StatusCreated, app.do(t, user, http.MethodPost, "/favorites", gin.H{"target_user_id": operator.ID}).Code)
	assert.Equal(t, http.StatusConflict, app.do(t, user, http.MethodPost, "/favorites", gin.H{"target_user_id": broke.ID}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, user, http.MethodPost, "/favorites", gin.H{"target_user_id": user.ID}).Code)
	assert.Equal(t, http.StatusNoContent, app.do(t, user, http.MethodDelete, "/favorites", gin.H{"target_user_id": operator.ID}).Code)

	rec := app.do(t, user, http.MethodGet, "/favorites/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["users"], 1)

	assert.Equal(t, http.StatusForbidden, app.do(t, broke, http.MethodGet, "/favorites/1", nil).Code)
	app.social.AssertExpectations(t)
}

func TestFansAreRedactedForNonVIP(t *testing.T) {
	app := newTestApp(t)
	fans := []models.ViewerEntry{{UserID: operator.ID, DisplayName: "Olga", At: time.Now()}}
	app.social.On("ListFans", mock.Anything, user.ID).Return(fans, nil)

	rec := app.do(t, user, http.MethodGet, "/favorites/1/fans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode(t, rec)["users"].([]any)[0].(map[string]any)
	assert.Equal(t, visibility.HiddenName, entry["display_name"])
	assert.Equal(t, true, entry["is_blurred"])
	assert.Equal(t, float64(0), entry["user_id"])

	rec = app.do(t, moderator, http.MethodGet, "/favorites/1/fans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry = decode(t, rec)["users"].([]any)[0].(map[string]any)
	assert.Equal(t, "Olga", entry["display_name"])

	assert.Equal(t, http.StatusForbidden, app.do(t, broke, http.MethodGet, "/favorites/1/fans", nil).Code)
}

func TestViewersVisibleToVIP(t *testing.T) {
	app := newTestApp(t)
	_, err := app.store.SetVIP(t.Context(), user.ID, true, nil)
	require.NoError(t, err)
	app.social.On("ListViewers", mock.Anything, user.ID, mock.Anything).
		Return([]models.ViewerEntry{{UserID: broke.ID, DisplayName: "Ben", At: time.Now()}}, nil)

	rec := app.do(t, user, http.MethodGet, "/views/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode(t, rec)["users"].([]any)[0].(map[string]any)
	assert.Equal(t, "Ben", entry["display_name"])
	assert.Equal(t, false, entry["is_blurred"])
}

func TestRecordView(t *testing.T) {
	app := newTestApp(t)
	app.social.On("RecordView", mock.Anything, broke.ID, user.ID).
		Return(models.ProfileView{ViewerID: broke.ID, ViewedUserID: user.ID}, nil).Once()

	rec := app.do(t, broke, http.MethodPost, "/views", gin.H{"viewed_user_id": user.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["recorded"])

	rec = app.do(t, user, http.MethodPost, "/views", gin.H{"viewed_user_id": user.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["recorded"])
	app.social.AssertExpectations(t)
}
