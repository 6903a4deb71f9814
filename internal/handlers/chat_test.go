package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestStartChatCreatesOnce(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, user, http.MethodPost, "/chats/start", gin.H{"operator_id": operator.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode(t, rec)["chat_id"]

	rec = app.do(t, user, http.MethodPost, "/chats/start", gin.H{"operator_id": operator.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decode(t, rec)["chat_id"])
}

func TestStartChatValidation(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, user, http.MethodPost, "/chats/start", gin.H{"operator_id": broke.ID})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = app.do(t, user, http.MethodPost, "/chats/start", `{"operator_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, user, http.MethodPost, "/chats/start", gin.H{"operator_id": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListChats(t *testing.T) {
	app := newTestApp(t)
	chatID := app.startChat(t, user, operator.ID)

	rec := app.do(t, operator, http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chats := decode(t, rec)["chats"].([]any)
	require.Len(t, chats, 1)
	assert.Equal(t, float64(chatID), chats[0].(map[string]any)["chat_id"])

	rec = app.do(t, broke, http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["chats"])
}

func TestPostChatMessageChargesSender(t *testing.T) {
	app := newTestApp(t)
	chatID := app.startChat(t, user, operator.ID)

	rec := app.do(t, user, http.MethodPost, fmt.Sprintf("/chats/%d/messages", chatID), gin.H{"kind": "text", "content": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(10), body["cost"])
	assert.Equal(t, float64(190), body["balance"])

	rec = app.do(t, user, http.MethodGet, "/wallet/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(190), decode(t, rec)["balance"])

	rec = app.do(t, operator, http.MethodPost, fmt.Sprintf("/chats/%d/messages", chatID), gin.H{"kind": "gift", "tier": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["exempt"])
	assert.NotContains(t, body, "balance")
}

func TestPostChatMessageInsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	chatID := app.startChat(t, broke, operator.ID)

	rec := app.do(t, broke, http.MethodPost, fmt.Sprintf("/chats/%d/messages", chatID), gin.H{"kind": "gift", "tier": 1})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "INSUFFICIENT_FUNDS", body["code"])
	assert.Equal(t, float64(100), body["required"])
	assert.Equal(t, float64(0), body["available"])
	assert.Empty(t, app.chats.Messages())
}

func TestPostChatMessageMultipart(t *testing.T) {
	app := newTestApp(t)
	chatID := app.startChat(t, user, operator.ID)
	app.media.On("StoreAndGetURL", mock.Anything, []byte("PNGDATA"), "image/png").Return("https://cdn/x.png", nil).Once()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("kind", "image"))
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="x.png"`}
	header["Content-Type"] = []string{"image/png"}
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("PNGDATA"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/chats/%d/messages", chatID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	app.router(user).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode(t, rec)["message"].(map[string]any)
	assert.Equal(t, "https://cdn/x.png", msg["content"])
	assert.Equal(t, "image", msg["kind"])
	app.media.AssertExpectations(t)
}

func TestGetChatMessagesAccess(t *testing.T) {
	app := newTestApp(t)
	chatID := app.startChat(t, user, operator.ID)
	path := fmt.Sprintf("/chats/%d/messages", chatID)
	require.Equal(t, http.StatusCreated, app.do(t, user, http.MethodPost, path, gin.H{"content": "hi"}).Code)

	rec := app.do(t, user, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["messages"], 1)

	assert.Equal(t, http.StatusForbidden, app.do(t, broke, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, admin, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, user, http.MethodGet, "/chats/abc/messages", nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, user, http.MethodGet, path+"?before=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, user, http.MethodGet, "/chats/999/messages", nil).Code)
}

func TestMarkRead(t *testing.T) {
	app := newTestApp(t)
	chatID := app.startChat(t, user, operator.ID)
	require.Equal(t, http.StatusCreated, app.do(t, user, http.MethodPost, fmt.Sprintf("/chats/%d/messages", chatID), gin.H{"content": "hi"}).Code)

	rec := app.do(t, operator, http.MethodPost, fmt.Sprintf("/chats/%d/read", chatID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["marked"])

	msgs := app.chats.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsRead)
	assert.Equal(t, models.KindText, msgs[0].Kind)
}
