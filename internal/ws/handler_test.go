package ws

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperr"
	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/ledger"
	"messaging-service/internal/messaging"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/pricing"
)

const (
	alice   = 1
	opAlice = 2
	bob     = 3
	opBob   = 4
	admin   = 9
)

type env struct {
	handler  *Handler
	hub      *Hub
	store    *mocks.MemoryStore
	chats    *mocks.ChatStore
	media    *mocks.MediaStoreMock
	presence *presence.MemoryTracker
	verifier *auth.JWTVerifier
	chatA    models.Chat
	chatB    models.Chat
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := mocks.NewMemoryStore()
	store.Seed(models.Account{ID: alice, Balance: 100})
	store.Seed(models.Account{ID: opAlice, Role: models.RoleOperator})
	store.Seed(models.Account{ID: bob, Balance: 100})
	store.Seed(models.Account{ID: opBob, Role: models.RoleOperator})
	store.Seed(models.Account{ID: admin, Role: models.RoleAdmin})

	chats := mocks.NewChatStore()
	chatA, _, err := chats.CreateOrGetChat(context.Background(), alice, opAlice)
	require.NoError(t, err)
	chatB, _, err := chats.CreateOrGetChat(context.Background(), bob, opBob)
	require.NoError(t, err)

	table, err := pricing.NewTable("test", 10, 50, 30, map[int]int64{1: 100, 2: 500})
	require.NoError(t, err)

	recorder := &mocks.RecorderMock{}
	recorder.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(models.Activity{}, nil).Maybe()

	hub := NewHub()
	mediaStore := &mocks.MediaStoreMock{}
	pipeline := messaging.NewPipeline(messaging.Deps{
		Accounts:    store,
		Chats:       chats,
		Messages:    chats,
		Pricing:     table,
		Ledger:      ledger.New(store, time.Second),
		Media:       mediaStore,
		Broadcaster: hub,
	})
	verifier := auth.NewJWTVerifier("test-secret", "")
	tracker := presence.NewMemoryTracker()

	return &env{
		handler: NewHandler(Deps{
			Hub:      hub,
			Pipeline: pipeline,
			Verifier: verifier,
			Accounts: store,
			Presence: tracker,
			Recorder: recorder,
			Config:   config.WSConfig{SendBuffer: 16},
		}),
		hub:      hub,
		store:    store,
		chats:    chats,
		media:    mediaStore,
		presence: tracker,
		verifier: verifier,
		chatA:    chatA,
		chatB:    chatB,
	}
}

func (e *env) server(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", e.handler.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (e *env) dial(t *testing.T, srv *httptest.Server, id int, role models.Role) *websocket.Conn {
	t.Helper()
	token, err := e.verifier.Issue(models.Identity{ID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event InboundEvent) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(event))
}

func next(t *testing.T, conn *websocket.Conn) OutboundEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev OutboundEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var ev OutboundEvent
	err := conn.ReadJSON(&ev)
	require.Error(t, err, "unexpected event %+v", ev)
}

func join(t *testing.T, conn *websocket.Conn, roomID int) {
	t.Helper()
	send(t, conn, InboundEvent{Type: EventJoin, RoomID: roomID})
	ev := next(t, conn)
	require.Equal(t, EventJoined, ev.Type)
	require.Equal(t, roomID, ev.RoomID)
}

func TestImageMessageIsChargedAndDeliveredToRoom(t *testing.T) {
	e := newEnv(t)
	srv := e.server(t)

	sender := e.dial(t, srv, alice, models.RoleUser)
	operator := e.dial(t, srv, opAlice, models.RoleOperator)
	outsider := e.dial(t, srv, bob, models.RoleUser)
	join(t, sender, e.chatA.ID)
	join(t, operator, e.chatA.ID)
	join(t, outsider, e.chatB.ID)

	send(t, sender, InboundEvent{Type: EventSendMessage, RoomID: e.chatA.ID, Kind: models.KindImage, Content: "https://cdn/p.png"})

	msg := next(t, sender)
	require.Equal(t, EventMessage, msg.Type)
	require.NotNil(t, msg.Message)
	assert.Equal(t, models.KindImage, msg.Message.Kind)
	assert.Equal(t, int64(50), msg.Message.Cost)

	balance := next(t, sender)
	require.Equal(t, EventBalanceUpdate, balance.Type)
	assert.Equal(t, int64(50), *balance.Balance)

	delivered := next(t, operator)
	require.Equal(t, EventMessage, delivered.Type)
	assert.Equal(t, msg.Message.ID, delivered.Message.ID)

	expectSilence(t, outsider)

	b, err := e.store.Balance(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(50), b)

	txs := e.store.Transactions(alice)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(-50), txs[1].Amount)

	chat, err := e.chats.GetChat(context.Background(), e.chatA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PreviewImage, chat.LastMessagePreview)
}

func TestInsufficientFundsGoesToSenderOnly(t *testing.T) {
	e := newEnv(t)
	srv := e.server(t)

	sender := e.dial(t, srv, alice, models.RoleUser)
	operator := e.dial(t, srv, opAlice, models.RoleOperator)
	join(t, sender, e.chatA.ID)
	join(t, operator, e.chatA.ID)

	send(t, sender, InboundEvent{Type: EventSendMessage, RoomID: e.chatA.ID, Kind: models.KindGift, Tier: 2, RequestID: "r1"})

	ev := next(t, sender)
	require.Equal(t, EventInsufficientFunds, ev.Type)
	assert.Equal(t, "r1", ev.RequestID)
	assert.Equal(t, int64(500), ev.Required)
	require.NotNil(t, ev.Available)
	assert.Equal(t, int64(100), *ev.Available)

	expectSilence(t, operator)
	assert.Empty(t, e.chats.Messages())
}

func TestOperatorSendsForFree(t *testing.T) {
	e := newEnv(t)
	srv := e.server(t)

	operator := e.dial(t, srv, opAlice, models.RoleOperator)
	user := e.dial(t, srv, alice, models.RoleUser)
	join(t, operator, e.chatA.ID)
	join(t, user, e.chatA.ID)

	send(t, operator, InboundEvent{Type: EventSendMessage, RoomID: e.chatA.ID, Kind: models.KindGift, Tier: 2})

	ev := next(t, user)
	require.Equal(t, EventMessage, ev.Type)
	assert.Zero(t, ev.Message.Cost)

	ev = next(t, operator)
	require.Equal(t, EventMessage, ev.Type)
	expectSilence(t, operator)
}

func TestJoinRequiresMembership(t *testing.T) {
	e := newEnv(t)
	srv := e.server(t)

	conn := e.dial(t, srv, bob, models.RoleUser)
	send(t, conn, InboundEvent{Type: EventJoin, RoomID: e.chatA.ID, RequestID: "j"})

	ev := next(t, conn)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, apperr.CodePermissionDenied, ev.Code)
	assert.Equal(t, "j", ev.RequestID)
	assert.Equal(t, 0, e.hub.RoomSize(e.chatA.ID))
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	e := newEnv(t)
	srv := e.server(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisconnectCleansUp(t *testing.T) {
	e := newEnv(t)
	srv := e.server(t)

	conn := e.dial(t, srv, alice, models.RoleUser)
	join(t, conn, e.chatA.ID)

	online, err := e.presence.Online(context.Background(), []int{alice})
	require.NoError(t, err)
	assert.True(t, online[alice])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		online, _ := e.presence.Online(context.Background(), []int{alice})
		return e.hub.RoomSize(e.chatA.ID) == 0 && !online[alice]
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDispatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	t.Run("unknown type", func(t *testing.T) {
		c := testClient("x", alice, models.RoleUser)
		e.handler.dispatch(ctx, c, InboundEvent{Type: "dance"})
		events := drain(c)
		require.Len(t, events, 1)
		assert.Equal(t, apperr.CodeInvalidArgument, events[0].Code)
	})

	t.Run("activity subscription needs staff", func(t *testing.T) {
		user := testClient("u", alice, models.RoleUser)
		e.handler.dispatch(ctx, user, InboundEvent{Type: EventSubscribeActivity})
		events := drain(user)
		require.Len(t, events, 1)
		assert.Equal(t, apperr.CodePermissionDenied, events[0].Code)

		staff := testClient("a", admin, models.RoleModerator)
		e.handler.dispatch(ctx, staff, InboundEvent{Type: EventSubscribeActivity})
		assert.Empty(t, drain(staff))
		e.hub.PublishActivity(models.Activity{ID: 1})
		assert.Len(t, drain(staff), 1)
		assert.Empty(t, drain(user))
	})

	t.Run("bad base64", func(t *testing.T) {
		c := testClient("b", alice, models.RoleUser)
		e.handler.dispatch(ctx, c, InboundEvent{Type: EventSendMessage, RoomID: e.chatA.ID, Kind: models.KindImage, Data: "%%%"})
		events := drain(c)
		require.Len(t, events, 1)
		assert.Equal(t, apperr.CodeInvalidArgument, events[0].Code)
	})

	t.Run("media upload", func(t *testing.T) {
		payload := []byte("voice-bytes")
		e.media.On("StoreAndGetURL", mock.Anything, payload, "audio/ogg").Return("https://cdn/v.ogg", nil).Once()

		c := testClient("m", alice, models.RoleUser)
		e.hub.Register(c)
		e.hub.Join(e.chatA.ID, c)
		e.handler.dispatch(ctx, c, InboundEvent{
			Type:        EventSendMessage,
			RoomID:      e.chatA.ID,
			Kind:        models.KindAudio,
			Data:        base64.StdEncoding.EncodeToString(payload),
			ContentType: "audio/ogg",
		})

		events := drain(c)
		require.Len(t, events, 2)
		assert.Equal(t, EventMessage, events[0].Type)
		assert.Equal(t, "https://cdn/v.ogg", events[0].Message.Content)
		assert.Equal(t, EventBalanceUpdate, events[1].Type)
		e.media.AssertExpectations(t)
	})

	t.Run("leave", func(t *testing.T) {
		c := testClient("l", alice, models.RoleUser)
		e.hub.Join(e.chatA.ID, c)
		e.handler.dispatch(ctx, c, InboundEvent{Type: EventLeave, RoomID: e.chatA.ID})
		events := drain(c)
		require.Len(t, events, 1)
		assert.Equal(t, EventLeft, events[0].Type)
	})
}
