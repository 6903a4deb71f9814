package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/activity"
	"messaging-service/internal/boost"
	"messaging-service/internal/ledger"
	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/pricing"
	"messaging-service/internal/progression"
	"messaging-service/internal/social"
)

var (
	user      = models.Identity{ID: 1, Role: models.RoleUser}
	operator  = models.Identity{ID: 2, Role: models.RoleOperator}
	broke     = models.Identity{ID: 3, Role: models.RoleUser}
	moderator = models.Identity{ID: 8, Role: models.RoleModerator}
	admin     = models.Identity{ID: 9, Role: models.RoleAdmin}
)

type notifierSpy struct {
	mu       sync.Mutex
	balances map[int]int64
}

func (n *notifierSpy) NotifyBalance(accountID int, balance int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.balances == nil {
		n.balances = map[int]int64{}
	}
	n.balances[accountID] = balance
}

func (n *notifierSpy) last(accountID int) (int64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.balances[accountID]
	return b, ok
}

type testApp struct {
	store      *mocks.MemoryStore
	chats      *mocks.ChatStore
	social     *mocks.SocialRepositoryMock
	activities *mocks.ActivityRepositoryMock
	media      *mocks.MediaStoreMock
	notifier   *notifierSpy
	handlers   Handlers
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := mocks.NewMemoryStore()
	store.Seed(models.Account{ID: user.ID, Balance: 200})
	store.Seed(models.Account{ID: operator.ID, Role: models.RoleOperator})
	store.Seed(models.Account{ID: broke.ID})
	store.Seed(models.Account{ID: moderator.ID, Role: models.RoleModerator})
	store.Seed(models.Account{ID: admin.ID, Role: models.RoleAdmin})

	table, err := pricing.NewTable("v1", 10, 50, 30, map[int]int64{1: 100})
	require.NoError(t, err)

	activities := &mocks.ActivityRepositoryMock{}
	activities.On("CreateActivity", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.Activity{ID: 1}, nil).Maybe()
	feed := activity.NewFeed(activities, 64, nil, nil)

	app := &testApp{
		store:      store,
		chats:      mocks.NewChatStore(),
		social:     &mocks.SocialRepositoryMock{},
		activities: activities,
		media:      &mocks.MediaStoreMock{},
		notifier:   &notifierSpy{},
	}

	l := ledger.New(store, time.Second)
	pipeline := messaging.NewPipeline(messaging.Deps{
		Accounts: store,
		Chats:    app.chats,
		Messages: app.chats,
		Pricing:  table,
		Ledger:   l,
		Media:    app.media,
	})
	progress := progression.NewService(progression.MustLadder(progression.DefaultThresholds), l, store, feed)

	app.handlers = Handlers{
		Chat:   NewChatHandler(pipeline),
		Wallet: NewWalletHandler(l, table),
		Boost:  NewBoostHandler(boost.NewScheduler(l, store, feed), app.notifier),
		VIP:    NewVIPHandler(progress, app.notifier),
		Social: NewSocialHandler(social.NewService(store, app.social, presence.NewMemoryTracker(), feed)),
		Admin: NewAdminHandler(AdminDeps{
			Ledger:      l,
			Progression: progress,
			Accounts:    store,
			Feed:        feed,
			Notifier:    app.notifier,
		}),
	}
	return app
}

// router serves requests as identity.
func (a *testApp) router(identity models.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	a.handlers.Register(r, func(c *gin.Context) {
		c.Set(middleware.UserIDKey, identity.ID)
		c.Set(middleware.IdentityKey, identity)
		c.Next()
	})
	return r
}

func (a *testApp) do(t *testing.T, identity models.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router(identity).ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (a *testApp) startChat(t *testing.T, actor models.Identity, operatorID int) int {
	t.Helper()
	rec := a.do(t, actor, http.MethodPost, "/chats/start", gin.H{"operator_id": operatorID})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	return int(decode(t, rec)["chat_id"].(float64))
}
