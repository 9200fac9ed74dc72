package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/techmarket-sync/internal/config"
	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/http/handlers"
	"github.com/ignatzorin/techmarket-sync/internal/http/router"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/rest"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
	"github.com/ignatzorin/techmarket-sync/internal/service"
	"github.com/ignatzorin/techmarket-sync/internal/store"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/account"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/negotiation"
	"github.com/ignatzorin/techmarket-sync/internal/view"
	"github.com/ignatzorin/techmarket-sync/internal/ws"
)

const secret = "router-test-secret"

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeSessions struct {
	mu     sync.Mutex
	items  []entity.ServiceRequest
	loads  int
	tokens []string
}

func (f *fakeSessions) Snapshot(ctx context.Context, v view.Viewer) ([]entity.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, rest.TokenFromContext(ctx))
	return f.items, nil
}

func (f *fakeSessions) Load(ctx context.Context, v view.Viewer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return nil
}

// fakeFlows записывает вызовы сценариев как "метод:актор:заявка[:предложение]".
type fakeFlows struct {
	mu    sync.Mutex
	calls []string
	err   error
	last  interface{}
}

func (f *fakeFlows) record(call string, input interface{}) (*entity.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return &entity.ServiceRequest{ID: 7, Status: valueobject.RequestAcceptedByTech}, nil
}

func (f *fakeFlows) TechnicianAccept(ctx context.Context, tech, req int64) (*entity.ServiceRequest, error) {
	return f.record(call("accept", tech, req), nil)
}

func (f *fakeFlows) TechnicianReject(ctx context.Context, tech, req int64, reason string) (*entity.ServiceRequest, error) {
	return f.record(call("reject", tech, req), reason)
}

func (f *fakeFlows) CounterOffer(ctx context.Context, tech, req int64, in negotiation.CounterOfferInput) (*entity.ServiceRequest, error) {
	return f.record(call("counter", tech, req), in)
}

func (f *fakeFlows) ClientAccept(ctx context.Context, client, req, offer int64) (*entity.ServiceRequest, error) {
	return f.record(call("client_accept", client, req, offer), nil)
}

func (f *fakeFlows) ClientReject(ctx context.Context, client, req, offer int64) (*entity.ServiceRequest, error) {
	return f.record(call("client_reject", client, req, offer), nil)
}

func (f *fakeFlows) Finalize(ctx context.Context, client, req int64) (*entity.ServiceRequest, error) {
	return f.record(call("finalize", client, req), nil)
}

func (f *fakeFlows) Rate(ctx context.Context, client, req int64, in negotiation.RateInput) (*entity.ServiceRequest, error) {
	return f.record(call("rate", client, req), in)
}

func (f *fakeFlows) CreateRequest(ctx context.Context, client int64, in negotiation.CreateRequestInput) (*entity.ServiceRequest, error) {
	return f.record(call("create", client), in)
}

func call(name string, ids ...int64) string {
	b, _ := json.Marshal(ids)
	return name + string(b)
}

type fakeChats struct {
	closed []int64
}

func (f *fakeChats) Execute(ctx context.Context, actorID, chatID int64) ([]entity.ChatMessage, error) {
	if chatID == 404 {
		return nil, apperror.New(apperror.ErrCodeNotFound, "чат не найден")
	}
	return []entity.ChatMessage{{ID: 1, ChatID: chatID, SenderID: actorID, Content: "Здравствуйте", SentAt: t0}}, nil
}

func (f *fakeChats) CloseChat(actorID, chatID int64) {
	f.closed = append(f.closed, chatID)
}

type fakeSender struct{}

func (fakeSender) Execute(ctx context.Context, actorID, chatID int64, content string) (*entity.ChatMessage, error) {
	return &entity.ChatMessage{ID: 2, ChatID: chatID, SenderID: actorID, Content: content, SentAt: t0}, nil
}

type fakeAccounts struct {
	got account.EnsureUserInput
}

func (f *fakeAccounts) Execute(ctx context.Context, in account.EnsureUserInput) (*entity.User, error) {
	f.got = in
	return &entity.User{ID: 11, ExternalID: in.ExternalID, Role: in.Role, Status: valueobject.AccountEnabled}, nil
}

type fakeResolver struct{}

func (fakeResolver) Execute(ctx context.Context, actorID, notificationID int64) (int64, error) {
	if notificationID == 3 {
		return 0, apperror.ErrForbidden
	}
	return 31, nil
}

type env struct {
	engine   *gin.Engine
	tokens   *service.TokenManager
	sessions *fakeSessions
	flows    *fakeFlows
	chats    *fakeChats
	accounts *fakeAccounts
}

func setup(t *testing.T, rateLimit int64) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  rateLimit,
		RateLimitPeriod: time.Minute,
	}
	tokens := service.NewTokenManager(secret)
	e := &env{
		tokens: tokens,
		sessions: &fakeSessions{items: []entity.ServiceRequest{
			{ID: 1, Description: "Не включается ноутбук", OfferedPrice: 100, Status: valueobject.RequestPending, CreatedAt: t0},
			{ID: 2, Description: "Заменить экран", OfferedPrice: 300, Status: valueobject.RequestAcceptedByTech, CreatedAt: t0.Add(time.Hour),
				Offers: []entity.ServiceOffer{{ID: 20, RequestID: 2, TechnicianID: 50, ProposedPrice: 300, Status: valueobject.OfferAcceptedByTech}}},
			{ID: 3, Description: "Чистка ноутбука", OfferedPrice: 50, Status: valueobject.RequestChatActive, CreatedAt: t0.Add(2 * time.Hour)},
			{ID: 4, Description: "Установка ОС", OfferedPrice: 70, Status: valueobject.RequestFinalized, CreatedAt: t0.Add(3 * time.Hour)},
			{ID: 5, Description: "Ремонт принтера", OfferedPrice: 90, Status: valueobject.RequestRejectedByClient, CreatedAt: t0.Add(4 * time.Hour)},
		}},
		flows:    &fakeFlows{},
		chats:    &fakeChats{},
		accounts: &fakeAccounts{},
	}

	hub := ws.NewHub()
	sessions := service.NewSessionService(nil, nil, store.NewRegistry(), hub, time.Second)

	e.engine = router.SetupRouter(cfg, tokens, router.Handlers{
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"upstream": func(ctx context.Context) error { return nil },
		}),
		WS:           handlers.NewWSHandler(hub, sessions, tokens, cfg.AllowedOrigins),
		Requests:     handlers.NewRequestHandler(e.sessions, e.flows, 2),
		Negotiation:  handlers.NewNegotiationHandler(e.flows),
		Chats:        handlers.NewChatHandler(e.chats, fakeSender{}),
		Accounts:     handlers.NewAccountHandler(e.accounts),
		Notification: handlers.NewNotificationHandler(fakeResolver{}),
	})
	return e
}

func (e *env) token(t *testing.T, actorID int64, role entity.Role) string {
	t.Helper()
	tok, err := e.tokens.Issue(service.IdentityClaims{ActorID: actorID, Role: role}, time.Minute)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var out envelope
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHealth(t *testing.T) {
	e := setup(t, 100)
	w, _ := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"upstream":"healthy"`)
}

func TestViews_RequiresToken(t *testing.T) {
	e := setup(t, 100)

	w, body := e.do(t, http.MethodGet, "/api/requests/views", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	w, _ = e.do(t, http.MethodGet, "/api/requests/views", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestViews_TechnicianBuckets(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 50, entity.RoleTechnician)

	w, body := e.do(t, http.MethodGet, "/api/requests/views?sort=date_desc", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Role  string `json:"role"`
		Views struct {
			New        view.Page `json:"new"`
			Offers     view.Page `json:"offers"`
			InProgress view.Page `json:"in_progress"`
			Closed     view.Page `json:"closed"`
		} `json:"views"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &got))

	assert.Equal(t, "technician", got.Role)
	assert.Equal(t, 1, got.Views.New.Total)
	assert.Equal(t, 1, got.Views.Offers.Total)
	assert.Equal(t, int64(2), got.Views.Offers.Items[0].ID)
	assert.Equal(t, 2, got.Views.InProgress.Total)
	assert.Equal(t, int64(5), got.Views.InProgress.Items[0].ID, "date_desc puts the newest first")
	assert.Equal(t, 1, got.Views.Closed.Total)

	assert.Equal(t, []string{tok}, e.sessions.tokens)
}

func TestViews_StatusFilterAndPaging(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 50, entity.RoleTechnician)

	_, body := e.do(t, http.MethodGet, "/api/requests/views?status=chat_active", tok, nil)
	var got struct {
		Views view.Result `json:"views"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &got))
	require.Len(t, got.Views.InProgress.Items, 1)
	assert.Equal(t, int64(3), got.Views.InProgress.Items[0].ID)
	assert.Equal(t, 1, got.Views.New.Total, "status filter does not touch other buckets")

	_, body = e.do(t, http.MethodGet, "/api/requests/views?status=6&page=2", tok, nil)
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, 2, got.Views.InProgress.Page)
	assert.Empty(t, got.Views.InProgress.Items)
}

func TestViews_InvalidQuery(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 50, entity.RoleTechnician)

	w, body := e.do(t, http.MethodGet, "/api/requests/views?sort=random", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	w, _ = e.do(t, http.MethodGet, "/api/requests/views?status=enabled", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTechnicianActions(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 50, entity.RoleTechnician)

	w, _ := e.do(t, http.MethodPost, "/api/requests/7/accept", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/requests/7/reject", tok, map[string]string{"reason": "Нет запчастей"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Нет запчастей", e.flows.last)

	w, _ = e.do(t, http.MethodPost, "/api/requests/7/reject", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/requests/7/counter", tok, map[string]interface{}{"proposed_price": 150, "reason": "Дорогая деталь"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, negotiation.CounterOfferInput{ProposedPrice: 150, Reason: "Дорогая деталь"}, e.flows.last)

	w, _ = e.do(t, http.MethodPost, "/api/requests/7/counter", tok, map[string]interface{}{"proposed_price": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, []string{"accept[50,7]", "reject[50,7]", "reject[50,7]", "counter[50,7]"}, e.flows.calls)
}

func TestActions_RoleAndIDChecks(t *testing.T) {
	e := setup(t, 100)
	client := e.token(t, 7, entity.RoleClient)
	tech := e.token(t, 50, entity.RoleTechnician)

	w, body := e.do(t, http.MethodPost, "/api/requests/7/accept", client, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	w, _ = e.do(t, http.MethodPost, "/api/requests/7/finalize", tech, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/requests/abc/accept", tech, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/requests/7/offers/0/accept", client, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, e.flows.calls)
}

func TestClientActions(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 7, entity.RoleClient)

	w, _ := e.do(t, http.MethodPost, "/api/requests/3/offers/20/accept", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/requests/3/offers/21/reject", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/requests/3/finalize", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/requests/3/rate", tok, map[string]int{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = e.do(t, http.MethodPost, "/api/requests/3/rate", tok, map[string]int{"rating": 5})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := e.do(t, http.MethodPost, "/api/requests", tok, map[string]interface{}{"description": "Починить кран", "offered_price": 120})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, body.Success)

	assert.Equal(t, []string{
		"client_accept[7,3,20]", "client_reject[7,3,21]", "finalize[7,3]", "rate[7,3]", "create[7]",
	}, e.flows.calls)
}

func TestActions_FlowErrorsMapToStatus(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 50, entity.RoleTechnician)

	e.flows.err = apperror.ErrActionInFlight
	w, body := e.do(t, http.MethodPost, "/api/requests/7/accept", tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", body.Error.Code)

	e.flows.err = apperror.New(apperror.ErrCodeUpstream, "сервер недоступен")
	w, _ = e.do(t, http.MethodPost, "/api/requests/7/accept", tok, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestReload(t *testing.T) {
	e := setup(t, 100)
	w, _ := e.do(t, http.MethodPost, "/api/requests/reload", e.token(t, 7, entity.RoleClient), nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, e.sessions.loads)
}

func TestRateLimit(t *testing.T) {
	e := setup(t, 2)
	tok := e.token(t, 50, entity.RoleTechnician)

	for i := 0; i < 2; i++ {
		w, _ := e.do(t, http.MethodPost, "/api/requests/7/accept", tok, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, body := e.do(t, http.MethodPost, "/api/requests/7/accept", tok, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)

	// чтение не ограничено
	w, _ = e.do(t, http.MethodGet, "/api/requests/views", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChats(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 7, entity.RoleClient)

	w, _ := e.do(t, http.MethodGet, "/api/chats/9/messages", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/chats/404/messages", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/chats/9/messages", tok, map[string]string{"content": "Когда приедете?"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/chats/9/messages", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodDelete, "/api/chats/9/watch", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{9}, e.chats.closed)
}

func TestAccountEnsure(t *testing.T) {
	e := setup(t, 100)
	bootstrap, err := e.tokens.Issue(service.IdentityClaims{
		ExternalID: "auth0|abc", Email: "tech@example.com", Name: "Иван", Role: entity.RoleTechnician,
	}, time.Minute)
	require.NoError(t, err)

	w, _ := e.do(t, http.MethodPost, "/api/account/ensure", bootstrap, map[string]string{"specialty": "Ноутбуки"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, account.EnsureUserInput{
		ExternalID: "auth0|abc", Email: "tech@example.com", Name: "Иван", Role: entity.RoleTechnician, Specialty: "Ноутбуки",
	}, e.accounts.got)

	// токен без ext не подходит для регистрации
	w, _ = e.do(t, http.MethodPost, "/api/account/ensure", e.token(t, 7, entity.RoleClient), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// а токен без sub не подходит для остальных маршрутов
	w, _ = e.do(t, http.MethodGet, "/api/requests/views", bootstrap, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationRequest(t *testing.T) {
	e := setup(t, 100)
	tok := e.token(t, 7, entity.RoleClient)

	w, body := e.do(t, http.MethodGet, "/api/notifications/1/request", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"request_id":31}`, string(body.Data))

	w, _ = e.do(t, http.MethodGet, "/api/notifications/3/request", tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWS_RejectsMissingOrInvalidToken(t *testing.T) {
	e := setup(t, 100)

	w, _ := e.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/ws?token=nope", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	e := setup(t, 100)
	req := httptest.NewRequest(http.MethodOptions, "/api/requests/views", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
