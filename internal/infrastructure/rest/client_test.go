package rest_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/domain/valueobject"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/rest"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	idem   string
	body   string
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*rest.Client, *[]recorded) {
	t.Helper()
	var log []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log = append(log, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			idem:   r.Header.Get("Idempotency-Key"),
			body:   string(body),
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return rest.NewClient(srv.URL+"/", rest.StaticToken("service-token"), time.Second), &log
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRequestRepository_ListScopesClient(t *testing.T) {
	client, log := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": 1, "client_id": 7, "description": "Принтер", "offered_price": 100, "status": 2},
		})
	})
	repo := rest.NewRequestRepository(client)

	list, err := repo.List(context.Background(), repository.RequestScope{Role: entity.RoleClient, ActorID: 7})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, valueobject.RequestPending, list[0].Status)

	_, err = repo.List(context.Background(), repository.RequestScope{Role: entity.RoleTechnician, ActorID: 50})
	require.NoError(t, err)

	assert.Equal(t, "client_id=7", (*log)[0].query)
	assert.Equal(t, "", (*log)[1].query)
	assert.Equal(t, "Bearer service-token", (*log)[0].auth)
}

func TestRequestRepository_UpdateStatusUsesStatusSubpath(t *testing.T) {
	client, log := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 3, "offered_price": 10, "status": 5})
	})

	ctx := rest.WithToken(context.Background(), "user-token")
	got, err := rest.NewRequestRepository(client).UpdateStatus(ctx, 3, valueobject.RequestAcceptedByTech)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestAcceptedByTech, got.Status)

	rec := (*log)[0]
	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, "/requests/3/status", rec.path)
	assert.JSONEq(t, `{"status":5}`, rec.body)
	assert.Equal(t, "Bearer user-token", rec.auth)
}

func TestOfferRepository_CreateSendsIdempotencyKey(t *testing.T) {
	client, log := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": 9, "request_id": 1, "technician_id": 50, "proposed_price": 100, "status": 5})
	})

	draft, err := entity.NewOfferDraft(1, 50, 100, "ok", valueobject.OfferAcceptedByTech)
	require.NoError(t, err)

	offer, err := rest.NewOfferRepository(client).Create(context.Background(), draft, "01HZX")
	require.NoError(t, err)
	assert.Equal(t, int64(9), offer.ID)
	assert.Equal(t, valueobject.OfferAcceptedByTech, offer.Status)

	rec := (*log)[0]
	assert.Equal(t, "/offers", rec.path)
	assert.Equal(t, "01HZX", rec.idem)
	assert.JSONEq(t, `{"request_id":1,"technician_id":50,"proposed_price":100,"message":"ok","status":5}`, rec.body)
}

func TestOfferRepository_Delete(t *testing.T) {
	client, log := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, rest.NewOfferRepository(client).Delete(context.Background(), 9))
	assert.Equal(t, http.MethodDelete, (*log)[0].method)
	assert.Equal(t, "/offers/9", (*log)[0].path)
}

func TestClient_ErrorStatusesMapToAppErrors(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusNotFound, apperror.IsNotFound},
		{http.StatusConflict, apperror.IsConflict},
		{http.StatusForbidden, apperror.IsForbidden},
	}

	for _, tc := range cases {
		client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, map[string]string{"message": "nope"})
		})
		_, err := rest.NewRequestRepository(client).FindByID(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, tc.check(err), "status %d", tc.status)
	}

	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := rest.NewRequestRepository(client).FindByID(context.Background(), 1)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUpstream, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
}

func TestClient_RejectsUnknownStatusInResponse(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 3, "status": 1})
	})

	_, err := rest.NewRequestRepository(client).FindByID(context.Background(), 3)
	assert.Error(t, err, "ENABLED is an account status, not a request status")
}

func TestUserRepository_FindByExternalID(t *testing.T) {
	client, log := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("external_id") == "auth0|1" {
			writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 4, "external_id": "auth0|1", "role": "client", "status": 1}})
			return
		}
		writeJSON(w, http.StatusOK, []interface{}{})
	})
	repo := rest.NewUserRepository(client)

	u, err := repo.FindByExternalID(context.Background(), "auth0|1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), u.ID)
	assert.True(t, u.IsEnabled())

	_, err = repo.FindByExternalID(context.Background(), "auth0|2")
	assert.True(t, apperror.IsNotFound(err))
	assert.Len(t, *log, 2)
}

func TestChatRepository_SendMessage(t *testing.T) {
	client, log := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": 11, "chat_id": 9, "sender_id": 1, "content": "Жду", "sent_at": "2024-05-01T10:00:00Z"})
	})

	msg, err := rest.NewChatRepository(client).SendMessage(context.Background(), &entity.ChatMessage{ChatID: 9, SenderID: 1, Content: "Жду"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), msg.ID)
	assert.Equal(t, "/chats/9/messages", (*log)[0].path)
}
