package trackerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/credentials"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

var fixedNow = time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ticketJSON(id, key, status string) map[string]any {
	return map[string]any{
		"id":           id,
		"jira_id":      key,
		"project":      "TP1",
		"title":        "Ticket " + key,
		"status":       status,
		"priority":     "High",
		"assignee":     nil,
		"reporter":     "rep",
		"description":  nil,
		"created_date": "2024-05-01T10:00:00Z",
		"updated_date": "2024-05-02T10:00:00Z",
		"due_date":     "2024-06-01",
		"comments": []map[string]any{
			{"id": "c1", "ticket": id, "author": nil, "body": "first", "created_date": "2024-05-02T11:00:00Z"},
		},
	}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *credentials.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore()
	require.NoError(t, store.Save(triage.Credential{Token: "tok", ExpiresAt: fixedNow.Add(time.Hour)}))

	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithRetry(RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	}, opts...)
	client, err := New(srv.URL+"/api", store, opts...)
	require.NoError(t, err)
	return client, store
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", nil)
	require.Error(t, err)
	_, err = New("://", nil)
	require.Error(t, err)
}

func TestClient_GetTicketDecodesEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tickets/TP1-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"data": ticketJSON("1", "TP1-1", "Open")})
	}))

	rec, err := client.GetTicket(context.Background(), "TP1-1")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.LocalID)
	assert.Equal(t, "TP1-1", rec.ExternalKey)
	assert.Nil(t, rec.Assignee)
	assert.Equal(t, "High", *rec.Priority)
	require.NotNil(t, rec.DueAt)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *rec.DueAt)
	require.Len(t, rec.Comments, 1)
	assert.Equal(t, "Unknown User", triage.DisplayAuthor(rec.Comments[0]))
}

func TestClient_ListTickets(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			ticketJSON("1", "TP1-1", "Open"),
			ticketJSON("2", "TP1-2", "Done"),
		}})
	}))

	recs, err := client.ListTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Done", recs[1].Status)
}

func TestClient_SetStatusAndComment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tickets/1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{"data": ticketJSON("1", "TP1-1", body["status"])})
	})
	mux.HandleFunc("/api/tickets/1/comments", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
			"id": "c2", "ticket": "1", "author": "alice", "body": body["body"], "created_date": "2024-05-03T12:00:00Z",
		}})
	})
	client, _ := newTestClient(t, mux)

	rec, err := client.SetTicketStatus(context.Background(), "1", "Done")
	require.NoError(t, err)
	assert.Equal(t, "Done", rec.Status)

	comment, err := client.AddComment(context.Background(), "1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", comment.Body)
	assert.Equal(t, "alice", *comment.Author)
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, triage.ErrNotFound},
		{http.StatusBadRequest, triage.ErrValidation},
		{http.StatusConflict, triage.ErrValidation},
		{http.StatusUnprocessableEntity, triage.ErrValidation},
		{http.StatusUnauthorized, triage.ErrAuth},
		{http.StatusForbidden, triage.ErrAuth},
		{http.StatusInternalServerError, triage.ErrNetwork},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, map[string]any{"error": map[string]any{"code": "X", "message": "boom"}})
			}))
			_, err := client.SetTicketStatus(context.Background(), "1", "Done")
			require.ErrorIs(t, err, tc.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, "boom", apiErr.Message)
		})
	}
}

func TestClient_RetriesIdempotentReads(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	}))

	recs, err := client.ListTickets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.AddComment(context.Background(), "1", "hello")
	require.ErrorIs(t, err, triage.ErrNetwork)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_MalformedBodyIsNetwork(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	_, err := client.GetTicket(context.Background(), "1")
	require.ErrorIs(t, err, triage.ErrNetwork)
}

func TestClient_BadDueDateIsNetwork(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tk := ticketJSON("1", "TP1-1", "Open")
		tk["due_date"] = "soon"
		writeJSON(w, http.StatusOK, map[string]any{"data": tk})
	}))
	_, err := client.GetTicket(context.Background(), "1")
	require.ErrorIs(t, err, triage.ErrNetwork)
}

func TestClient_CredentialChecks(t *testing.T) {
	var calls atomic.Int32
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	}))

	require.NoError(t, store.Clear())
	_, err := client.ListTickets(context.Background())
	require.ErrorIs(t, err, triage.ErrAuth)

	require.NoError(t, store.Save(triage.Credential{Token: "tok", ExpiresAt: fixedNow.Add(-time.Minute)}))
	_, err = client.ListTickets(context.Background())
	require.ErrorIs(t, err, triage.ErrAuth)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(-time.Minute)),
	})
	signed, err := expired.SignedString([]byte("whatever"))
	require.NoError(t, err)
	require.NoError(t, store.Save(triage.Credential{Token: signed}))
	_, err = client.ListTickets(context.Background())
	require.ErrorIs(t, err, triage.ErrAuth)

	assert.EqualValues(t, 0, calls.Load(), "expired credentials must not reach the server")

	require.NoError(t, store.Save(triage.Credential{Token: "opaque"}))
	_, err = client.ListTickets(context.Background())
	require.NoError(t, err)
}

func TestClient_LoginStoresCredential(t *testing.T) {
	expires := fixedNow.Add(time.Hour)
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": "UNAUTHORIZED", "message": "invalid credentials"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"user": map[string]any{"id": "u1", "username": body["username"]},
			"auth": map[string]any{"token": "fresh", "expires_at": expires},
		}})
	}))
	require.NoError(t, store.Clear())

	_, err := client.Login(context.Background(), "alice", "bad")
	require.ErrorIs(t, err, triage.ErrAuth)
	_, err = store.Load()
	require.ErrorIs(t, err, credentials.ErrNoCredential)

	_, err = client.Login(context.Background(), "", "")
	require.ErrorIs(t, err, triage.ErrValidation)

	cred, err := client.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.Token)
	assert.True(t, expires.Equal(cred.ExpiresAt))

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.Token)

	require.NoError(t, client.Logout())
	_, err = store.Load()
	require.ErrorIs(t, err, credentials.ErrNoCredential)
}

func TestClient_DrivesSession(t *testing.T) {
	status := "Open"
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tickets/TP1-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": ticketJSON("1", "TP1-1", status)})
	})
	mux.HandleFunc("/api/tickets/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			status = body["status"]
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": ticketJSON("1", "TP1-1", status)})
	})
	client, _ := newTestClient(t, mux)

	session := triage.NewSession(client)
	require.NoError(t, session.Load(context.Background(), "TP1-1"))
	require.NoError(t, session.ChangeStatus(context.Background(), "Done"))
	snap := session.Snapshot()
	require.NotNil(t, snap.Record)
	assert.Equal(t, "Done", snap.Record.Status)
}
