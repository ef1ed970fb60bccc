package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	successes int
}

func (o *countingObserver) OnStoreSuccess() { o.successes++ }

func TestCreateSession(t *testing.T) {
	var gotUser, gotTitle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/sessions", r.URL.Path)
		gotUser = r.Header.Get("X-User-Id")

		var body struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotTitle = body.Title

		json.NewEncoder(w).Encode(SessionRecord{ID: "s1", Title: body.Title})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	record, err := client.CreateSession(context.Background(), "user-1", "my chat")
	require.NoError(t, err)

	assert.Equal(t, "s1", record.ID)
	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "my chat", gotTitle)
}

func TestListMessagesMapsSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/sessions/s1/messages", r.URL.Path)
		json.NewEncoder(w).Encode([]MessageRecord{
			{
				ID:      "m1",
				Role:    "assistant",
				Content: "answer",
				Sources: []SourceRecord{{MemoryID: "mem-1", Title: "Note", Score: 0.7}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	records, err := client.ListMessages(context.Background(), "user-1", "s1")
	require.NoError(t, err)

	require.Len(t, records, 1)
	require.Len(t, records[0].Sources, 1)
	assert.Equal(t, "mem-1", records[0].Sources[0].MemoryID)
	assert.InDelta(t, 0.7, records[0].Sources[0].Score, 1e-9)
}

func TestAppendMessage(t *testing.T) {
	var got AppendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/sessions/s1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.AppendMessage(context.Background(), "user-1", "s1", AppendMessageRequest{
		Role:    "user",
		Content: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestDeleteSession(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.DeleteSession(context.Background(), "user-1", "s1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/chat/sessions/s1", gotPath)
}

func TestNonSuccessStatusBecomesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Database not configured", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ListSessions(context.Background(), "user-1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 503, statusErr.StatusCode())
	assert.Contains(t, statusErr.Body, "Database not configured")
}

func TestNetworkFailureIsNotAStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL)
	_, err := client.ListSessions(context.Background(), "user-1")

	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestObserverFiresOnlyOnSuccess(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte("[]"))
		}
	}))
	defer srv.Close()

	obs := &countingObserver{}
	client := NewClient(srv.URL)
	client.Observe(obs)

	_, err := client.ListSessions(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, obs.successes)

	status = http.StatusInternalServerError
	_, err = client.ListSessions(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, 1, obs.successes)
}
