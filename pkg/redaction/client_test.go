package redaction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriptops/redactor/pkg/config"
	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/models"
)

func newTestClient(endpoint string, maxRetries int) *Client {
	cfg := &config.Config{
		Endpoint:          endpoint + "/",
		APIKey:            "test-key",
		MaxHTTPRetries:    maxRetries,
		HTTPBackoffFactor: 1,
		HTTPTimeout:       5 * time.Second,
		MaxPollInterval:   time.Second,
	}
	client := NewClient(cfg, &logger.EmptyLogger{})
	// Keep retry waits short in tests.
	client.backoff.Base = time.Millisecond
	client.backoff.Jitter = 0
	return client
}

func sampleDoc() *models.Document {
	return &models.Document{
		ID: "convo",
		Turns: []models.Turn{
			{Participant: "agent", Text: "Hello, my name is John"},
			{Participant: "customer", Text: "Hi John"},
		},
	}
}

func TestSubmitReturnsOperationHandle(t *testing.T) {
	var gotBody submitRequest
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Operation-Location", "http://example.com/operations/42")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	handle, err := newTestClient(server.URL, 3).Submit(context.Background(), sampleDoc())

	require.NoError(t, err)
	assert.Equal(t, "http://example.com/operations/42", handle)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "Conversation", gotBody.Kind)
	require.Len(t, gotBody.AnalysisInput.Conversations, 1)
	conv := gotBody.AnalysisInput.Conversations[0]
	assert.Equal(t, "convo", conv.ID)
	require.Len(t, conv.Items, 2)
	assert.Equal(t, "conversationId_1", conv.Items[0].ID)
	assert.Equal(t, "conversationId_2", conv.Items[1].ID)
	assert.Equal(t, "agent", conv.Items[0].ParticipantID)
}

func TestSubmitMissingHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Submit(context.Background(), sampleDoc())

	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, err.Error(), "operation handle")
}

func TestRequestRetriesTransientStatus(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Operation-Location", "http://example.com/operations/1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	handle, err := newTestClient(server.URL, 5).Submit(context.Background(), sampleDoc())

	require.NoError(t, err)
	assert.NotEmpty(t, handle)
	assert.Equal(t, 4, calls, "three 500s then success fits inside the attempt cap")
}

func TestRequestPermanentStatusNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 5).Submit(context.Background(), sampleDoc())

	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.False(t, reqErr.Transient)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestRequestRetriesExhausted(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Submit(context.Background(), sampleDoc())

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, reqErr.Transient)
}

func TestPollMapsStatuses(t *testing.T) {
	cases := []struct {
		body string
		want OperationState
	}{
		{`{"status": "notStarted"}`, OperationRunning},
		{`{"status": "running"}`, OperationRunning},
		{`{"status": "succeeded"}`, OperationSucceeded},
		{`{"status": "failed", "error": {"message": "blew up"}}`, OperationFailed},
		{`{"status": "cancelled"}`, OperationFailed},
	}

	for _, tc := range cases {
		body := tc.body
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			_, _ = w.Write([]byte(body))
		}))

		status, err := newTestClient(server.URL, 3).Poll(context.Background(), server.URL+"/op")
		server.Close()

		require.NoError(t, err, body)
		assert.Equal(t, tc.want, status.State, body)
		assert.Equal(t, 7*time.Second, status.WaitHint, body)
	}
}

func TestPollCarriesFailureDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "failed", "error": {"code": "Internal", "message": "blew up"}}`))
	}))
	defer server.Close()

	status, err := newTestClient(server.URL, 3).Poll(context.Background(), server.URL+"/op")

	require.NoError(t, err)
	assert.Equal(t, OperationFailed, status.State)
	assert.Equal(t, "blew up", status.Detail)
}

func TestFetchResultParsesRedactedTurns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "succeeded",
			"tasks": {"items": [{"results": {"conversations": [{
				"id": "convo",
				"conversationItems": [
					{"id": "conversationId_1", "redactedContent": {"text": "Hello, my name is ****"}},
					{"id": "conversationId_2", "redactedContent": {"text": "Hi ****"}}
				]
			}]}}]}
		}`))
	}))
	defer server.Close()

	turns, err := newTestClient(server.URL, 3).FetchResult(context.Background(), server.URL+"/op")

	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RedactedTurn{ID: "conversationId_1", Text: "Hello, my name is ****"}, turns[0])
}

func TestFetchResultWithoutConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "succeeded", "tasks": {"items": []}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).FetchResult(context.Background(), server.URL+"/op")

	var svcErr *ServiceLogicFailure
	require.ErrorAs(t, err, &svcErr)
}

func TestRequestCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL, 3).Submit(ctx, sampleDoc())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetryAfterHint(t *testing.T) {
	header := http.Header{}
	assert.Equal(t, time.Duration(0), retryAfterHint(header))

	header.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, retryAfterHint(header))

	header.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	assert.Equal(t, time.Duration(0), retryAfterHint(header))

	header.Set("Retry-After", "-1")
	assert.Equal(t, time.Duration(0), retryAfterHint(header))
}
