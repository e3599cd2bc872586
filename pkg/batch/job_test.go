package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/models"
	"github.com/transcriptops/redactor/pkg/redaction"
	"github.com/transcriptops/redactor/pkg/retrypolicy"
)

// fakeClient is a scripted ServiceClient. Each hook receives the 1-based call
// count for its operation.
type fakeClient struct {
	mu       sync.Mutex
	submits  int
	polls    int
	fetches  int
	submitFn func(call int, doc *models.Document) (string, error)
	pollFn   func(call int) (*redaction.OperationStatus, error)
	fetchFn  func(call int) ([]redaction.RedactedTurn, error)
}

func (f *fakeClient) Submit(_ context.Context, doc *models.Document) (string, error) {
	f.mu.Lock()
	f.submits++
	call := f.submits
	f.mu.Unlock()
	if f.submitFn == nil {
		return fmt.Sprintf("op-%d", call), nil
	}
	return f.submitFn(call, doc)
}

func (f *fakeClient) Poll(_ context.Context, _ string) (*redaction.OperationStatus, error) {
	f.mu.Lock()
	f.polls++
	call := f.polls
	f.mu.Unlock()
	if f.pollFn == nil {
		return &redaction.OperationStatus{State: redaction.OperationSucceeded}, nil
	}
	return f.pollFn(call)
}

func (f *fakeClient) FetchResult(_ context.Context, _ string) ([]redaction.RedactedTurn, error) {
	f.mu.Lock()
	f.fetches++
	call := f.fetches
	f.mu.Unlock()
	return f.fetchFn(call)
}

func (f *fakeClient) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

// fakeWriter records written documents in memory.
type fakeWriter struct {
	mu       sync.Mutex
	written  []*models.Document
	existing map[string]bool
	writeErr error
}

func (f *fakeWriter) ShouldProcess(docID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.existing[docID]
}

func (f *fakeWriter) Write(doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, doc)
	return nil
}

func newTestRunner(client ServiceClient, writer ArtifactWriter, maxFileRetries int) *jobRunner {
	return &jobRunner{
		client:          client,
		writer:          writer,
		initialInterval: time.Millisecond,
		maxInterval:     5 * time.Millisecond,
		pollFactor:      2,
		pollTimeout:     time.Second,
		maxFileRetries:  maxFileRetries,
		fileRetry:       retrypolicy.Policy{Base: time.Millisecond, Factor: 2, Max: 10 * time.Millisecond},
		logger:          &logger.EmptyLogger{},
	}
}

func testDocument() *models.Document {
	return &models.Document{
		ID:     "convo",
		Source: "convo.csv",
		Turns: []models.Turn{
			{Participant: "agent", Text: "Hello, my name is John", Timestamp: "2024-01-01T10:00:00Z"},
			{Participant: "customer", Text: "Hi John"},
		},
	}
}

func redactedTurnsFor(doc *models.Document) []redaction.RedactedTurn {
	turns := make([]redaction.RedactedTurn, 0, len(doc.Turns))
	for i := range doc.Turns {
		turns = append(turns, redaction.RedactedTurn{
			ID:   fmt.Sprintf("conversationId_%d", i+1),
			Text: fmt.Sprintf("redacted %d", i+1),
		})
	}
	return turns
}

func TestRunWritesRedactedDocument(t *testing.T) {
	doc := testDocument()
	client := &fakeClient{
		pollFn: func(call int) (*redaction.OperationStatus, error) {
			if call == 1 {
				return &redaction.OperationStatus{State: redaction.OperationRunning}, nil
			}
			return &redaction.OperationStatus{State: redaction.OperationSucceeded}, nil
		},
		fetchFn: func(int) ([]redaction.RedactedTurn, error) {
			return redactedTurnsFor(doc), nil
		},
	}
	writer := &fakeWriter{}
	runner := newTestRunner(client, writer, 3)

	job := models.NewJob(doc)
	err := runner.run(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, models.StateSucceeded, job.State)
	assert.Equal(t, 1, client.submitCount())
	require.Len(t, writer.written, 1)
	got := writer.written[0]
	assert.Equal(t, "convo", got.ID)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "redacted 1", got.Turns[0].Text)
	assert.Equal(t, "agent", got.Turns[0].Participant)
	assert.Equal(t, "2024-01-01T10:00:00Z", got.Turns[0].Timestamp)
	assert.Equal(t, "redacted 2", got.Turns[1].Text)
}

func TestRunRestartsAfterServiceFailure(t *testing.T) {
	doc := testDocument()
	client := &fakeClient{
		pollFn: func(call int) (*redaction.OperationStatus, error) {
			if call == 1 {
				return &redaction.OperationStatus{State: redaction.OperationFailed, Detail: "internal error"}, nil
			}
			return &redaction.OperationStatus{State: redaction.OperationSucceeded}, nil
		},
		fetchFn: func(int) ([]redaction.RedactedTurn, error) {
			return redactedTurnsFor(doc), nil
		},
	}
	writer := &fakeWriter{}
	runner := newTestRunner(client, writer, 3)

	job := models.NewJob(doc)
	err := runner.run(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 2, client.submitCount(), "second attempt should resubmit from scratch")
	assert.Equal(t, 2, job.Attempt)
	assert.Len(t, writer.written, 1)
}

func TestRunGivesUpAfterMaxFileRetries(t *testing.T) {
	doc := testDocument()
	client := &fakeClient{
		fetchFn: func(int) ([]redaction.RedactedTurn, error) {
			// One turn short of the submitted document, every time.
			return redactedTurnsFor(doc)[:1], nil
		},
	}
	writer := &fakeWriter{}
	runner := newTestRunner(client, writer, 3)

	job := models.NewJob(doc)
	err := runner.run(context.Background(), job)

	require.Error(t, err)
	var intErr *redaction.IntegrityError
	assert.ErrorAs(t, err, &intErr)
	assert.Equal(t, models.StateFailed, job.State)
	assert.Equal(t, 3, client.submitCount())
	assert.Empty(t, writer.written)
}

func TestRunDoesNotRestartPermanentRequestError(t *testing.T) {
	doc := testDocument()
	client := &fakeClient{
		submitFn: func(int, *models.Document) (string, error) {
			return "", &redaction.RequestError{Op: "submit", StatusCode: 400, Err: errors.New("bad request")}
		},
	}
	writer := &fakeWriter{}
	runner := newTestRunner(client, writer, 3)

	job := models.NewJob(doc)
	err := runner.run(context.Background(), job)

	require.Error(t, err)
	assert.Equal(t, 1, client.submitCount(), "a 400 recurs deterministically, restarting cannot help")
	assert.Equal(t, models.StateFailed, job.State)
	assert.Empty(t, writer.written)
}

func TestRunRestartsAfterRequestRetryExhaustion(t *testing.T) {
	doc := testDocument()
	client := &fakeClient{
		submitFn: func(call int, _ *models.Document) (string, error) {
			if call == 1 {
				return "", fmt.Errorf("submit failed after 5 attempts: %w",
					&redaction.RequestError{Op: "submit", StatusCode: 503, Transient: true, Err: errors.New("unavailable")})
			}
			return "op-2", nil
		},
		fetchFn: func(int) ([]redaction.RedactedTurn, error) {
			return redactedTurnsFor(doc), nil
		},
	}
	writer := &fakeWriter{}
	runner := newTestRunner(client, writer, 3)

	job := models.NewJob(doc)
	err := runner.run(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 2, client.submitCount())
	assert.Len(t, writer.written, 1)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	doc := testDocument()
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{
		submitFn: func(int, *models.Document) (string, error) {
			cancel()
			return "", &redaction.RequestError{Op: "submit", Err: context.Canceled}
		},
	}
	writer := &fakeWriter{}
	runner := newTestRunner(client, writer, 3)

	job := models.NewJob(doc)
	err := runner.run(ctx, job)

	require.Error(t, err)
	assert.Equal(t, 1, client.submitCount(), "no restart after shutdown")
	assert.Equal(t, models.StateFailed, job.State)
}

func TestAwaitCompletionGrowsIntervalAndHonorsHint(t *testing.T) {
	doc := testDocument()
	var intervals []time.Duration
	job := models.NewJob(doc)
	job.OperationHandle = "op-1"

	client := &fakeClient{}
	client.pollFn = func(call int) (*redaction.OperationStatus, error) {
		intervals = append(intervals, job.PollInterval)
		switch call {
		case 1, 2:
			return &redaction.OperationStatus{State: redaction.OperationRunning}, nil
		case 3:
			return &redaction.OperationStatus{State: redaction.OperationRunning, WaitHint: 50 * time.Millisecond}, nil
		default:
			return &redaction.OperationStatus{State: redaction.OperationSucceeded}, nil
		}
	}
	runner := newTestRunner(client, &fakeWriter{}, 1)

	err := runner.awaitCompletion(context.Background(), job)

	require.NoError(t, err)
	require.Len(t, intervals, 4)
	assert.Equal(t, time.Millisecond, intervals[0])
	assert.Equal(t, 2*time.Millisecond, intervals[1])
	assert.Equal(t, 4*time.Millisecond, intervals[2])
	assert.Equal(t, 50*time.Millisecond, intervals[3], "service wait hint sets the next poll delay")
}

func TestAwaitCompletionTimesOut(t *testing.T) {
	doc := testDocument()
	job := models.NewJob(doc)
	job.OperationHandle = "op-1"

	client := &fakeClient{
		pollFn: func(int) (*redaction.OperationStatus, error) {
			return &redaction.OperationStatus{State: redaction.OperationRunning}, nil
		},
	}
	runner := newTestRunner(client, &fakeWriter{}, 1)
	runner.pollTimeout = time.Microsecond

	err := runner.awaitCompletion(context.Background(), job)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "still running")
}

func TestErrorTypeBuckets(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&redaction.IntegrityError{DocumentID: "d", Reason: "short"}, "integrity"},
		{&redaction.ServiceLogicFailure{Handle: "op"}, "service_logic"},
		{&redaction.RequestError{Op: "poll", Transient: true, Err: errors.New("timeout")}, "request_transient"},
		{&redaction.RequestError{Op: "submit", StatusCode: 400, Err: errors.New("bad")}, "request_permanent"},
		{fmt.Errorf("wrapped: %w", &redaction.RequestError{Op: "poll", Transient: true, Err: errors.New("x")}), "request_transient"},
		{context.Canceled, "canceled"},
		{errors.New("something else"), "other"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorType(tc.err), "error: %v", tc.err)
	}
}
