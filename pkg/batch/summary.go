package batch

import (
	"sync"

	"github.com/google/uuid"
	"github.com/transcriptops/redactor/pkg/metrics"
)

// Failure records one document that stayed failed after all retries.
type Failure struct {
	FileID string
	Reason string
}

// Summary accumulates per-document outcomes across all concurrent jobs. It is
// the only state shared between scheduler slots and serializes every update;
// each document is recorded exactly once.
type Summary struct {
	mu        sync.Mutex
	runID     string
	succeeded int
	failed    int
	skipped   int
	failures  []Failure
}

// NewSummary creates an empty summary tagged with a fresh run id.
func NewSummary() *Summary {
	return &Summary{runID: uuid.NewString()}
}

// RunID identifies this batch run in logs and the status endpoint.
func (s *Summary) RunID() string {
	return s.runID
}

// RecordSuccess counts a document whose artifact was written.
func (s *Summary) RecordSuccess(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded++
	metrics.DocumentsProcessed.WithLabelValues("succeeded").Inc()
}

// RecordFailure counts a document that exhausted its retries, keeping the
// reason for the end-of-run report. Failures are appended in completion
// order.
func (s *Summary) RecordFailure(fileID string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.failures = append(s.failures, Failure{FileID: fileID, Reason: reason})
	metrics.DocumentsProcessed.WithLabelValues("failed").Inc()
}

// RecordSkip counts a document whose artifact already existed.
func (s *Summary) RecordSkip(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
	metrics.DocumentsProcessed.WithLabelValues("skipped").Inc()
}

// Counts returns the current outcome tallies.
func (s *Summary) Counts() (succeeded, failed, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded, s.failed, s.skipped
}

// Total returns the number of documents with a recorded outcome.
func (s *Summary) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded + s.failed + s.skipped
}

// Failures returns a copy of the recorded failures.
func (s *Summary) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Failure, len(s.failures))
	copy(out, s.failures)
	return out
}

// HasFailures reports whether any document stayed failed. It drives the
// process exit status.
func (s *Summary) HasFailures() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed > 0
}

// Snapshot implements health.StatusSource.
func (s *Summary) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures := make([]map[string]string, 0, len(s.failures))
	for _, f := range s.failures {
		failures = append(failures, map[string]string{"file": f.FileID, "reason": f.Reason})
	}

	return map[string]interface{}{
		"run_id":    s.runID,
		"succeeded": s.succeeded,
		"failed":    s.failed,
		"skipped":   s.skipped,
		"failures":  failures,
	}
}
