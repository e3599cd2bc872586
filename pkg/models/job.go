package models

import "time"

// JobState represents where a job is in its redaction lifecycle
type JobState int

const (
	// StatePending means the job has been created but not yet admitted to a slot
	StatePending JobState = iota
	// StateSubmitting means the submission request is in flight
	StateSubmitting
	// StatePolling means the job is waiting for the service operation to finish
	StatePolling
	// StateFetching means the result payload is being retrieved
	StateFetching
	// StateSucceeded is terminal: the redacted document was produced
	StateSucceeded
	// StateFailed is terminal once file-level retries are exhausted
	StateFailed
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSubmitting:
		return "submitting"
	case StatePolling:
		return "polling"
	case StateFetching:
		return "fetching"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Job tracks one document's redaction lifecycle. A job is owned by exactly
// one scheduler slot and is never shared between goroutines.
type Job struct {
	Document *Document

	// OperationHandle is the opaque token returned by the service on
	// submission. Empty until a submission succeeds, cleared on each
	// file-level retry.
	OperationHandle string

	State JobState

	// PollInterval is the current wait between polls. It never shrinks
	// within a single attempt and is reset when the job restarts.
	PollInterval time.Duration

	// Attempt is the file-level retry counter, starting at 1.
	Attempt int

	LastErr error
}

// NewJob creates a pending job for a document.
func NewJob(doc *Document) *Job {
	return &Job{Document: doc, State: StatePending, Attempt: 1}
}

// Reset prepares the job for a fresh file-level attempt: a new submission
// with a new handle, not a resume of the previous operation.
func (j *Job) Reset() {
	j.OperationHandle = ""
	j.State = StatePending
	j.PollInterval = 0
	j.Attempt++
}
