// Package batch orchestrates a redaction run: it discovers input files,
// schedules one job per document under a concurrency cap, drives each job
// through the submit/poll/fetch lifecycle and aggregates the outcomes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/transcriptops/redactor/pkg/adapters"
	"github.com/transcriptops/redactor/pkg/config"
	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/metrics"
	"github.com/transcriptops/redactor/pkg/models"
	"github.com/transcriptops/redactor/pkg/redaction"
	"github.com/transcriptops/redactor/pkg/retrypolicy"
)

// fileRetryBase is the first delay before a whole-document restart.
const fileRetryBase = 2 * time.Second

// ServiceClient is the slice of the redaction client a job needs.
type ServiceClient interface {
	Submit(ctx context.Context, doc *models.Document) (string, error)
	Poll(ctx context.Context, handle string) (*redaction.OperationStatus, error)
	FetchResult(ctx context.Context, handle string) ([]redaction.RedactedTurn, error)
}

// ArtifactWriter decides skips and persists redacted documents.
type ArtifactWriter interface {
	ShouldProcess(docID string) bool
	Write(doc *models.Document) error
}

// jobRunner drives a single job to a terminal state. One runner is shared by
// all scheduler slots; it holds no per-job state.
type jobRunner struct {
	client          ServiceClient
	writer          ArtifactWriter
	initialInterval time.Duration
	maxInterval     time.Duration
	pollFactor      float64
	pollTimeout     time.Duration
	maxFileRetries  int
	fileRetry       retrypolicy.Policy
	logger          logger.Logger
}

func newJobRunner(cfg *config.Config, client ServiceClient, writer ArtifactWriter, log logger.Logger) *jobRunner {
	return &jobRunner{
		client:          client,
		writer:          writer,
		initialInterval: cfg.InitialPollInterval,
		maxInterval:     cfg.MaxPollInterval,
		pollFactor:      cfg.HTTPBackoffFactor,
		pollTimeout:     cfg.PollTimeout,
		maxFileRetries:  cfg.MaxFileRetries,
		fileRetry: retrypolicy.Policy{
			Base:   fileRetryBase,
			Factor: cfg.HTTPBackoffFactor,
			Max:    cfg.MaxPollInterval,
			Jitter: retrypolicy.DefaultJitterFraction,
		},
		logger: log,
	}
}

// run drives a job until it succeeds or its file-level retries are exhausted.
// Every restart begins from a fresh submission; the parsed document is reused
// but nothing from the failed operation is.
func (r *jobRunner) run(ctx context.Context, job *models.Job) error {
	for {
		err := r.attempt(ctx, job)
		if err == nil {
			job.State = models.StateSucceeded
			return nil
		}

		job.LastErr = err
		metrics.JobFailures.WithLabelValues(errorType(err)).Inc()

		if ctx.Err() != nil {
			job.State = models.StateFailed
			return err
		}
		if !fileRetryable(err) {
			job.State = models.StateFailed
			return err
		}
		if job.Attempt >= r.maxFileRetries {
			job.State = models.StateFailed
			return fmt.Errorf("giving up on %s after %d attempts: %w", job.Document.ID, job.Attempt, err)
		}

		delay := r.fileRetry.Delay(job.Attempt, 0)
		r.logger.Notice("Document %s failed attempt %d/%d, restarting in %s: %v",
			job.Document.ID, job.Attempt, r.maxFileRetries, delay.Round(time.Millisecond), err)
		metrics.FileRetries.Inc()

		if err := sleepContext(ctx, delay); err != nil {
			job.State = models.StateFailed
			return fmt.Errorf("restart of %s interrupted: %w", job.Document.ID, err)
		}
		job.Reset()
	}
}

// attempt is one full pass through the job lifecycle. Any error aborts the
// attempt; run decides whether a restart follows.
func (r *jobRunner) attempt(ctx context.Context, job *models.Job) error {
	doc := job.Document

	job.State = models.StateSubmitting
	r.logger.InfoWithStage(logger.Submit, "Submitting document %s (%d turns, attempt %d)", doc.ID, doc.TurnCount(), job.Attempt)
	handle, err := r.client.Submit(ctx, doc)
	if err != nil {
		return err
	}
	job.OperationHandle = handle

	job.State = models.StatePolling
	if err := r.awaitCompletion(ctx, job); err != nil {
		return err
	}

	job.State = models.StateFetching
	turns, err := r.client.FetchResult(ctx, job.OperationHandle)
	if err != nil {
		return err
	}

	redacted, err := redaction.MergeResult(doc, turns)
	if err != nil {
		return err
	}

	return r.writer.Write(redacted)
}

// awaitCompletion polls the operation until it succeeds, fails, or the poll
// deadline passes. The wait between polls grows by the backoff factor up to
// the cap and never shrinks on its own; a service wait hint replaces the
// computed interval for the next poll.
func (r *jobRunner) awaitCompletion(ctx context.Context, job *models.Job) error {
	job.PollInterval = r.initialInterval
	deadline := time.Now().Add(r.pollTimeout)

	for {
		if err := sleepContext(ctx, job.PollInterval); err != nil {
			return fmt.Errorf("polling of %s interrupted: %w", job.Document.ID, err)
		}

		status, err := r.client.Poll(ctx, job.OperationHandle)
		if err != nil {
			return err
		}
		metrics.PollsExecuted.Inc()

		switch status.State {
		case redaction.OperationSucceeded:
			return nil
		case redaction.OperationFailed:
			return &redaction.ServiceLogicFailure{Handle: job.OperationHandle, Detail: status.Detail}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("operation for %s still running after %s", job.Document.ID, r.pollTimeout)
		}

		next := time.Duration(float64(job.PollInterval) * r.pollFactor)
		if next > r.maxInterval {
			next = r.maxInterval
		}
		if next < job.PollInterval {
			next = job.PollInterval
		}
		if status.WaitHint > 0 {
			next = status.WaitHint
		}
		r.logger.DebugWithStage(logger.Poll, "Document %s still running, next poll in %s", job.Document.ID, next)
		job.PollInterval = next
	}
}

// fileRetryable reports whether restarting the whole job could recover from
// the failure. A permanent request error recurs deterministically on
// resubmission; everything else (transient exhaustion, service-side failures,
// integrity mismatches) may self-resolve.
func fileRetryable(err error) bool {
	var reqErr *redaction.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Transient
	}
	return true
}

// errorType buckets an error for the failure metrics.
func errorType(err error) string {
	var reqErr *redaction.RequestError
	var svcErr *redaction.ServiceLogicFailure
	var intErr *redaction.IntegrityError
	var adapterErr *adapters.AdapterError

	switch {
	case errors.As(err, &intErr):
		return "integrity"
	case errors.As(err, &svcErr):
		return "service_logic"
	case errors.As(err, &reqErr):
		if reqErr.Transient {
			return "request_transient"
		}
		return "request_permanent"
	case errors.As(err, &adapterErr):
		return "adapter"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// sleepContext waits for the duration or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
