package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/transcriptops/redactor/pkg/adapters"
	"github.com/transcriptops/redactor/pkg/config"
	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/metrics"
	"github.com/transcriptops/redactor/pkg/models"
	"github.com/transcriptops/redactor/pkg/output"
	"github.com/transcriptops/redactor/pkg/redaction"
)

// Service runs one batch of transcript files against the redaction service.
type Service struct {
	config  *config.Config
	parser  *adapters.Parser
	writer  ArtifactWriter
	runner  *jobRunner
	summary *Summary
	logger  logger.Logger
}

// NewService wires the parser, service client and writer for a run.
func NewService(cfg *config.Config, log logger.Logger) (*Service, error) {
	writer, err := output.NewWriter(cfg.OutputDir, log)
	if err != nil {
		return nil, err
	}

	client := redaction.NewClient(cfg, log)
	return &Service{
		config:  cfg,
		parser:  adapters.NewParser(cfg, log),
		writer:  writer,
		runner:  newJobRunner(cfg, client, writer, log),
		summary: NewSummary(),
		logger:  log,
	}, nil
}

// Summary exposes the run's outcome aggregator, also used as the status
// source for the health server.
func (s *Service) Summary() *Summary {
	return s.summary
}

// Run processes every supported file in the input directory and blocks until
// all documents reach a terminal outcome or the context is cancelled. The
// returned summary always reflects every discovered document exactly once.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	s.logger.Notice("Starting run %s: input=%s output=%s concurrency=%d",
		s.summary.RunID(), s.config.InputDir, s.config.OutputDir, s.config.MaxConcurrency)

	docs, err := s.collectDocuments()
	if err != nil {
		return s.summary, err
	}

	var group errgroup.Group
	group.SetLimit(s.config.MaxConcurrency)
	for _, doc := range docs {
		doc := doc
		group.Go(func() error {
			s.processDocument(ctx, doc)
			// A failed document is an outcome, not a reason to stop the batch.
			return nil
		})
	}
	_ = group.Wait()

	s.report(time.Since(started))
	return s.summary, nil
}

// collectDocuments discovers and parses every supported input file. Files an
// adapter rejects are recorded as failures here; parse errors never consume a
// scheduler slot. Documents whose artifact already exists are skipped before
// scheduling.
func (s *Service) collectDocuments() ([]*models.Document, error) {
	entries, err := os.ReadDir(s.config.InputDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !adapters.Supported(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	s.logger.Info("Discovered %d input file(s) in %s", len(names), s.config.InputDir)

	var docs []*models.Document
	for _, name := range names {
		path := filepath.Join(s.config.InputDir, name)
		parsed, err := s.parser.Parse(path)
		if err != nil {
			s.logger.ErrorWithStage(logger.Adapt, "Rejected %s: %v", name, err)
			metrics.AdapterErrors.Inc()
			s.summary.RecordFailure(name, err.Error())
			continue
		}
		for _, doc := range parsed {
			if !s.writer.ShouldProcess(doc.ID) {
				s.logger.Info("Skipping %s: artifact already exists", doc.ID)
				s.summary.RecordSkip(doc.ID)
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// processDocument drives one document to a terminal outcome and records it.
func (s *Service) processDocument(ctx context.Context, doc *models.Document) {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()
	started := time.Now()

	// Another run may have produced the artifact while this document waited
	// for a slot.
	if !s.writer.ShouldProcess(doc.ID) {
		s.logger.Info("Skipping %s: artifact already exists", doc.ID)
		s.summary.RecordSkip(doc.ID)
		return
	}

	job := models.NewJob(doc)
	if err := s.runner.run(ctx, job); err != nil {
		s.logger.Error("Document %s failed: %v", doc.ID, err)
		s.summary.RecordFailure(doc.ID, err.Error())
		return
	}

	metrics.DocumentProcessingTime.Observe(time.Since(started).Seconds())
	s.logger.Info("Document %s redacted in %s", doc.ID, time.Since(started).Round(time.Millisecond))
	s.summary.RecordSuccess(doc.ID)
}

// report logs the end-of-run summary, one line per failure.
func (s *Service) report(elapsed time.Duration) {
	succeeded, failed, skipped := s.summary.Counts()
	s.logger.Notice("Run %s finished in %s: %d succeeded, %d failed, %d skipped",
		s.summary.RunID(), elapsed.Round(time.Second), succeeded, failed, skipped)
	for _, f := range s.summary.Failures() {
		s.logger.Error("  %s: %s", f.FileID, f.Reason)
	}
}
