// Package engine implements the pipeline orchestrator that drives each
// document through extraction, classification, scoring, deduplication and
// persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/extract"
	"github.com/decimal-labs/leakwatch/internal/fingerprint"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/scoring"
	"github.com/decimal-labs/leakwatch/internal/service"
)

// auditTimeout bounds the best-effort audit write after a document finishes.
const auditTimeout = 5 * time.Second

// Config holds configuration options for the pipeline.
type Config struct {
	// OnResult is called once per document from worker goroutines.
	OnResult func(Result)
	// Extractor and Scorer default to the package defaults when nil.
	Extractor *extract.Extractor
	Scorer    *scoring.Scorer
	RunID     string
	// Budget is passed to the classifier on every call.
	Budget          service.Budget
	Workers         int
	DocumentTimeout time.Duration
	AIEnabled       bool
	// ClassifyWithoutFindings sends documents with no local findings to the
	// classifier as well.
	ClassifyWithoutFindings bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		DocumentTimeout: 60 * time.Second,
		AIEnabled:       true,
		Budget: service.Budget{
			MaxChars: 4000,
			Timeout:  30 * time.Second,
		},
	}
}

// Pipeline orchestrates the processing of documents.
type Pipeline struct {
	store      service.LeakStore
	classifier service.Classifier
	extractor  *extract.Extractor
	scorer     *scoring.Scorer
	locks      *fingerprint.Locker
	logger     *slog.Logger
	now        func() time.Time
	cfg        Config
}

// New creates a pipeline. A nil classifier disables AI classification.
func New(store service.LeakStore, classifier service.Classifier, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", common.ErrInvalidConfig)
	}
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.DocumentTimeout < 0 {
		return nil, fmt.Errorf("%w: negative document timeout", common.ErrInvalidConfig)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	p := &Pipeline{
		store:      store,
		classifier: classifier,
		extractor:  cfg.Extractor,
		scorer:     cfg.Scorer,
		locks:      fingerprint.NewLocker(256),
		logger:     common.OrDefault(logger).With("run_id", cfg.RunID),
		now:        time.Now,
		cfg:        cfg,
	}
	if p.extractor == nil {
		ex, err := extract.New(extract.DefaultOptions())
		if err != nil {
			return nil, err
		}
		p.extractor = ex
	}
	if p.scorer == nil {
		sc, err := scoring.New(scoring.DefaultConfig())
		if err != nil {
			return nil, err
		}
		p.scorer = sc
	}
	return p, nil
}

// RunID identifies this pipeline's entries in the audit log.
func (p *Pipeline) RunID() string {
	return p.cfg.RunID
}

// Result is the terminal state of one document.
type Result struct {
	StartedAt   time.Time
	Err         error
	Record      *model.LeakRecord
	Source      string
	Fingerprint model.Fingerprint
	Outcome     model.Outcome
	// Stage is the last stage reached; for failures it is the stage that failed.
	Stage    model.Stage
	Reason   model.Reason
	Trace    []model.Stage
	Findings []model.Finding
	Duration time.Duration
	Created  bool
	Degraded bool
}

func (r *Result) advance(stage model.Stage) {
	r.Stage = stage
	r.Trace = append(r.Trace, stage)
}

func (r *Result) fail(stage model.Stage, reason model.Reason, err error) Result {
	r.Stage = stage
	r.Reason = reason
	r.Outcome = model.OutcomeFailed
	r.Err = common.NewStageError(stage, reason, err)
	r.Trace = append(r.Trace, model.StageFailed)
	r.Record = nil
	return *r
}

// abort fails the document at its current stage because its context ended.
func (r *Result) abort(err error) Result {
	reason := model.ReasonCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		reason = model.ReasonDeadlineExceeded
	}
	return r.fail(r.Stage, reason, err)
}

// Process drives one document to a terminal outcome. It never returns an
// error: every failure is reported through the Result.
func (p *Pipeline) Process(ctx context.Context, doc model.Document) Result {
	start := p.now()
	docCtx := ctx
	if p.cfg.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		docCtx, cancel = context.WithTimeout(ctx, p.cfg.DocumentTimeout)
		defer cancel()
	}

	res := p.process(docCtx, doc)
	res.StartedAt = start
	res.Duration = p.now().Sub(start)

	p.audit(ctx, res)
	p.logOutcome(res)
	return res
}

func (p *Pipeline) process(ctx context.Context, doc model.Document) Result {
	res := Result{Source: doc.Source}

	res.advance(model.StageReceived)
	if reason, err := validateDocument(doc); err != nil {
		return res.fail(model.StageReceived, reason, err)
	}
	res.Fingerprint = fingerprint.Compute(doc.Text)
	if err := ctx.Err(); err != nil {
		return res.abort(err)
	}

	findings, err := p.extractor.Extract(doc.Text)
	if err != nil {
		return res.fail(model.StageExtracted, model.ReasonExtractionError, err)
	}
	res.advance(model.StageExtracted)
	if err := ctx.Err(); err != nil {
		return res.abort(err)
	}

	res.advance(model.StageClassifying)
	var ai *model.ClassificationResult
	if p.shouldClassify(findings) {
		ai, err = p.classifier.Classify(ctx, service.ClassifyRequest{
			Fingerprint: res.Fingerprint,
			Text:        doc.Text,
			Findings:    findings,
			Budget:      p.cfg.Budget,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res.abort(ctxErr)
			}
			res.Degraded = true
			res.Reason = classifierReason(err)
			res.Err = err
			res.advance(model.StageDegraded)
			ai = nil
		}
	}

	verdict := p.scorer.Evaluate(findings, ai)
	all := findings
	if ai != nil {
		all = slices.Concat(findings, entityFindings(doc.Text, ai, findings))
	}
	res.Findings = all
	res.advance(model.StageScored)
	if err := ctx.Err(); err != nil {
		return res.abort(err)
	}

	res.advance(model.StageDeduped)
	sighting := model.Sighting{
		Fingerprint: res.Fingerprint,
		Source:      doc.Source,
		SeenAt:      p.now(),
		Findings:    all,
		Severity:    verdict.Severity,
		Rationale:   verdict.Rationale,
		Degraded:    res.Degraded,
		AIEnriched:  ai != nil,
	}
	rec, created, err := p.persist(ctx, sighting)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res.abort(ctxErr)
		}
		return res.fail(model.StagePersisted, model.ReasonStorageError, err)
	}

	res.advance(model.StagePersisted)
	res.Record = rec
	res.Created = created
	res.Outcome = model.OutcomePersisted
	if res.Degraded {
		res.Outcome = model.OutcomeDegradedPersisted
	}
	return res
}

func (p *Pipeline) shouldClassify(findings []model.Finding) bool {
	if !p.cfg.AIEnabled || p.classifier == nil {
		return false
	}
	return len(findings) > 0 || p.cfg.ClassifyWithoutFindings
}

// persist is the single commit point. The in-process lock keeps same-content
// documents from racing each other; the store's own concurrency control still
// guards against other processes.
func (p *Pipeline) persist(ctx context.Context, s model.Sighting) (*model.LeakRecord, bool, error) {
	unlock := p.locks.Lock(s.Fingerprint)
	defer unlock()
	return p.store.Upsert(ctx, s)
}

func classifierReason(err error) model.Reason {
	switch {
	case errors.Is(err, common.ErrClassifierTimeout):
		return model.ReasonClassifierTimeout
	case errors.Is(err, common.ErrClassifierRateLimited):
		return model.ReasonClassifierRateLimited
	default:
		return model.ReasonClassifierUnavailable
	}
}

// audit records the outcome in the sightings log. It runs even when the
// document's context was canceled, under its own short deadline.
func (p *Pipeline) audit(ctx context.Context, res Result) {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	err := p.store.RecordSighting(auditCtx, model.SightingLog{
		SeenAt:      res.StartedAt,
		RunID:       p.cfg.RunID,
		Source:      res.Source,
		Fingerprint: res.Fingerprint,
		Outcome:     res.Outcome,
		Stage:       res.Stage,
		Reason:      res.Reason,
		Degraded:    res.Degraded,
	})
	if err != nil {
		p.logger.Warn("Failed to record sighting", "source", res.Source, "error", err)
	}
}

func (p *Pipeline) logOutcome(res Result) {
	attrs := []any{
		"source", res.Source,
		"fingerprint", res.Fingerprint.Short(),
		"outcome", res.Outcome,
		"stage", res.Stage,
		"duration", res.Duration,
	}
	switch res.Outcome {
	case model.OutcomeFailed:
		p.logger.Error("Document failed", append(attrs, "reason", res.Reason, "error", res.Err)...)
	case model.OutcomeDegradedPersisted:
		p.logger.Warn("Document persisted without AI enrichment", append(attrs, "reason", res.Reason)...)
	default:
		counts := model.CountByCategory(res.Findings)
		p.logger.Info("Document persisted",
			append(attrs, "created", res.Created, "findings", len(res.Findings), "categories", counts)...)
	}
}
