package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
	"github.com/billsight/billsight-client/internal/metrics"
)

const (
	MsgUnexpectedError = "An unexpected error occurred. Please try again."
	MsgProcessFailed   = "Failed to process document"
	MsgAnalyzeFailed   = "Failed to analyze bills"
)

var (
	ErrSubmissionInFlight = errors.New("workflow: a submission is already in flight")
	ErrNotIdle            = errors.New("workflow: dismiss or retry before submitting again")
	ErrInvalidTransition  = errors.New("workflow: invalid stage transition")
)

// Clearer is implemented by the buffers a submission was built from.
type Clearer interface {
	Clear()
}

// WorkflowState is a point-in-time view of a SubmissionWorkflow.
type WorkflowState struct {
	Stage      domain.Stage
	Kind       domain.SubmissionKind
	Message    string
	Result     *domain.SubmissionResult
	Generation uint64
	RunID      string
}

// Observer is notified of every applied transition. It runs under the
// workflow lock and must not call back into the workflow.
type Observer func(WorkflowState)

// SubmissionWorkflow drives one submission at a time through
// idle → uploading → processing → generating → complete, with error reachable
// from every in-flight stage.
//
// Each accepted submission gets a new generation. Transitions coming from a
// run whose generation is no longer current are discarded, so a Reset while a
// request is outstanding leaves the request running but ignores its outcome.
type SubmissionWorkflow struct {
	docs    ports.DocumentAPI
	saver   ports.FileSaver
	session *SessionStore
	log     zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	observer   Observer
	stage      domain.Stage
	kind       domain.SubmissionKind
	message    string
	result     *domain.SubmissionResult
	generation uint64
	runID      string
	sources    []Clearer
}

func NewSubmissionWorkflow(docs ports.DocumentAPI, saver ports.FileSaver, session *SessionStore, log zerolog.Logger) *SubmissionWorkflow {
	return &SubmissionWorkflow{
		docs:    docs,
		saver:   saver,
		session: session,
		log:     log,
		now:     time.Now,
		stage:   domain.StageIdle,
	}
}

// OnTransition registers the observer, replacing any previous one.
func (w *SubmissionWorkflow) OnTransition(fn Observer) {
	w.mu.Lock()
	w.observer = fn
	w.mu.Unlock()
}

// State returns the current state.
func (w *SubmissionWorkflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Submit starts a run for req. The guard runs synchronously: a rejected call
// changes nothing and issues no network call. sources are cleared on Dismiss.
//
// The returned channel receives the terminal result if this run's outcome was
// applied, and is closed when the run ends.
func (w *SubmissionWorkflow) Submit(ctx context.Context, req domain.SubmissionRequest, sources ...Clearer) (<-chan domain.SubmissionResult, error) {
	w.mu.Lock()
	switch {
	case w.stage.InFlight():
		w.mu.Unlock()
		metrics.SubmissionsRejectedTotal.WithLabelValues("in_flight").Inc()
		return nil, ErrSubmissionInFlight
	case w.stage != domain.StageIdle:
		w.mu.Unlock()
		metrics.SubmissionsRejectedTotal.WithLabelValues("not_idle").Inc()
		return nil, ErrNotIdle
	}
	if err := req.Validate(); err != nil {
		w.mu.Unlock()
		metrics.SubmissionsRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("submit: %w", err)
	}
	if !w.session.IsAuthenticated() {
		w.mu.Unlock()
		metrics.SubmissionsRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewAuthError(domain.KindUnauthorized, "not logged in")
	}

	w.generation++
	gen := w.generation
	w.runID = uuid.NewString()
	w.kind = req.Kind
	w.sources = sources
	w.message = ""
	w.result = nil
	w.transitionLocked(domain.StageUploading)
	log := w.runLogger()
	w.mu.Unlock()

	log.Info().Int("files", req.FileCount()).Msg("submission started")

	done := make(chan domain.SubmissionResult, 1)
	go w.run(ctx, gen, w.session.Token(), req, done, log)
	return done, nil
}

// Dismiss acknowledges a completed run: complete → idle, clearing the
// buffers the submission was built from.
func (w *SubmissionWorkflow) Dismiss() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != domain.StageComplete {
		return fmt.Errorf("%w: dismiss from %s", ErrInvalidTransition, w.stage)
	}
	for _, src := range w.sources {
		src.Clear()
	}
	w.sources = nil
	w.result = nil
	w.transitionLocked(domain.StageIdle)
	return nil
}

// Retry leaves the error stage without resubmitting. Buffers are untouched so
// the same files can be submitted again.
func (w *SubmissionWorkflow) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != domain.StageError {
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, w.stage)
	}
	w.message = ""
	w.result = nil
	w.transitionLocked(domain.StageIdle)
	return nil
}

// Reset returns to idle from any stage. An outstanding request keeps running
// but its result is ignored.
func (w *SubmissionWorkflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage.InFlight() {
		log := w.runLogger()
		log.Info().Str("stage", string(w.stage)).Msg("in-flight submission abandoned")
	}
	w.generation++
	w.message = ""
	w.result = nil
	w.sources = nil
	w.transitionLocked(domain.StageIdle)
}

func (w *SubmissionWorkflow) run(ctx context.Context, gen uint64, token string, req domain.SubmissionRequest, done chan<- domain.SubmissionResult, log zerolog.Logger) {
	defer close(done)
	start := w.now()
	kind := string(req.Kind)
	defer func() {
		metrics.SubmissionDuration.WithLabelValues(kind).Observe(w.now().Sub(start).Seconds())
	}()

	// The request is handed to the transport right after this marker.
	if !w.advance(gen, domain.StageProcessing) {
		w.discard(kind, log)
		return
	}

	dl, err := w.dispatch(ctx, token, req)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthorized && w.current(gen) {
			w.dropToken(ctx, token, log)
		}
		log.Warn().Err(err).Msg("submission failed")
		w.finish(ctx, gen, req, nil, "", failureMessage(req.Kind, err), done, log)
		return
	}
	defer dl.Body.Close()

	if !w.advance(gen, domain.StageGenerating) {
		w.discard(kind, log)
		return
	}

	payload, err := io.ReadAll(dl.Body)
	if err != nil {
		log.Warn().Err(err).Msg("reading response body failed")
		w.finish(ctx, gen, req, nil, "", MsgUnexpectedError, done, log)
		return
	}

	filename := dl.Filename
	if filename == "" {
		filename = req.DefaultFilename()
	}
	w.finish(ctx, gen, req, payload, filename, "", done, log)
}

func (w *SubmissionWorkflow) dispatch(ctx context.Context, token string, req domain.SubmissionRequest) (*ports.Download, error) {
	switch req.Kind {
	case domain.KindSingle:
		return w.docs.ProcessDocument(ctx, token, *req.File)
	case domain.KindAnalysis:
		return w.docs.AnalyzeBills(ctx, token, req.Purchase, req.Sales)
	default:
		return nil, domain.ErrUnknownSubmission
	}
}

// current reports whether gen is still the live generation.
func (w *SubmissionWorkflow) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return gen == w.generation
}

// dropToken ends the session the run was dispatched with. A session adopted
// since then is left alone.
func (w *SubmissionWorkflow) dropToken(ctx context.Context, token string, log zerolog.Logger) {
	cleared, err := w.session.ClearToken(context.WithoutCancel(ctx), token)
	if cleared {
		metrics.SessionClearsTotal.WithLabelValues("unauthorized").Inc()
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to remove persisted token")
	}
}

// advance applies an in-flight stage marker if gen is still current.
func (w *SubmissionWorkflow) advance(gen uint64, next domain.Stage) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		return false
	}
	return w.transitionLocked(next)
}

// finish applies the terminal stage for gen. On success the payload is saved
// before the workflow enters complete; a failed save lands in error instead.
// The save runs outside the lock, so gen is checked again afterwards.
func (w *SubmissionWorkflow) finish(ctx context.Context, gen uint64, req domain.SubmissionRequest, payload []byte, filename, failure string, done chan<- domain.SubmissionResult, log zerolog.Logger) {
	kind := string(req.Kind)
	if !w.current(gen) {
		w.discard(kind, log)
		return
	}

	var res domain.SubmissionResult
	if failure == "" {
		path, err := w.saver.Save(ctx, filename, payload)
		if err != nil {
			log.Error().Err(err).Str("filename", filename).Msg("saving result failed")
			failure = fmt.Sprintf("Could not save %s: %v", filename, err)
		} else {
			res = domain.SubmissionResult{Success: true, Payload: payload, Filename: filename, SavedPath: path}
		}
	}

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		if res.Success {
			log.Info().Str("path", res.SavedPath).Msg("run reset while saving, file kept")
		}
		w.discard(kind, log)
		return
	}

	if failure != "" {
		res = domain.SubmissionResult{Message: failure}
		w.message = failure
		w.result = &res
		w.transitionLocked(domain.StageError)
		w.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(kind, "error").Inc()
		log.Info().Str("message", failure).Msg("submission ended in error")
	} else {
		w.result = &res
		w.transitionLocked(domain.StageComplete)
		w.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(kind, "success").Inc()
		log.Info().Str("filename", filename).Str("path", res.SavedPath).Int("bytes", len(payload)).Msg("submission complete")
	}

	done <- res
}

func (w *SubmissionWorkflow) discard(kind string, log zerolog.Logger) {
	metrics.SubmissionsTotal.WithLabelValues(kind, "stale").Inc()
	log.Debug().Msg("stale submission result discarded")
}

// transitionLocked moves to next when the table allows it. Idle is always
// reachable so Reset works from any stage.
func (w *SubmissionWorkflow) transitionLocked(next domain.Stage) bool {
	if next != domain.StageIdle && !w.stage.CanTransitionTo(next) {
		w.log.Error().Str("from", string(w.stage)).Str("to", string(next)).Msg("invalid stage transition")
		return false
	}
	w.stage = next
	if w.observer != nil {
		w.observer(w.snapshotLocked())
	}
	return true
}

func (w *SubmissionWorkflow) snapshotLocked() WorkflowState {
	st := WorkflowState{
		Stage:      w.stage,
		Kind:       w.kind,
		Message:    w.message,
		Generation: w.generation,
		RunID:      w.runID,
	}
	if w.result != nil {
		r := *w.result
		st.Result = &r
	}
	return st
}

func (w *SubmissionWorkflow) runLogger() zerolog.Logger {
	return w.log.With().
		Str("run_id", w.runID).
		Uint64("generation", w.generation).
		Str("kind", string(w.kind)).
		Logger()
}

// failureMessage prefers the server's structured message, then a per-kind
// fallback. Transport failures get the generic unexpected-error text.
func failureMessage(kind domain.SubmissionKind, err error) string {
	var ae *domain.AuthError
	if !errors.As(err, &ae) || ae.Kind == domain.KindNetwork {
		return MsgUnexpectedError
	}
	if ae.Detail != "" {
		return ae.Detail
	}
	if kind == domain.KindAnalysis {
		return MsgAnalyzeFailed
	}
	return MsgProcessFailed
}
