// Package pipeline drives the translation workflow from start to finish:
// upload every source file, start their processing, poll the service for
// translation status, and download and unpack finished translations next
// to their sources.
//
// A run is strictly sequential. Each phase must produce at least one
// usable job before the next phase starts; the inter-round sleep during
// monitoring is the only blocking point besides the HTTP calls themselves.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pavel-te/simple-json-translations/transfer"
	"github.com/pavel-te/simple-json-translations/unpack"
)

// Aggregate outcomes that abort or fail a run as a whole.
var (
	ErrNoUploadsSucceeded    = errors.New("no files were uploaded successfully")
	ErrNoProcessingSucceeded = errors.New("processing could not be started for any file")
	ErrNothingCompleted      = errors.New("no translations completed")
)

// Client is the remote service surface the pipeline drives.
// *transfer.Client implements it; tests install fakes.
type Client interface {
	Upload(ctx context.Context, s transfer.Submission) error
	StartProcessing(ctx context.Context, s transfer.Submission) error
	GetStatus(ctx context.Context, relPath, tag string) (transfer.Status, error)
	DownloadArchive(ctx context.Context, relPath, tag string, w io.Writer) error
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// EventKind classifies pipeline events for rendering.
type EventKind int

const (
	// EventPhase announces a new pipeline phase.
	EventPhase EventKind = iota
	// EventInfo is routine progress.
	EventInfo
	// EventSuccess is a job reaching a good state.
	EventSuccess
	// EventWarning is a problem the run survives.
	EventWarning
	// EventError is a job failing for good.
	EventError
)

// Event is one progress notification from a run.
type Event struct {
	Kind EventKind
	// Job is the affected job; nil for run-level events.
	Job *Job
	// Round is the monitoring round, 0 outside of monitoring.
	Round   int
	Message string
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options tunes a pipeline run.
type Options struct {
	// DryRun walks all phases and state changes without calling the service.
	DryRun bool
	// PollInterval is the pause between status rounds. Default: 5s.
	PollInterval time.Duration
	// MaxRounds is how many status rounds to attempt. Default: 100.
	MaxRounds int
	// TargetDirFor returns the directory receiving a job's translations.
	// Nil means the directory holding the job's source file.
	TargetDirFor func(job Job) string
	// OnEvent receives progress events as the run advances.
	OnEvent func(ev Event)
	// Verbose adds translation statistics for downloaded PO/MO files.
	Verbose bool
}

func (o *Options) effectivePollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return 5 * time.Second
}

func (o *Options) effectiveMaxRounds() int {
	if o.MaxRounds > 0 {
		return o.MaxRounds
	}
	return 100
}

func (o *Options) targetDir(job Job) string {
	if o.TargetDirFor != nil {
		return o.TargetDirFor(job)
	}
	return filepath.Dir(job.SourcePath)
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// JobReport is the final record for one job.
type JobReport struct {
	Job    Job
	Status Status
	// RemoteStatus is the last raw status string the service reported.
	RemoteStatus string
	// Err is the terminal failure reason for failed jobs.
	Err error
	// RetrievalErr is a download or unpack failure for a job whose
	// translation itself completed.
	RetrievalErr error
}

// Result summarizes a run. Reports keep the input job order. A Result is
// returned even when Run's error is non-nil, so callers can always render
// the per-job outcome.
type Result struct {
	Reports   []JobReport
	Completed int
	Failed    int
	TimedOut  int
	// Rounds is how many status rounds actually ran.
	Rounds int
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run drives jobs through upload, processing, monitoring and download.
// The run succeeds if at least one translation completes; jobs that fail
// or time out along the way are reported, not fatal.
func Run(ctx context.Context, client Client, jobs []Job, opts Options) (*Result, error) {
	r := &runner{
		client: client,
		opts:   opts,
		states: make([]*jobState, len(jobs)),
	}
	for i, job := range jobs {
		r.states[i] = &jobState{job: job, status: StatusUnknown}
	}

	if err := r.uploadAll(ctx); err != nil {
		return r.result(), err
	}
	if err := r.processAll(ctx); err != nil {
		return r.result(), err
	}
	if err := r.monitor(ctx); err != nil {
		return r.result(), err
	}

	res := r.result()
	if res.Completed == 0 {
		return res, ErrNothingCompleted
	}
	return res, nil
}

// runner holds the state of one Run invocation.
type runner struct {
	client Client
	opts   Options
	states []*jobState
	rounds int
}

func (r *runner) emit(kind EventKind, job *Job, round int, format string, args ...any) {
	if r.opts.OnEvent == nil {
		return
	}
	r.opts.OnEvent(Event{Kind: kind, Job: job, Round: round, Message: fmt.Sprintf(format, args...)})
}

func (r *runner) result() *Result {
	res := &Result{
		Reports: make([]JobReport, len(r.states)),
		Rounds:  r.rounds,
	}
	for i, st := range r.states {
		res.Reports[i] = JobReport{
			Job:          st.job,
			Status:       st.status,
			RemoteStatus: st.remote,
			Err:          st.err,
			RetrievalErr: st.retrievalErr,
		}
		switch st.status {
		case StatusCompleted:
			res.Completed++
		case StatusFailed:
			res.Failed++
		case StatusTimedOut:
			res.TimedOut++
		}
	}
	return res
}

// ---------------------------------------------------------------------------
// Phase 1: upload
// ---------------------------------------------------------------------------

func (r *runner) uploadAll(ctx context.Context) error {
	r.emit(EventPhase, nil, 0, "Uploading %d file(s)", len(r.states))

	uploaded := 0
	for _, st := range r.states {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.opts.DryRun {
			r.emit(EventInfo, &st.job, 0, "would upload %s (dry-run)", st.job.RelativePath)
			if err := st.advance(StatusQueued); err != nil {
				return err
			}
			uploaded++
			continue
		}
		if err := r.client.Upload(ctx, st.job.submission()); err != nil {
			st.err = err
			if aerr := st.advance(StatusFailed); aerr != nil {
				return aerr
			}
			r.emit(EventError, &st.job, 0, "upload of %s failed: %v", st.job.RelativePath, err)
			continue
		}
		if err := st.advance(StatusQueued); err != nil {
			return err
		}
		uploaded++
		r.emit(EventSuccess, &st.job, 0, "uploaded %s", st.job.RelativePath)
	}

	if uploaded == 0 {
		return ErrNoUploadsSucceeded
	}
	return nil
}

// ---------------------------------------------------------------------------
// Phase 2: start processing
// ---------------------------------------------------------------------------

func (r *runner) processAll(ctx context.Context) error {
	r.emit(EventPhase, nil, 0, "Starting processing")

	started := 0
	for _, st := range r.states {
		if st.status != StatusQueued {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.opts.DryRun {
			r.emit(EventInfo, &st.job, 0, "would start processing of %s (dry-run)", st.job.RelativePath)
			if err := st.advance(StatusInProgress); err != nil {
				return err
			}
			started++
			continue
		}
		if err := r.client.StartProcessing(ctx, st.job.submission()); err != nil {
			st.err = err
			if aerr := st.advance(StatusFailed); aerr != nil {
				return aerr
			}
			r.emit(EventError, &st.job, 0, "starting processing of %s failed: %v", st.job.RelativePath, err)
			continue
		}
		if err := st.advance(StatusInProgress); err != nil {
			return err
		}
		started++
		r.emit(EventSuccess, &st.job, 0, "processing started for %s", st.job.RelativePath)
	}

	if started == 0 {
		return ErrNoProcessingSucceeded
	}
	return nil
}

// ---------------------------------------------------------------------------
// Phase 3: monitor and download
// ---------------------------------------------------------------------------

func (r *runner) monitor(ctx context.Context) error {
	rounds := r.opts.effectiveMaxRounds()
	interval := r.opts.effectivePollInterval()
	r.emit(EventPhase, nil, 0, "Waiting for translations (up to %d checks, every %s)", rounds, interval)

	for round := 1; round <= rounds; round++ {
		r.rounds = round

		pending := 0
		for _, st := range r.states {
			if st.status != StatusInProgress {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.checkJob(ctx, st, round); err != nil {
				return err
			}
			if st.status == StatusInProgress {
				pending++
			}
		}

		if pending == 0 {
			return nil
		}
		if round == rounds {
			break // no sleep after the final round
		}

		r.emit(EventInfo, nil, round, "%d translation(s) still pending, next check in %s", pending, interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	for _, st := range r.states {
		if st.status != StatusInProgress {
			continue
		}
		if err := st.advance(StatusTimedOut); err != nil {
			return err
		}
		r.emit(EventWarning, &st.job, r.rounds, "gave up waiting for %s after %d checks", st.job.RelativePath, r.rounds)
	}
	return nil
}

// checkJob polls one in-progress job and applies the outcome.
func (r *runner) checkJob(ctx context.Context, st *jobState, round int) error {
	if r.opts.DryRun {
		r.emit(EventInfo, &st.job, round, "would download translations for %s (dry-run)", st.job.RelativePath)
		return st.advance(StatusCompleted)
	}

	status, err := r.client.GetStatus(ctx, st.job.RelativePath, st.job.Tag)
	if err != nil {
		st.err = err
		if aerr := st.advance(StatusFailed); aerr != nil {
			return aerr
		}
		r.emit(EventError, &st.job, round, "status check for %s failed: %v", st.job.RelativePath, err)
		return nil
	}

	switch status.State {
	case transfer.NotFound:
		st.err = errors.New("file not known to the service")
		if aerr := st.advance(StatusFailed); aerr != nil {
			return aerr
		}
		r.emit(EventError, &st.job, round, "%s is not known to the service", st.job.RelativePath)
		return nil

	case transfer.Ready:
		st.remote = status.Raw
		r.emit(EventSuccess, &st.job, round, "translation of %s completed", st.job.RelativePath)
		r.retrieve(ctx, st, round)
		return st.advance(StatusCompleted)

	default:
		st.remote = status.Raw
		st.completeness = status.Completeness
		msg := fmt.Sprintf("%s: %s", st.job.RelativePath, status.Raw)
		if status.Completeness > 0 {
			msg += fmt.Sprintf(" (%.0f%%)", status.Completeness)
		}
		r.emit(EventInfo, &st.job, round, "%s", msg)
		return nil
	}
}

// retrieve downloads and unpacks one finished translation bundle. A
// failure here is recorded on the job and surfaced as a warning; it never
// reverts the completed translation state.
func (r *runner) retrieve(ctx context.Context, st *jobState, round int) {
	if err := r.download(ctx, st, round); err != nil {
		st.retrievalErr = err
		r.emit(EventWarning, &st.job, round,
			"translations for %s completed but could not be retrieved: %v", st.job.RelativePath, err)
	}
}

func (r *runner) download(ctx context.Context, st *jobState, round int) error {
	scratch, err := unpack.NewScratch()
	if err != nil {
		return err
	}
	defer scratch.Remove()

	zf, err := os.Create(scratch.ZipPath)
	if err != nil {
		return fmt.Errorf("opening scratch file: %w", err)
	}
	if err := r.client.DownloadArchive(ctx, st.job.RelativePath, st.job.Tag, zf); err != nil {
		zf.Close()
		return err
	}
	if err := zf.Close(); err != nil {
		return err
	}

	if _, err := unpack.Extract(scratch.ZipPath, scratch.Dir); err != nil {
		return err
	}

	target := r.opts.targetDir(st.job)
	moved, err := unpack.Relocate(scratch.Dir, target)
	if err != nil {
		return err
	}
	if len(moved) == 0 {
		r.emit(EventWarning, &st.job, round, "archive for %s contained no translation files", st.job.RelativePath)
		return nil
	}

	for _, m := range moved {
		if m.Overwrote {
			r.emit(EventWarning, &st.job, round, "overwrote existing file %s", m.Path)
		}
		if r.opts.Verbose && unpack.IsGettextFile(m.Path) {
			if total, translated, err := unpack.Stats(m.Path); err == nil {
				r.emit(EventInfo, &st.job, round, "%s: %d/%d messages translated", m.Path, translated, total)
			}
		}
	}
	r.emit(EventInfo, &st.job, round, "placed %d translation file(s) in %s", len(moved), target)
	return nil
}
