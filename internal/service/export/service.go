package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/velmark/draftline/internal/lib/logger/sl"
	chans "github.com/velmark/draftline/internal/lib/utils/channels"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
)

// Export drives draft rendering. It accepts submissions
// keyed by draft reference, deduplicates in-flight work
// and processes jobs strictly one at a time through a
// single worker, since the render capability is an
// exclusive external resource.
//
// The instance is constructed once by the composition
// root and passed by reference.
type Export struct {
	// Dependencies
	log      *slog.Logger
	drafts   DraftProvider
	renderer Renderer
	uploader Uploader
	biller   Biller
	probe    DurationProbe

	workDir       string
	renderTimeout time.Duration
	costPerMinute int64
	reapTTL       time.Duration
	reapFreq      time.Duration

	// Job table
	jobsMutex sync.Mutex
	jobs      map[string]*models.ExportJob

	// Worker state
	queue       chan string
	renderMutex sync.Mutex
	runMutex    sync.Mutex
	stopChan    chan struct{}
}

type DraftProvider interface {
	Draft(ctx context.Context, id string) (models.Draft, error)
}

// Renderer is the exclusive external render capability.
// A call may block for minutes; the deadline on ctx is
// the only bound.
type Renderer interface {
	Render(ctx context.Context, draftID string, outputPath string) error
}

type Uploader interface {
	Upload(ctx context.Context, filePath string) (string, error)
}

// Biller deducts points. Insufficient funds is reported
// as false, never as an error.
type Biller interface {
	Deduct(ctx context.Context, credential string, amount int64, reason string) (bool, error)
}

type DurationProbe interface {
	Duration(ctx context.Context, filePath string) (time.Duration, error)
}

func New(
	log *slog.Logger,
	drafts DraftProvider,
	renderer Renderer,
	uploader Uploader,
	biller Biller,
	probe DurationProbe,
	workDir string,
	queueSize int,
	renderTimeout time.Duration,
	costPerMinute int64,
	reapTTL time.Duration,
	reapFreq time.Duration,
) *Export {
	return &Export{
		log:           log,
		drafts:        drafts,
		renderer:      renderer,
		uploader:      uploader,
		biller:        biller,
		probe:         probe,
		workDir:       workDir,
		renderTimeout: renderTimeout,
		costPerMinute: costPerMinute,
		reapTTL:       reapTTL,
		reapFreq:      reapFreq,
		jobs:          make(map[string]*models.ExportJob),
		queue:         make(chan string, queueSize),
		stopChan:      make(chan struct{}, 1),
	}
}

// Submit registers a render request for draftRef.
//
// The draft reference is the idempotency key: while a job
// for it is PENDING or PROCESSING, resubmission is a
// silent no-op. A reference whose previous job reached a
// terminal state may be submitted again.
func (e *Export) Submit(ctx context.Context, draftRef string, credential string) error {
	const op = "Export.Submit"

	log := e.log.With(
		slog.String("op", op),
		slog.String("draftRef", draftRef),
	)

	e.jobsMutex.Lock()

	prev, exists := e.jobs[draftRef]
	if exists && !prev.Status.Terminal() {
		e.jobsMutex.Unlock()
		log.Info("job already live, ignoring submission", slog.String("status", string(prev.Status)))
		return nil
	}

	job := &models.ExportJob{
		DraftRef:   draftRef,
		DraftID:    deriveDraftID(draftRef),
		Status:     models.ExportPending,
		CreatedAt:  time.Now(),
		Credential: credential,
	}
	e.jobs[draftRef] = job
	e.jobsMutex.Unlock()

	// Non-blocking handoff to the worker.
	select {
	case e.queue <- draftRef:
	default:
		e.jobsMutex.Lock()
		if exists {
			e.jobs[draftRef] = prev
		} else {
			delete(e.jobs, draftRef)
		}
		e.jobsMutex.Unlock()

		log.Warn("queue is full, rejecting submission")
		return service.ErrQueueFull
	}

	log.Info("enqueued export job", slog.String("draftID", job.DraftID))

	return nil
}

// Status returns a read-only snapshot of the job for draftRef.
func (e *Export) Status(ctx context.Context, draftRef string) (models.ExportJobView, error) {
	e.jobsMutex.Lock()
	defer e.jobsMutex.Unlock()

	job, ok := e.jobs[draftRef]
	if !ok {
		return models.ExportJobView{}, service.ErrJobNotFound
	}

	if job.Status.Terminal() {
		job.Viewed = true
	}

	return job.View(), nil
}

// Run drains the queue until ctx is cancelled or Stop
// is called. Exactly one job is processed at a time.
func (e *Export) Run(ctx context.Context) error {
	const op = "Export.Run"

	log := e.log.With(
		slog.String("op", op),
	)

	// mutex to prevent multiple run call.
	if !e.runMutex.TryLock() {
		return nil
	}
	defer e.runMutex.Unlock()

	log.Info("start export worker")

	reapTicker := time.NewTicker(e.reapFreq)
	defer reapTicker.Stop()

	for {
		select {
		case draftRef := <-e.queue:
			e.process(ctx, draftRef)
		case <-reapTicker.C:
			e.reapTerminal()
		case <-e.stopChan:
			log.Info("finish export worker")
			return nil
		case <-ctx.Done():
			log.Info("finish export worker")
			return nil
		}
	}
}

// IsRunning returns worker status.
func (e *Export) IsRunning() bool {
	if e.runMutex.TryLock() {
		e.runMutex.Unlock()
		return false
	}
	return true
}

func (e *Export) Stop() {
	chans.Notify(e.stopChan)
}

// process runs the whole render pipeline for one job.
//
// Every stage failure up to publish is terminal for the
// job; billing and cleanup are best-effort by contract.
func (e *Export) process(ctx context.Context, draftRef string) {
	const op = "Export.process"

	log := e.log.With(
		slog.String("op", op),
		slog.String("draftRef", draftRef),
	)

	job := e.setProcessing(draftRef)
	if job == nil {
		log.Error("job missing from table, skipping")
		return
	}

	log.Info("processing export job", slog.String("draftID", job.DraftID))

	// Fetch
	draft, jobDir, err := e.fetch(ctx, job)
	if err != nil {
		log.Error("failed to fetch draft", sl.Err(err))
		e.fail(draftRef, service.ErrFetchFailed)
		return
	}
	defer e.cleanup(log, jobDir)
	e.setProgress(draftRef, 20)

	// Validate
	if draft.Duration() <= 0 {
		log.Warn("draft has no content, refusing to render")
		e.fail(draftRef, service.ErrEmptyTimeline)
		return
	}
	e.setProgress(draftRef, 30)

	// Render
	outputPath := filepath.Join(jobDir, job.DraftID+".mp4")
	if err := e.render(ctx, job.DraftID, outputPath); err != nil {
		switch {
		case errors.Is(err, service.ErrRenderTimeout):
			log.Error("render timed out")
			e.fail(draftRef, service.ErrRenderTimeout)
		case errors.Is(err, service.ErrRenderNoOutput):
			log.Error("render reported success but produced no output")
			e.fail(draftRef, service.ErrRenderNoOutput)
		default:
			log.Error("render failed", sl.Err(err))
			e.fail(draftRef, service.ErrRenderFailed)
		}
		return
	}
	e.setProgress(draftRef, 70)

	// Publish
	resultURL, err := e.uploader.Upload(ctx, outputPath)
	if err != nil {
		log.Error("failed to publish rendered artifact", sl.Err(err))
		e.fail(draftRef, service.ErrPublishFailed)
		return
	}
	e.setProgress(draftRef, 85)

	// Bill. The outcome is logged and discarded by
	// contract: a billing failure never fails the job.
	outcome := e.bill(ctx, job, outputPath)
	switch {
	case !outcome.Attempted:
		log.Info("no billing credential, skipping billing")
	case outcome.Err != nil:
		log.Warn("billing failed", sl.Err(outcome.Err))
	case !outcome.Charged:
		log.Warn("billing rejected", slog.Int64("amount", outcome.Amount))
	default:
		log.Info("billed export", slog.Int64("amount", outcome.Amount))
	}

	e.complete(draftRef, resultURL)

	log.Info("completed export job", slog.String("url", resultURL))
}

// fetch loads the durable draft and lays it out in a
// render-ready local directory.
func (e *Export) fetch(ctx context.Context, job *models.ExportJob) (models.Draft, string, error) {
	const op = "Export.fetch"

	draft, err := e.drafts.Draft(ctx, job.DraftID)
	if err != nil {
		return models.Draft{}, "", fmt.Errorf("%s: %w", op, err)
	}

	jobDir := filepath.Join(e.workDir, job.DraftID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return models.Draft{}, "", fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(draft)
	if err != nil {
		return models.Draft{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if err := os.WriteFile(filepath.Join(jobDir, "draft_content.json"), body, 0o644); err != nil {
		return models.Draft{}, "", fmt.Errorf("%s: %w", op, err)
	}

	return draft, jobDir, nil
}

// render invokes the external capability under the render
// mutex. The mutex keeps renders exclusive system-wide
// even if the one-job queue discipline is ever relaxed.
func (e *Export) render(ctx context.Context, draftID, outputPath string) error {
	e.renderMutex.Lock()
	defer e.renderMutex.Unlock()

	renderCtx, cancel := context.WithTimeout(ctx, e.renderTimeout)
	defer cancel()

	if err := e.renderer.Render(renderCtx, draftID, outputPath); err != nil {
		// Only the render deadline counts as a timeout;
		// cancellation of the parent ctx does not.
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
			return service.ErrRenderTimeout
		}
		return err
	}

	if fi, err := os.Stat(outputPath); err != nil || fi.Size() == 0 {
		return service.ErrRenderNoOutput
	}

	return nil
}

// BillOutcome reports the best-effort billing stage.
// Callers are allowed to ignore it.
type BillOutcome struct {
	Attempted bool
	Charged   bool
	Amount    int64
	Err       error
}

func (e *Export) bill(ctx context.Context, job *models.ExportJob, outputPath string) BillOutcome {
	const op = "Export.bill"

	if job.Credential == "" {
		return BillOutcome{}
	}

	duration, err := e.probe.Duration(ctx, outputPath)
	if err != nil {
		return BillOutcome{Attempted: true, Err: fmt.Errorf("%s: %w", op, err)}
	}

	// Cost is charged per started minute of rendered video.
	minutes := int64(duration / time.Minute)
	if duration%time.Minute > 0 || minutes == 0 {
		minutes++
	}
	amount := minutes * e.costPerMinute

	charged, err := e.biller.Deduct(ctx, job.Credential, amount, "draft export "+job.DraftID)
	if err != nil {
		return BillOutcome{Attempted: true, Amount: amount, Err: fmt.Errorf("%s: %w", op, err)}
	}

	return BillOutcome{Attempted: true, Charged: charged, Amount: amount}
}

func (e *Export) cleanup(log *slog.Logger, jobDir string) {
	if jobDir == "" {
		return
	}
	if err := os.RemoveAll(jobDir); err != nil {
		log.Warn("failed to clean up job dir", slog.String("dir", jobDir), sl.Err(err))
	}
}

func (e *Export) setProcessing(draftRef string) *models.ExportJob {
	e.jobsMutex.Lock()
	defer e.jobsMutex.Unlock()

	job, ok := e.jobs[draftRef]
	if !ok || job.Status != models.ExportPending {
		return nil
	}

	now := time.Now()
	job.Status = models.ExportProcessing
	job.StartedAt = &now
	job.Progress = 5

	return job
}

// setProgress raises job progress. Progress is advisory
// and only ever increases.
func (e *Export) setProgress(draftRef string, progress int) {
	e.jobsMutex.Lock()
	defer e.jobsMutex.Unlock()

	if job, ok := e.jobs[draftRef]; ok && progress > job.Progress {
		job.Progress = progress
	}
}

func (e *Export) complete(draftRef string, resultURL string) {
	e.jobsMutex.Lock()
	defer e.jobsMutex.Unlock()

	job, ok := e.jobs[draftRef]
	if !ok || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = models.ExportCompleted
	job.Progress = 100
	job.ResultURL = resultURL
	job.FinishedAt = &now
}

// fail moves the job to FAILED. The reported message is
// derived from the stage sentinel (see service errors),
// so Status exposes a closed failure taxonomy.
func (e *Export) fail(draftRef string, cause error) {
	e.jobsMutex.Lock()
	defer e.jobsMutex.Unlock()

	job, ok := e.jobs[draftRef]
	if !ok || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = models.ExportFailed
	job.Error = cause.Error()
	job.FinishedAt = &now
}

// reapTerminal drops terminal jobs that were queried at
// least once and outlived the retention window.
func (e *Export) reapTerminal() {
	e.jobsMutex.Lock()
	defer e.jobsMutex.Unlock()

	now := time.Now()
	for draftRef, job := range e.jobs {
		if !job.Status.Terminal() || !job.Viewed || job.FinishedAt == nil {
			continue
		}
		if now.Sub(*job.FinishedAt) > e.reapTTL {
			delete(e.jobs, draftRef)
		}
	}
}

// deriveDraftID extracts the draft identifier from the
// caller-supplied draft reference (a path or URL).
func deriveDraftID(draftRef string) string {
	ref := strings.TrimSpace(draftRef)
	ref = strings.TrimRight(ref, "/")

	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}

	if id := path.Base(strings.ReplaceAll(ref, "\\", "/")); id != "." && id != "/" && id != "" {
		return id
	}

	return draftRef
}
