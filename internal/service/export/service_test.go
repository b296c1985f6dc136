package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmark/draftline/internal/lib/logger/slogdiscard"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
)

type fakeDrafts struct {
	drafts map[string]models.Draft
	err    error
}

func (f *fakeDrafts) Draft(_ context.Context, id string) (models.Draft, error) {
	if f.err != nil {
		return models.Draft{}, f.err
	}
	d, ok := f.drafts[id]
	if !ok {
		return models.Draft{}, service.ErrDraftNotFound
	}
	return d, nil
}

type fakeRenderer struct {
	mutex   sync.Mutex
	calls   int
	err     error
	noWrite bool
	block   chan struct{}
}

func (f *fakeRenderer) Render(ctx context.Context, _ string, outputPath string) error {
	f.mutex.Lock()
	f.calls++
	f.mutex.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.noWrite {
		return nil
	}
	return os.WriteFile(outputPath, []byte("rendered"), 0o644)
}

func (f *fakeRenderer) callCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}

type fakeUploader struct {
	mutex sync.Mutex
	calls int
	url   string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, _ string) (string, error) {
	f.mutex.Lock()
	f.calls++
	f.mutex.Unlock()

	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeUploader) callCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}

type fakeBiller struct {
	mutex   sync.Mutex
	charged bool
	err     error
	amounts []int64
}

func (f *fakeBiller) Deduct(_ context.Context, _ string, amount int64, _ string) (bool, error) {
	f.mutex.Lock()
	f.amounts = append(f.amounts, amount)
	f.mutex.Unlock()

	return f.charged, f.err
}

type fakeProbe struct {
	duration time.Duration
	err      error
}

func (f *fakeProbe) Duration(_ context.Context, _ string) (time.Duration, error) {
	return f.duration, f.err
}

type exportDeps struct {
	drafts   *fakeDrafts
	renderer *fakeRenderer
	uploader *fakeUploader
	biller   *fakeBiller
	probe    *fakeProbe
}

func testDraft(id string) models.Draft {
	track := &models.Track{Name: "main", Kind: models.TrackVideo}
	_ = track.Place(models.Segment{
		ID:     "v",
		Target: models.TimeRange{Start: 0, Duration: 90 * time.Second},
	})

	return models.Draft{
		ID:     id,
		Width:  1920,
		Height: 1080,
		Tracks: []*models.Track{track},
	}
}

func newExport(t *testing.T, deps exportDeps) *Export {
	t.Helper()

	if deps.drafts == nil {
		deps.drafts = &fakeDrafts{drafts: map[string]models.Draft{
			"draftA": testDraft("draftA"),
		}}
	}
	if deps.renderer == nil {
		deps.renderer = &fakeRenderer{}
	}
	if deps.uploader == nil {
		deps.uploader = &fakeUploader{url: "https://store.example/draftA.mp4"}
	}
	if deps.biller == nil {
		deps.biller = &fakeBiller{charged: true}
	}
	if deps.probe == nil {
		deps.probe = &fakeProbe{duration: 90 * time.Second}
	}

	return New(
		slogdiscard.NewDiscardLogger(),
		deps.drafts,
		deps.renderer,
		deps.uploader,
		deps.biller,
		deps.probe,
		t.TempDir(),
		8,
		time.Second,
		10,
		time.Hour,
		time.Hour,
	)
}

func TestSubmitIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newExport(t, exportDeps{})

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	require.NoError(t, e.Submit(ctx, "draftA", ""))

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportPending, view.Status)

	// Exactly one queue entry for the reference.
	assert.Len(t, e.queue, 1)
	assert.Len(t, e.jobs, 1)
}

func TestStatusNotFound(t *testing.T) {
	e := newExport(t, exportDeps{})

	_, err := e.Status(context.Background(), "missing")
	require.ErrorIs(t, err, service.ErrJobNotFound)
}

func TestPipelineCompletes(t *testing.T) {
	ctx := context.Background()
	deps := exportDeps{
		biller: &fakeBiller{charged: true},
	}
	e := newExport(t, deps)

	require.NoError(t, e.Submit(ctx, "draftA", "credential"))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportCompleted, view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, "https://store.example/draftA.mp4", view.ResultURL)
	assert.Empty(t, view.Error)
	require.NotNil(t, view.StartedAt)
	require.NotNil(t, view.FinishedAt)

	// 90s of video billed as two started minutes.
	require.Len(t, deps.biller.amounts, 1)
	assert.Equal(t, int64(20), deps.biller.amounts[0])
}

func TestPipelineBillingRejectedStillCompletes(t *testing.T) {
	ctx := context.Background()
	deps := exportDeps{
		biller: &fakeBiller{charged: false},
	}
	e := newExport(t, deps)

	require.NoError(t, e.Submit(ctx, "draftA", "credential"))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportCompleted, view.Status)
	assert.NotEmpty(t, view.ResultURL)
}

func TestPipelineBillingErrorStillCompletes(t *testing.T) {
	ctx := context.Background()
	deps := exportDeps{
		biller: &fakeBiller{err: errors.New("billing backend down")},
	}
	e := newExport(t, deps)

	require.NoError(t, e.Submit(ctx, "draftA", "credential"))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportCompleted, view.Status)
}

func TestPipelineFetchFailure(t *testing.T) {
	ctx := context.Background()
	e := newExport(t, exportDeps{
		drafts: &fakeDrafts{err: errors.New("storage down")},
	})

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, view.Status)
	assert.Equal(t, service.ErrFetchFailed.Error(), view.Error)
	assert.Empty(t, view.ResultURL)
}

func TestPipelineEmptyTimeline(t *testing.T) {
	ctx := context.Background()
	e := newExport(t, exportDeps{
		drafts: &fakeDrafts{drafts: map[string]models.Draft{
			"draftA": {ID: "draftA", Width: 1920, Height: 1080},
		}},
	})

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, view.Status)
	assert.Equal(t, service.ErrEmptyTimeline.Error(), view.Error)
}

func TestPipelineRenderTimeout(t *testing.T) {
	ctx := context.Background()
	deps := exportDeps{
		renderer: &fakeRenderer{block: make(chan struct{})},
	}
	e := newExport(t, deps)
	e.renderTimeout = 20 * time.Millisecond

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, view.Status)
	assert.Equal(t, service.ErrRenderTimeout.Error(), view.Error)
}

func TestPipelineCancelledRenderIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	deps := exportDeps{
		renderer: &fakeRenderer{block: make(chan struct{})},
	}
	e := newExport(t, deps)

	require.NoError(t, e.Submit(ctx, "draftA", ""))

	// Shutdown mid-render: the renderer is interrupted by
	// the parent context, not by the render deadline.
	cancel()
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, view.Status)
	assert.Equal(t, service.ErrRenderFailed.Error(), view.Error)
}

func TestPipelineRenderNoOutput(t *testing.T) {
	ctx := context.Background()
	deps := exportDeps{
		renderer: &fakeRenderer{noWrite: true},
	}
	e := newExport(t, deps)

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, view.Status)
	assert.Equal(t, service.ErrRenderNoOutput.Error(), view.Error)
}

func TestPipelinePublishFailure(t *testing.T) {
	ctx := context.Background()
	deps := exportDeps{
		uploader: &fakeUploader{err: errors.New("gateway down")},
	}
	e := newExport(t, deps)

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	e.process(ctx, "draftA")

	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, view.Status)
	assert.Equal(t, service.ErrPublishFailed.Error(), view.Error)
}

func TestMonotonicStatus(t *testing.T) {
	ctx := context.Background()
	e := newExport(t, exportDeps{})

	require.NoError(t, e.Submit(ctx, "draftA", ""))

	seen := []models.ExportStatus{}
	record := func() {
		view, err := e.Status(ctx, "draftA")
		require.NoError(t, err)
		if len(seen) == 0 || seen[len(seen)-1] != view.Status {
			seen = append(seen, view.Status)
		}
	}

	record()
	e.process(ctx, "draftA")
	record()

	assert.Equal(t, []models.ExportStatus{models.ExportPending, models.ExportCompleted}, seen)

	// A terminal job never transitions again.
	e.process(ctx, "draftA")
	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportCompleted, view.Status)
}

func TestResubmitAfterTerminal(t *testing.T) {
	ctx := context.Background()
	deps := exportDeps{
		renderer: &fakeRenderer{},
		uploader: &fakeUploader{url: "https://store.example/draftA.mp4"},
	}
	e := newExport(t, deps)

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	e.process(ctx, "draftA")
	<-e.queue

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	view, err := e.Status(ctx, "draftA")
	require.NoError(t, err)
	assert.Equal(t, models.ExportPending, view.Status)

	e.process(ctx, "draftA")
	assert.Equal(t, 2, deps.uploader.callCount())
}

func TestWorkerDrainsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := exportDeps{
		renderer: &fakeRenderer{block: make(chan struct{})},
		uploader: &fakeUploader{url: "https://store.example/draftA.mp4"},
	}
	e := newExport(t, deps)

	go e.Run(ctx)

	require.Eventually(t, e.IsRunning, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Submit(ctx, "draftA", ""))

	// Wait until the worker picked the job up.
	require.Eventually(t, func() bool {
		view, err := e.Status(ctx, "draftA")
		return err == nil && view.Status == models.ExportProcessing
	}, time.Second, 5*time.Millisecond)

	// Resubmission while processing is a silent no-op.
	require.NoError(t, e.Submit(ctx, "draftA", ""))

	close(deps.renderer.block)

	require.Eventually(t, func() bool {
		view, err := e.Status(ctx, "draftA")
		return err == nil && view.Status == models.ExportCompleted
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, deps.renderer.callCount())
	assert.Equal(t, 1, deps.uploader.callCount())

	e.Stop()
	require.Eventually(t, func() bool { return !e.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestStopBeforeRunStopsWorker(t *testing.T) {
	e := newExport(t, exportDeps{})

	// A stop issued before the worker loop starts must
	// stick and must not block the caller.
	e.Stop()

	done := make(chan struct{})
	go func() {
		_ = e.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker ignored the pending stop")
	}

	// Repeated stops after the worker exited are no-ops.
	e.Stop()
	e.Stop()
}

func TestReapKeepsUnviewedJobs(t *testing.T) {
	ctx := context.Background()
	e := newExport(t, exportDeps{})
	e.reapTTL = time.Millisecond

	require.NoError(t, e.Submit(ctx, "draftA", ""))
	e.process(ctx, "draftA")

	past := time.Now().Add(-time.Minute)
	e.jobsMutex.Lock()
	e.jobs["draftA"].FinishedAt = &past
	e.jobsMutex.Unlock()

	// Never queried: survives the reaper.
	e.reapTerminal()
	e.jobsMutex.Lock()
	_, ok := e.jobs["draftA"]
	e.jobsMutex.Unlock()
	require.True(t, ok)

	// Queried once: reaped after TTL.
	_, err := e.Status(ctx, "draftA")
	require.NoError(t, err)

	e.reapTerminal()
	_, err = e.Status(ctx, "draftA")
	require.ErrorIs(t, err, service.ErrJobNotFound)
}

func TestDeriveDraftID(t *testing.T) {
	testCases := []struct {
		desc   string
		ref    string
		expect string
	}{
		{desc: "bare id", ref: "draftA", expect: "draftA"},
		{desc: "path", ref: "/data/drafts/draftA", expect: "draftA"},
		{desc: "trailing slash", ref: "/data/drafts/draftA/", expect: "draftA"},
		{desc: "url", ref: "https://drafts.example/v1/draftA?sig=abc", expect: "draftA"},
		{desc: "windows path", ref: `C:\drafts\draftA`, expect: "draftA"},
		{desc: "spaces trimmed", ref: "  draftA  ", expect: "draftA"},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.expect, deriveDraftID(tC.ref))
		})
	}
}
