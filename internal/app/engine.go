package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

// ClassifyFunc turns a subprocess diagnostic into a short user-facing
// message and a retryability verdict.
type ClassifyFunc func(diagnostic string) (message string, retryable bool)

// eventBuffer is the per-subscriber channel depth. Slow consumers drop
// events rather than stall the draining goroutines.
const eventBuffer = 64

// taskRun is the control side of one live task goroutine.
type taskRun struct {
	cancel context.CancelFunc
}

// Engine orchestrates download tasks end to end: admission through the
// scheduler, subprocess lifecycle through the downloader and registry,
// status transitions, automatic retries, event fan-out, and snapshotting
// through the store.
type Engine struct {
	config     *domain.Config
	downloader domain.Downloader
	store      domain.SnapshotStore
	classify   ClassifyFunc
	scheduler  *Scheduler
	registry   *Registry
	backoff    *Backoff
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	tasks     map[string]*domain.Task
	runs      map[string]*taskRun
	pauseReq  map[string]bool
	cancelReq map[string]bool
	removeReq map[string]bool
	persisted map[string]float64

	subSeq   int
	taskSubs map[string]map[int]chan domain.TaskEvent
	allSubs  map[int]chan domain.TaskEvent

	prefetchMu    sync.Mutex
	prefetchTimer *time.Timer
	metaCache     map[string]*domain.VideoMetadata
}

// NewEngine wires the orchestration service. store may be nil when
// snapshotting is disabled.
func NewEngine(cfg *domain.Config, dl domain.Downloader, store domain.SnapshotStore, classify ClassifyFunc, logger *zap.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		config:     cfg,
		downloader: dl,
		store:      store,
		classify:   classify,
		scheduler:  NewScheduler(cfg.Scheduler.ClassLimits(), logger),
		registry:   NewRegistry(),
		backoff:    NewBackoff(cfg.Download.Backoff, cfg.Download.RetryLimit),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		tasks:      make(map[string]*domain.Task),
		runs:       make(map[string]*taskRun),
		pauseReq:   make(map[string]bool),
		cancelReq:  make(map[string]bool),
		removeReq:  make(map[string]bool),
		persisted:  make(map[string]float64),
		taskSubs:   make(map[string]map[int]chan domain.TaskEvent),
		allSubs:    make(map[int]chan domain.TaskEvent),
		metaCache:  make(map[string]*domain.VideoMetadata),
	}
}

// Submit registers a new download task and starts driving it. The returned
// ID identifies the task for every other operation.
func (e *Engine) Submit(url, format string, audioOnly bool) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("url must not be empty")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", domain.ErrEngineClosed
	}
	task := domain.NewTask(url, format, audioOnly, e.backoff.Ceiling())
	e.tasks[task.ID] = task
	e.launchLocked(task.ID)
	e.persistLocked(task)
	e.publishLocked(task)
	e.mu.Unlock()

	e.logger.Info("Task submitted",
		zap.String("task_id", task.ID),
		zap.String("url", url))
	return task.ID, nil
}

// launchLocked starts the task goroutine. Caller holds e.mu.
func (e *Engine) launchLocked(id string) {
	runCtx, cancel := context.WithCancel(e.ctx)
	e.runs[id] = &taskRun{cancel: cancel}
	e.wg.Add(1)
	go e.runLoop(runCtx, id)
}

// runLoop drives one task through admission, attempts, and retry waits
// until it settles. Each attempt holds a download-class slot only while the
// subprocess is alive; backoff waits happen slotless.
func (e *Engine) runLoop(ctx context.Context, id string) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.runs, id)
		e.mu.Unlock()
	}()

	for {
		if err := e.scheduler.Acquire(ctx, domain.ClassDownload); err != nil {
			e.settleInterrupted(id)
			return
		}
		outcome := e.attempt(ctx, id)
		e.scheduler.Release(domain.ClassDownload)

		switch outcome {
		case attemptRetry:
			if !e.retryWait(ctx, id) {
				e.settleInterrupted(id)
				return
			}
		default:
			return
		}
	}
}

type attemptOutcome int

const (
	attemptSettled attemptOutcome = iota // terminal, paused, or removed
	attemptRetry
)

// attempt runs one full pass for the task: metadata when the title is still
// unknown, then the download subprocess to completion.
func (e *Engine) attempt(ctx context.Context, id string) attemptOutcome {
	e.mu.Lock()
	task, ok := e.tasks[id]
	if !ok || e.interruptedLocked(id) {
		e.mu.Unlock()
		e.settleInterrupted(id)
		return attemptSettled
	}
	needInfo := task.Title == ""
	resume := task.Status.Kind == domain.KindPaused && task.Status.Progress > 0
	if needInfo {
		task.MarkFetchingInfo()
	} else {
		task.MarkPreparing("starting download")
	}
	job := domain.DownloadJob{
		URL:       task.URL,
		Format:    task.Format,
		AudioOnly: task.AudioOnly,
		Resume:    resume,
	}
	e.persistLocked(task)
	e.publishLocked(task)
	e.mu.Unlock()

	if needInfo {
		if out := e.fetchTitle(ctx, id, job.URL); out != attemptContinue {
			return out
		}
	}

	proc, err := e.downloader.Start(job, func(ev domain.LineEvent) {
		e.applyLineEvent(id, ev)
	})
	if err != nil {
		e.failTask(id, startErrorMessage(err), err.Error())
		return attemptSettled
	}
	e.registry.Register(id, proc)
	// A stop requested between Start and Register never reached the
	// process; deliver it now.
	e.mu.Lock()
	stopped := e.interruptedLocked(id)
	e.mu.Unlock()
	if stopped {
		proc.Terminate()
	}
	result := proc.Wait()
	e.registry.Unregister(id)

	return e.settleResult(id, result, proc.Diagnostic())
}

// attemptContinue is a sentinel for fetchTitle meaning "proceed to the
// download phase".
const attemptContinue attemptOutcome = -1

// fetchTitle resolves metadata before the first download attempt so the
// task carries a human-readable title early.
func (e *Engine) fetchTitle(ctx context.Context, id, url string) attemptOutcome {
	metaCtx, cancel := context.WithTimeout(ctx, e.config.Download.MetadataTimeout)
	meta, err := e.fetchMetadataCached(metaCtx, url)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			e.settleInterrupted(id)
			return attemptSettled
		}
		if errors.Is(err, domain.ErrToolNotFound) || errors.Is(err, domain.ErrSpawnFailed) {
			e.failTask(id, startErrorMessage(err), err.Error())
			return attemptSettled
		}
		message, retryable := e.classify(err.Error())
		if retryable && e.bumpRetry(id) {
			return attemptRetry
		}
		e.failTask(id, message, err.Error())
		return attemptSettled
	}

	e.mu.Lock()
	if task, ok := e.tasks[id]; ok {
		if task.Title == "" {
			task.Title = meta.Title
		}
		task.MarkPreparing("resolving formats")
		e.publishLocked(task)
	}
	e.mu.Unlock()
	return attemptContinue
}

// applyLineEvent folds one parsed output event into the task. Runs on the
// stream-draining goroutines, so it only takes the lock briefly.
func (e *Engine) applyLineEvent(id string, ev domain.LineEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[id]
	if !ok {
		return
	}

	switch ev.Kind {
	case domain.LineProgress:
		switch task.Status.Kind {
		case domain.KindFetchingInfo, domain.KindPreparing:
			task.MarkDownloading()
		}
		task.ApplyProgress(ev.Progress)
		e.persistProgressLocked(task)
	case domain.LineTelemetry:
		if ev.Speed != "" {
			task.Speed = ev.Speed
		}
		if ev.ETA != "" {
			task.ETA = ev.ETA
		}
	case domain.LinePhase:
		if task.Status.Kind == domain.KindDownloading {
			task.MarkConverting()
			e.persistLocked(task)
		}
	case domain.LineTitle:
		if task.Title == "" && ev.Title != "" {
			task.Title = ev.Title
		}
		if ev.Path != "" {
			task.OutputPath = ev.Path
		}
	}
	e.publishLocked(task)
}

// settleResult maps a finished subprocess onto the task's next state.
func (e *Engine) settleResult(id string, result domain.ProcessResult, diagnostic string) attemptOutcome {
	e.mu.Lock()
	task, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return attemptSettled
	}

	if result.Signalled {
		switch {
		case e.pauseReq[id]:
			delete(e.pauseReq, id)
			task.MarkPaused()
			e.persistLocked(task)
			e.publishLocked(task)
			e.mu.Unlock()
		case e.removeReq[id]:
			e.discardLocked(id)
			e.mu.Unlock()
		case e.closed:
			// Shutdown: the last snapshot keeps the in-flight status and
			// rehydration downgrades it on restart.
			e.persistLocked(task)
			e.mu.Unlock()
		default:
			task.MarkFailed(domain.CancelledMessage)
			delete(e.cancelReq, id)
			e.persistLocked(task)
			e.publishLocked(task)
			e.mu.Unlock()
		}
		return attemptSettled
	}

	if result.ExitCode == 0 {
		task.ApplyProgress(1.0)
		task.MarkCompleted(task.OutputPath)
		e.persistLocked(task)
		e.publishLocked(task)
		e.mu.Unlock()
		e.logger.Info("Task completed",
			zap.String("task_id", id),
			zap.String("output", task.OutputPath))
		return attemptSettled
	}

	task.Diagnostic = diagnostic
	message, retryable := e.classify(diagnostic)
	if retryable && task.CanRetry() {
		task.IncrementRetry()
		attempt := task.RetryCount
		e.persistLocked(task)
		e.mu.Unlock()
		e.logger.Warn("Task attempt failed, will retry",
			zap.String("task_id", id),
			zap.String("reason", message),
			zap.Int("attempt", attempt))
		return attemptRetry
	}

	task.MarkFailed(message)
	e.persistLocked(task)
	e.publishLocked(task)
	e.mu.Unlock()
	e.logger.Warn("Task failed",
		zap.String("task_id", id),
		zap.String("reason", message))
	return attemptSettled
}

// retryWait blocks through the backoff delay, surfacing a once-per-second
// countdown as a preparing phase. Returns false when the wait was
// interrupted by cancel, pause, or shutdown.
func (e *Engine) retryWait(ctx context.Context, id string) bool {
	e.mu.Lock()
	task, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	delay := e.backoff.Delay(task.RetryCount)
	e.mu.Unlock()

	deadline := time.Now().Add(delay)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		e.mu.Lock()
		if task, ok := e.tasks[id]; ok {
			seconds := int(remaining.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			task.MarkPreparing(fmt.Sprintf("retrying in %ds", seconds))
			e.publishLocked(task)
		}
		e.mu.Unlock()

		step := time.Second
		if remaining < step {
			step = remaining
		}
		select {
		case <-time.After(step):
		case <-ctx.Done():
			return false
		}
	}
}

// interruptedLocked reports whether a stop has been requested for the task.
// Caller holds e.mu.
func (e *Engine) interruptedLocked(id string) bool {
	return e.cancelReq[id] || e.pauseReq[id] || e.removeReq[id] || e.closed
}

// settleInterrupted resolves a task whose run was stopped outside a live
// subprocess (while queued, during metadata, or during a retry wait).
func (e *Engine) settleInterrupted(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[id]
	if !ok {
		return
	}
	switch {
	case e.pauseReq[id]:
		delete(e.pauseReq, id)
		task.MarkPaused()
		e.persistLocked(task)
		e.publishLocked(task)
	case e.removeReq[id]:
		e.discardLocked(id)
	case e.cancelReq[id]:
		delete(e.cancelReq, id)
		task.MarkFailed(domain.CancelledMessage)
		e.persistLocked(task)
		e.publishLocked(task)
	case e.closed:
		e.persistLocked(task)
	}
}

// bumpRetry increments the retry counter if another attempt is allowed.
func (e *Engine) bumpRetry(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[id]
	if !ok || !task.CanRetry() {
		return false
	}
	task.IncrementRetry()
	e.persistLocked(task)
	return true
}

// failTask marks the task terminally failed with a short message and keeps
// the full diagnostic for inspection.
func (e *Engine) failTask(id, message, diagnostic string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[id]
	if !ok {
		return
	}
	task.Diagnostic = diagnostic
	task.MarkFailed(message)
	e.persistLocked(task)
	e.publishLocked(task)
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrToolNotFound):
		return "downloader tool not installed"
	case errors.Is(err, domain.ErrSpawnFailed):
		return "failed to start downloader tool"
	}
	return "download failed"
}

// Cancel stops a task. Active runs are terminated and settle as
// Failed("cancelled"); tasks with no live run are failed directly. Unknown
// IDs and terminal tasks are a silent no-op.
func (e *Engine) Cancel(id string) {
	e.mu.Lock()
	task, ok := e.tasks[id]
	if !ok || task.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	run, running := e.runs[id]
	if running {
		e.cancelReq[id] = true
		run.cancel()
		e.mu.Unlock()
		e.registry.Cancel(id)
		return
	}
	// No goroutine behind it (e.g. a restored paused task).
	task.MarkFailed(domain.CancelledMessage)
	e.persistLocked(task)
	e.publishLocked(task)
	e.mu.Unlock()
}

// Pause freezes an in-flight task at its current progress. Only meaningful
// for tasks that are active or still queued.
func (e *Engine) Pause(id string) error {
	e.mu.Lock()
	task, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if task.Status.IsTerminal() || task.Status.Kind == domain.KindPaused {
		e.mu.Unlock()
		return nil
	}
	run, running := e.runs[id]
	if !running {
		task.MarkPaused()
		e.persistLocked(task)
		e.publishLocked(task)
		e.mu.Unlock()
		return nil
	}
	e.pauseReq[id] = true
	run.cancel()
	e.mu.Unlock()
	e.registry.Cancel(id)
	return nil
}

// Resume continues a paused task from its frozen progress. The relaunched
// run asks the tool to continue the partial transfer.
func (e *Engine) Resume(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if e.closed {
		return domain.ErrEngineClosed
	}
	if task.Status.Kind != domain.KindPaused {
		return fmt.Errorf("task %s is not paused", id)
	}
	if _, running := e.runs[id]; running {
		return nil
	}
	delete(e.pauseReq, id)
	delete(e.cancelReq, id)
	e.launchLocked(id)
	e.publishLocked(task)
	return nil
}

// Retry re-runs a failed task from scratch with a fresh retry budget.
func (e *Engine) Retry(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if e.closed {
		return domain.ErrEngineClosed
	}
	if task.Status.Kind != domain.KindFailed {
		return fmt.Errorf("task %s has not failed", id)
	}
	if _, running := e.runs[id]; running {
		return nil
	}
	task.RetryCount = 0
	task.Status = domain.Pending()
	task.Diagnostic = ""
	delete(e.cancelReq, id)
	delete(e.pauseReq, id)
	e.launchLocked(id)
	e.persistLocked(task)
	e.publishLocked(task)
	return nil
}

// Remove discards a task entirely: live runs are stopped first, then the
// task and its snapshot disappear. Completed tasks stay listed until
// removed this way.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	_, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	run, running := e.runs[id]
	if running {
		e.removeReq[id] = true
		run.cancel()
		e.mu.Unlock()
		e.registry.Cancel(id)
		return nil
	}
	e.discardLocked(id)
	e.mu.Unlock()
	return nil
}

// discardLocked deletes all traces of a task. Caller holds e.mu.
func (e *Engine) discardLocked(id string) {
	delete(e.tasks, id)
	delete(e.pauseReq, id)
	delete(e.cancelReq, id)
	delete(e.removeReq, id)
	delete(e.persisted, id)
	if subs, ok := e.taskSubs[id]; ok {
		for _, ch := range subs {
			close(ch)
		}
		delete(e.taskSubs, id)
	}
	if e.store != nil {
		if err := e.store.Delete(id); err != nil {
			e.logger.Warn("Failed to delete task snapshot",
				zap.String("task_id", id), zap.Error(err))
		}
	}
}

// GetTask returns a copy of the task.
func (e *Engine) GetTask(id string) (*domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// ListTasks returns copies of all known tasks, newest first.
func (e *Engine) ListTasks() []*domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Task, 0, len(e.tasks))
	for _, task := range e.tasks {
		out = append(out, task.Clone())
	}
	sortTasksByCreation(out)
	return out
}

func sortTasksByCreation(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

// Stats reports aggregate task counts from the snapshot store, falling back
// to the in-memory set when snapshotting is disabled.
func (e *Engine) Stats() (*domain.TaskStats, error) {
	if e.store != nil {
		return e.store.Stats()
	}
	stats := &domain.TaskStats{}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, task := range e.tasks {
		stats.Total++
		switch task.Status.Kind {
		case domain.KindCompleted:
			stats.Completed++
		case domain.KindFailed:
			stats.Failed++
		case domain.KindPaused:
			stats.Paused++
		case domain.KindPending:
			stats.Pending++
		default:
			stats.Active++
		}
	}
	return stats, nil
}

// Running reports whether the engine still accepts work.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

// Subscribe delivers the task's future events on the returned channel. The
// second return value detaches the subscription; the channel closes when
// the task is removed.
func (e *Engine) Subscribe(taskID string) (<-chan domain.TaskEvent, func()) {
	ch := make(chan domain.TaskEvent, eventBuffer)
	e.mu.Lock()
	e.subSeq++
	seq := e.subSeq
	if e.taskSubs[taskID] == nil {
		e.taskSubs[taskID] = make(map[int]chan domain.TaskEvent)
	}
	e.taskSubs[taskID][seq] = ch
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		if subs, ok := e.taskSubs[taskID]; ok {
			if _, live := subs[seq]; live {
				delete(subs, seq)
				close(ch)
			}
			if len(subs) == 0 {
				delete(e.taskSubs, taskID)
			}
		}
		e.mu.Unlock()
	}
}

// SubscribeAll delivers every task's events on one channel.
func (e *Engine) SubscribeAll() (<-chan domain.TaskEvent, func()) {
	ch := make(chan domain.TaskEvent, eventBuffer)
	e.mu.Lock()
	e.subSeq++
	seq := e.subSeq
	e.allSubs[seq] = ch
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		if _, live := e.allSubs[seq]; live {
			delete(e.allSubs, seq)
			close(ch)
		}
		e.mu.Unlock()
	}
}

// publishLocked fans the task's current state out to subscribers without
// blocking. Caller holds e.mu.
func (e *Engine) publishLocked(task *domain.Task) {
	ev := domain.TaskEvent{
		TaskID:     task.ID,
		Status:     task.Status,
		Title:      task.Title,
		OutputPath: task.OutputPath,
		Speed:      task.Speed,
		ETA:        task.ETA,
		Time:       time.Now(),
	}
	for _, ch := range e.taskSubs[task.ID] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range e.allSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// persistLocked snapshots the task. Caller holds e.mu.
func (e *Engine) persistLocked(task *domain.Task) {
	if e.store == nil {
		return
	}
	e.persisted[task.ID] = task.Status.Progress
	if err := e.store.Save(task.Snapshot()); err != nil {
		e.logger.Warn("Failed to save task snapshot",
			zap.String("task_id", task.ID), zap.Error(err))
	}
}

// persistProgressLocked snapshots on progress ticks, but only every few
// percent to keep write volume down. Caller holds e.mu.
func (e *Engine) persistProgressLocked(task *domain.Task) {
	if e.store == nil {
		return
	}
	if task.Status.Progress-e.persisted[task.ID] < 0.05 {
		return
	}
	e.persistLocked(task)
}

// FetchMetadata resolves metadata for a URL on the info concurrency class.
// Results are cached so a subsequent submit reuses the lookup.
func (e *Engine) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("url must not be empty")
	}
	if err := e.scheduler.Acquire(ctx, domain.ClassInfo); err != nil {
		return nil, err
	}
	defer e.scheduler.Release(domain.ClassInfo)
	return e.fetchMetadataCached(ctx, url)
}

func (e *Engine) fetchMetadataCached(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	e.prefetchMu.Lock()
	if meta, ok := e.metaCache[url]; ok {
		e.prefetchMu.Unlock()
		return meta, nil
	}
	e.prefetchMu.Unlock()

	meta, err := e.downloader.FetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}
	e.prefetchMu.Lock()
	e.metaCache[url] = meta
	e.prefetchMu.Unlock()
	return meta, nil
}

// PrefetchMetadata schedules a debounced metadata lookup so rapid repeated
// calls for a changing URL collapse into one fetch of the final value.
func (e *Engine) PrefetchMetadata(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	e.prefetchMu.Lock()
	defer e.prefetchMu.Unlock()
	if e.prefetchTimer != nil {
		e.prefetchTimer.Stop()
	}
	e.prefetchTimer = time.AfterFunc(e.config.Download.PrefetchDelay, func() {
		e.scheduler.Enqueue(domain.ClassInfo, func() {
			ctx, cancel := context.WithTimeout(e.ctx, e.config.Download.MetadataTimeout)
			defer cancel()
			if _, err := e.fetchMetadataCached(ctx, url); err != nil {
				e.logger.Debug("Metadata prefetch failed",
					zap.String("url", url), zap.Error(err))
			}
		})
	})
}

// Restore loads persisted tasks back into the engine. In-flight snapshots
// come back paused or pending per the rehydration rules; restored pending
// tasks are re-driven automatically, paused ones wait for an explicit
// resume.
func (e *Engine) Restore() error {
	if e.store == nil {
		return nil
	}
	snapshots, err := e.store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load task snapshots: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	restarted := 0
	for _, s := range snapshots {
		task := domain.RestoreTask(s)
		e.tasks[task.ID] = task
		if task.Status.Kind == domain.KindPending {
			e.launchLocked(task.ID)
			restarted++
		}
	}
	if len(snapshots) > 0 {
		e.logger.Info("Tasks restored from snapshot store",
			zap.Int("count", len(snapshots)),
			zap.Int("restarted", restarted))
	}
	return nil
}

// Shutdown stops accepting work, terminates live subprocesses, and waits
// for task goroutines to settle or the context to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.prefetchMu.Lock()
	if e.prefetchTimer != nil {
		e.prefetchTimer.Stop()
	}
	e.prefetchMu.Unlock()

	e.cancel()
	e.registry.CancelAll()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	for _, subs := range e.taskSubs {
		for _, ch := range subs {
			close(ch)
		}
	}
	e.taskSubs = make(map[string]map[int]chan domain.TaskEvent)
	for _, ch := range e.allSubs {
		close(ch)
	}
	e.allSubs = make(map[int]chan domain.TaskEvent)
	e.mu.Unlock()
	return nil
}
