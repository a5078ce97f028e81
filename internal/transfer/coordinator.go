package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"shelfcast/internal/library"
	"shelfcast/internal/logging"
	"shelfcast/internal/services"
)

// DefaultMaxConcurrent is the number of books transferring at once.
const DefaultMaxConcurrent = 3

var (
	// ErrInvalidBook is returned when a book has no identifier.
	ErrInvalidBook = errors.New("book id is required")
	// ErrUnknownJob is returned by Wait for books with no job.
	ErrUnknownJob = errors.New("no transfer job for book")
)

// Fetcher downloads one file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, onProgress func(float64)) error
}

// Recorder persists terminal job snapshots.
type Recorder interface {
	Record(ctx context.Context, snap Snapshot) error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRecorder attaches a history recorder.
func WithRecorder(r Recorder) CoordinatorOption {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithMaxConcurrent sets the pool size.
func WithMaxConcurrent(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.capacity = int64(n)
		}
	}
}

type job struct {
	snap      Snapshot
	ctx       context.Context
	cancel    context.CancelFunc
	gate      *progressGate
	done      chan struct{}
	cancelled bool

	// stopped closes when the job's worker returns. after is the stopped
	// channel of an earlier worker for the same book that may still be
	// writing its files.
	stopped chan struct{}
	after   <-chan struct{}
}

// Coordinator owns the transfer job registry and the download pool.
type Coordinator struct {
	layout   library.Layout
	fetcher  Fetcher
	recorder Recorder
	capacity int64
	logger   *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	pending []*job
	last    map[string]Snapshot
	subs    []chan Snapshot
	wake    chan struct{}
	running sync.WaitGroup
	// workers maps a book to the stopped channel of its newest started worker.
	workers map[string]chan struct{}
}

// NewCoordinator builds a Coordinator. Call Run to start dispatching.
func NewCoordinator(layout library.Layout, fetcher Fetcher, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		layout:   layout,
		fetcher:  fetcher,
		capacity: DefaultMaxConcurrent,
		logger:   logging.NewComponentLogger(logger, "transfer"),
		jobs:     make(map[string]*job),
		last:     make(map[string]Snapshot),
		wake:     make(chan struct{}, 1),
		workers:  make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue creates a job for the selected assets of book. If an active job
// already exists for the book it is returned unchanged with false. A failed
// job left for inspection is replaced.
func (c *Coordinator) Enqueue(book library.Book, selector library.Selector) (Snapshot, bool, error) {
	bookID := strings.TrimSpace(book.ID)
	if bookID == "" {
		return Snapshot{}, false, ErrInvalidBook
	}

	c.mu.Lock()
	if existing, ok := c.jobs[bookID]; ok && !existing.snap.Terminal() {
		snap := existing.snap.clone()
		c.mu.Unlock()
		c.logger.Debug("transfer already active", logging.BookID(bookID))
		return snap, false, nil
	}
	delete(c.jobs, bookID)

	sources := c.layout.Sources(book, selector)
	files := make([]File, 0, len(sources))
	for _, src := range sources {
		files = append(files, File{Kind: src.Kind, URL: src.URL, Dest: src.Dest})
	}

	jobID := uuid.NewString()
	ctx := services.WithJobID(services.WithBookID(context.Background(), bookID), jobID)
	ctx, cancel := context.WithCancel(ctx)
	j := &job{
		snap: Snapshot{
			JobID:      jobID,
			BookID:     bookID,
			Title:      book.Title,
			Status:     StatusQueued,
			Files:      files,
			Current:    -1,
			Message:    "queued",
			EnqueuedAt: time.Now().UTC(),
		},
		ctx:     ctx,
		cancel:  cancel,
		gate:    newProgressGate(0.01),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		after:   c.workers[bookID],
	}
	c.jobs[bookID] = j
	c.publishLocked(j)

	var record *Snapshot
	if len(files) == 0 {
		// Nothing selected has a URL; the job is trivially done.
		record = c.finishLocked(j, nil)
	} else {
		c.pending = append(c.pending, j)
		c.signal()
	}
	snap := j.snap.clone()
	c.mu.Unlock()

	c.logger.Info("transfer queued",
		logging.BookID(bookID),
		logging.JobID(jobID),
		logging.Int("files", len(files)),
	)
	c.record(record)
	return snap, true, nil
}

// Cancel stops and removes the book's job. It is idempotent and reports
// whether a job was removed. A running download stops at its next chunk
// and its partial file is kept.
func (c *Coordinator) Cancel(bookID string) bool {
	c.mu.Lock()
	j, ok := c.jobs[bookID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.jobs, bookID)
	var record *Snapshot
	if !j.snap.Terminal() {
		j.cancelled = true
		c.pending = slices.DeleteFunc(c.pending, func(p *job) bool { return p == j })
		now := time.Now().UTC()
		j.snap.Status = StatusCancelled
		j.snap.Message = "cancelled"
		j.snap.FinishedAt = &now
		c.publishLocked(j)
		c.last[bookID] = j.snap.clone()
		snap := j.snap.clone()
		record = &snap
		close(j.done)
	}
	j.cancel()
	c.mu.Unlock()

	c.logger.Info("transfer cancelled", logging.BookID(bookID))
	c.record(record)
	return true
}

// Dismiss removes a failed job from the active set.
func (c *Coordinator) Dismiss(bookID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[bookID]
	if !ok || !j.snap.Failed() {
		return false
	}
	delete(c.jobs, bookID)
	return true
}

// Get returns the active job for bookID.
func (c *Coordinator) Get(bookID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[bookID]
	if !ok {
		return Snapshot{}, false
	}
	return j.snap.clone(), true
}

// Jobs lists active jobs in enqueue order.
func (c *Coordinator) Jobs() []Snapshot {
	c.mu.Lock()
	out := make([]Snapshot, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, j.snap.clone())
	}
	c.mu.Unlock()
	slices.SortFunc(out, func(a, b Snapshot) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})
	return out
}

// Wait blocks until the book's current job is terminal and returns its final
// snapshot. Books whose job already finished return the last terminal
// snapshot.
func (c *Coordinator) Wait(ctx context.Context, bookID string) (Snapshot, error) {
	c.mu.Lock()
	j, ok := c.jobs[bookID]
	if !ok {
		snap, seen := c.last[bookID]
		c.mu.Unlock()
		if !seen {
			return Snapshot{}, fmt.Errorf("%w %q", ErrUnknownJob, bookID)
		}
		return snap, nil
	}
	done := j.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[bookID], nil
}

// Subscribe returns a channel receiving every published snapshot and a
// function that unsubscribes and closes it. Delivery never blocks the
// coordinator: when the buffer is full the oldest pending snapshot is
// dropped, so a slow subscriber always ends up holding the newest state.
func (c *Coordinator) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			c.subs = slices.DeleteFunc(c.subs, func(s chan Snapshot) bool { return s == ch })
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Run dispatches queued jobs until ctx is cancelled. On shutdown in-flight
// jobs are cancelled and, like jobs still waiting for a slot, end as failed.
func (c *Coordinator) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(c.capacity)
	c.logger.Debug("transfer dispatcher started", logging.Int64("max_concurrent", c.capacity))
	defer func() {
		c.mu.Lock()
		for _, j := range c.jobs {
			j.cancel()
		}
		var records []*Snapshot
		for _, j := range c.pending {
			records = append(records, c.finishLocked(j, fmt.Errorf("%w before start", ErrCancelled)))
		}
		c.pending = nil
		c.mu.Unlock()
		for _, rec := range records {
			c.record(rec)
		}
		c.running.Wait()
	}()

	for {
		if !c.hasPending() {
			select {
			case <-c.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		c.mu.Lock()
		if len(c.pending) == 0 {
			// Cancelled while waiting for a slot.
			c.mu.Unlock()
			sem.Release(1)
			continue
		}
		j := c.pending[0]
		c.pending = c.pending[1:]
		now := time.Now().UTC()
		j.snap.Status = StatusDownloading
		j.snap.StartedAt = &now
		j.snap.Current = 0
		c.publishLocked(j)
		c.workers[j.snap.BookID] = j.stopped
		c.running.Add(1)
		c.mu.Unlock()

		go func() {
			defer c.running.Done()
			defer sem.Release(1)
			defer c.workerStopped(j)
			c.runJob(j)
		}()
	}
}

func (c *Coordinator) hasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) runJob(j *job) {
	logger := logging.WithContext(j.ctx, c.logger)
	if j.after != nil {
		// A cancelled worker for this book may still be appending to the
		// same destination files.
		select {
		case <-j.after:
		case <-j.ctx.Done():
			c.finish(j, fmt.Errorf("%w before start", ErrCancelled))
			return
		}
	}
	total := len(j.snap.Files)
	logger.Info("transfer started", logging.Int("files", total))

	for i, file := range j.snap.Files {
		c.mu.Lock()
		if j.cancelled {
			c.mu.Unlock()
			return
		}
		j.snap.Current = i
		j.snap.FileProgress = 0
		j.snap.Progress = float64(i) / float64(total)
		j.snap.Message = fmt.Sprintf("downloading %d of %d: %s", i+1, total, filepath.Base(file.Dest))
		c.publishLocked(j)
		c.mu.Unlock()

		err := c.fetcher.Fetch(j.ctx, file.URL, file.Dest, func(fraction float64) {
			c.progress(j, i, fraction)
		})
		if err != nil {
			c.finish(j, fmt.Errorf("%s: %w", filepath.Base(file.Dest), err))
			return
		}
	}
	c.finish(j, nil)
}

func (c *Coordinator) workerStopped(j *job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(j.stopped)
	if c.workers[j.snap.BookID] == j.stopped {
		delete(c.workers, j.snap.BookID)
	}
}

func (c *Coordinator) progress(j *job, index int, fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if j.cancelled || j.snap.Current != index || j.snap.Terminal() {
		return
	}
	fraction = min(max(fraction, 0), 1)
	j.snap.FileProgress = fraction
	j.snap.Progress = (float64(index) + fraction) / float64(len(j.snap.Files))
	if j.gate.pass(index, j.snap.Progress) {
		c.publishLocked(j)
	}
}

func (c *Coordinator) finish(j *job, err error) {
	c.mu.Lock()
	record := c.finishLocked(j, err)
	c.mu.Unlock()
	c.record(record)
}

// finishLocked moves j to its terminal state and returns the snapshot to
// record, or nil when the job was already cancelled.
func (c *Coordinator) finishLocked(j *job, err error) *Snapshot {
	if j.cancelled {
		return nil
	}
	logger := logging.WithContext(j.ctx, c.logger)
	now := time.Now().UTC()
	j.snap.FinishedAt = &now
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("interrupted: %w", err)
		}
		j.snap.Status = StatusFailed
		j.snap.Error = err.Error()
		j.snap.Message = "failed"
		logging.ErrorWithContext(logger, "transfer failed", "transfer_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-run fetch to resume from the partial file"),
		)
	} else {
		j.snap.Status = StatusCompleted
		j.snap.Current = len(j.snap.Files)
		j.snap.FileProgress = 1
		j.snap.Progress = 1
		j.snap.Message = "completed"
		logger.Info("transfer completed", logging.Int("files", len(j.snap.Files)))
	}
	c.publishLocked(j)
	// Failed jobs stay visible until dismissed or re-enqueued.
	if j.snap.Completed() && c.jobs[j.snap.BookID] == j {
		delete(c.jobs, j.snap.BookID)
	}
	c.last[j.snap.BookID] = j.snap.clone()
	close(j.done)
	j.cancel()
	snap := j.snap.clone()
	return &snap
}

// publishLocked delivers a snapshot of j to every subscriber. Callers hold mu.
func (c *Coordinator) publishLocked(j *job) {
	snap := j.snap.clone()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Coordinator) record(snap *Snapshot) {
	if snap == nil || c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.recorder.Record(ctx, *snap); err != nil {
		logging.WarnWithContext(c.logger, "failed to record transfer history", "history_record_failed",
			logging.BookID(snap.BookID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job missing from history"),
		)
	}
}
