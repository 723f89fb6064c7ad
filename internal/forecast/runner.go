package forecast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus is the lifecycle state of a background forecast
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Finished reports whether the job has reached a terminal state
func (s JobStatus) Finished() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// JobSnapshot is a point-in-time copy of a job, safe to hand to callers
type JobSnapshot struct {
	ID        uuid.UUID  `json:"id"`
	Request   Request    `json:"request"`
	Status    JobStatus  `json:"status"`
	Stage     Stage      `json:"stage"`
	Submitted time.Time  `json:"submitted"`
	Started   *time.Time `json:"started,omitempty"`
	Finished  *time.Time `json:"finished,omitempty"`
	Error     string     `json:"error,omitempty"`
	Outcome   *Outcome   `json:"outcome,omitempty"`
}

// RunRecord is what gets persisted about a finished forecast
type RunRecord struct {
	ID           uuid.UUID
	Request      Request
	Config       Config
	Status       JobStatus
	Metrics      Metrics
	TrainingRows int
	Elapsed      time.Duration
	Error        string
	FinishedAt   time.Time
}

// RunRecorder stores forecast run history
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// RunnerOptions tunes the background runner
type RunnerOptions struct {
	Workers   int
	QueueSize int
	// MaxJobs bounds how many jobs are remembered; the oldest finished
	// jobs are evicted first
	MaxJobs  int
	Recorder RunRecorder
}

type job struct {
	snap   JobSnapshot
	ctx    context.Context
	cancel context.CancelFunc
}

// Runner executes forecasts off the request path on a small worker pool
type Runner struct {
	configurator *Configurator
	series       tide.Series
	opts         RunnerOptions
	logger       *zap.SugaredLogger

	queue chan *job

	mu    sync.Mutex
	jobs  map[uuid.UUID]*job
	order []uuid.UUID
}

// NewRunner creates a runner over an immutable series. Call Start to begin
// processing.
func NewRunner(configurator *Configurator, series tide.Series, opts RunnerOptions, logger *zap.SugaredLogger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 8
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 64
	}
	return &Runner{
		configurator: configurator,
		series:       series,
		opts:         opts,
		logger:       logger,
		queue:        make(chan *job, opts.QueueSize),
		jobs:         make(map[uuid.UUID]*job),
	}
}

// Start runs the workers and blocks until ctx is cancelled and every worker
// has returned
func (r *Runner) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id)
		}(i)
	}
	r.logger.Infof("forecast runner started with %d worker(s)", r.opts.Workers)

	<-ctx.Done()
	r.cancelAll()
	wg.Wait()
	r.logger.Info("forecast runner stopped")
	return nil
}

// Submit validates and enqueues a request
func (r *Runner) Submit(req Request) (JobSnapshot, error) {
	if _, err := r.configurator.horizon(req.Horizon); err != nil {
		return JobSnapshot{}, err
	}
	if _, err := NewConfig(req.Seasonality, req.Mode); err != nil {
		return JobSnapshot{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		snap: JobSnapshot{
			ID:        uuid.New(),
			Request:   req,
			Status:    JobQueued,
			Stage:     StageQueued,
			Submitted: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case r.queue <- j:
	default:
		cancel()
		return JobSnapshot{}, ErrQueueFull
	}
	r.jobs[j.snap.ID] = j
	r.order = append(r.order, j.snap.ID)
	r.evictLocked()
	queueDepth.Inc()

	return j.snap, nil
}

// Get returns a snapshot of a job
func (r *Runner) Get(id uuid.UUID) (JobSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return JobSnapshot{}, ErrJobNotFound
	}
	return j.snap, nil
}

// List returns snapshots of every remembered job, oldest first, without
// their outcomes
func (r *Runner) List() []JobSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobSnapshot, 0, len(r.order))
	for _, id := range r.order {
		s := r.jobs[id].snap
		s.Outcome = nil
		out = append(out, s)
	}
	return out
}

// Cancel stops a queued or running job. Cancelling a finished job is a no-op.
// A queued job is finalized and recorded here; a running one is recorded by
// its worker once the fit notices the cancellation.
func (r *Runner) Cancel(id uuid.UUID) (JobSnapshot, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return JobSnapshot{}, ErrJobNotFound
	}
	dequeued := false
	if !j.snap.Status.Finished() {
		j.cancel()
		if j.snap.Status == JobQueued {
			r.finishLocked(j, JobCancelled, nil, context.Canceled)
			dequeued = true
		}
	}
	snap := j.snap
	r.mu.Unlock()

	if dequeued {
		r.record(snap)
	}
	return snap, nil
}

func (r *Runner) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			queueDepth.Dec()
			r.process(j, id)
		}
	}
}

func (r *Runner) process(j *job, worker int) {
	r.mu.Lock()
	if j.snap.Status != JobQueued {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	j.snap.Status = JobRunning
	j.snap.Started = &now
	r.mu.Unlock()

	r.logger.Debugf("worker %d picked up forecast job %s", worker, j.snap.ID)

	out, err := r.configurator.run(j.ctx, r.series, j.snap.Request, func(s Stage) {
		r.mu.Lock()
		j.snap.Stage = s
		r.mu.Unlock()
	})

	r.mu.Lock()
	switch {
	case err == nil:
		r.finishLocked(j, JobDone, out, nil)
	case errors.Is(err, context.Canceled):
		r.finishLocked(j, JobCancelled, nil, err)
	default:
		r.finishLocked(j, JobFailed, nil, err)
	}
	snap := j.snap
	r.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warnf("forecast job %s failed: %v", snap.ID, err)
	}
	r.record(snap)
}

func (r *Runner) finishLocked(j *job, status JobStatus, out *Outcome, err error) {
	now := time.Now()
	j.snap.Status = status
	j.snap.Finished = &now
	j.snap.Outcome = out
	if err != nil {
		j.snap.Error = err.Error()
	}
	j.cancel()
	jobsTotal.WithLabelValues(string(status)).Inc()
}

func (r *Runner) evictLocked() {
	for len(r.order) > r.opts.MaxJobs {
		evicted := false
		for i, id := range r.order {
			if r.jobs[id].snap.Status.Finished() {
				delete(r.jobs, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

func (r *Runner) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		j.cancel()
	}
}

func (r *Runner) record(snap JobSnapshot) {
	if r.opts.Recorder == nil {
		return
	}
	rec := RunRecord{
		ID:         snap.ID,
		Request:    snap.Request,
		Status:     snap.Status,
		Error:      snap.Error,
		FinishedAt: time.Now(),
	}
	if snap.Outcome != nil {
		rec.Config = snap.Outcome.Config
		rec.Metrics = snap.Outcome.Metrics
		rec.TrainingRows = snap.Outcome.TrainingRows
		rec.Elapsed = snap.Outcome.Elapsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.opts.Recorder.RecordRun(ctx, rec); err != nil {
		r.logger.Warnf("could not record forecast run %s: %v", snap.ID, err)
	}
}
