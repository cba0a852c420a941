package jobs

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxPerUser   = 2
	DefaultRetention    = time.Hour
	DefaultReapInterval = time.Hour
)

// Options configures a Store. Zero values pick the defaults.
type Options struct {
	MaxPerUser   int
	Retention    time.Duration
	ReapInterval time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry struct {
	job       Job
	listeners map[uint64]Listener
	// deliver serializes publishing so listeners see events in order.
	deliver sync.Mutex
}

// Store is the in-memory job registry. The zero value is not usable; create
// one with NewStore and run its reaper with RunReaper.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*entry
	byUser  map[string][]string
	nextSub uint64

	maxPerUser   int
	retention    time.Duration
	reapInterval time.Duration
	now          func() time.Time

	done     chan struct{}
	shutdown sync.Once
	logger   *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(opts Options) *Store {
	if opts.MaxPerUser <= 0 {
		opts.MaxPerUser = DefaultMaxPerUser
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = DefaultReapInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		jobs:         make(map[string]*entry),
		byUser:       make(map[string][]string),
		maxPerUser:   opts.MaxPerUser,
		retention:    opts.Retention,
		reapInterval: opts.ReapInterval,
		now:          opts.Now,
		done:         make(chan struct{}),
		logger:       slog.Default(),
	}
}

// CreateJob registers a pending job for userID. It returns a *LimitError if
// the user already has MaxPerUser live jobs. The count and the insert happen
// under one lock, so concurrent creations for a user cannot both slip in.
func (s *Store) CreateJob(userID string, params Params) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := 0
	for _, id := range s.byUser[userID] {
		if e, ok := s.jobs[id]; ok && e.job.Status.Live() {
			live++
		}
	}
	if live >= s.maxPerUser {
		return Job{}, &LimitError{UserID: userID, Limit: s.maxPerUser}
	}

	now := s.now()
	job := Job{
		ID:         "job_" + uuid.NewString(),
		UserID:     userID,
		Params:     params,
		Status:     StatusPending,
		StageLabel: "Queued",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.jobs[job.ID] = &entry{job: job, listeners: make(map[uint64]Listener)}
	s.byUser[userID] = append(s.byUser[userID], job.ID)

	s.logger.Info("job created", "job_id", job.ID, "user_id", userID, "topic", params.Topic)
	return job, nil
}

// GetJob returns a snapshot of the job.
func (s *Store) GetJob(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return e.job, nil
}

// GetUserJobs returns snapshots of the user's jobs, newest first.
func (s *Store) GetUserJobs(userID string) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]Job, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if e, ok := s.jobs[ids[i]]; ok {
			out = append(out, e.job)
		}
	}
	return out
}

// UpdateProgress merges u into the job and publishes a progress event.
// Progress is clamped to [0,100] and, like stage, never moves backwards.
// Only pending->running is accepted as a status change. Unknown and
// terminal jobs are ignored; the return value reports whether the update
// was applied.
func (s *Store) UpdateProgress(id string, u Update) bool {
	e := s.lookup(id)
	if e == nil {
		return false
	}
	e.deliver.Lock()
	defer e.deliver.Unlock()

	s.mu.Lock()
	if e.job.Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	j := &e.job
	if u.Status == StatusRunning {
		j.Status = StatusRunning
	} else if u.Status != "" && u.Status != j.Status {
		s.logger.Debug("ignoring status change in progress update", "job_id", id, "status", u.Status)
	}
	if u.Stage > j.Stage {
		j.Stage = u.Stage
	}
	if u.StageLabel != "" {
		j.StageLabel = u.StageLabel
	}
	if p := clampProgress(u.Progress); p > j.Progress {
		j.Progress = p
	}
	if u.Detail != "" {
		j.Detail = u.Detail
	}
	j.UpdatedAt = s.now()
	snap, listeners := e.job, e.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		if l.OnProgress != nil {
			l.OnProgress(snap)
		}
	}
	return true
}

// CompleteJob marks the job completed with result and publishes the terminal
// completion event. Repeated terminal calls are ignored and return false.
func (s *Store) CompleteJob(id string, result any) bool {
	return s.finish(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.Result = result
	}, func(l Listener) func(Job) { return l.OnComplete })
}

// FailJob marks the job failed with err's message. The failure is always
// recorded; the error event reaches whichever subscribers are attached.
func (s *Store) FailJob(id string, err error) bool {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return s.finish(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = msg
	}, func(l Listener) func(Job) { return l.OnError })
}

func (s *Store) finish(id string, apply func(*Job), pick func(Listener) func(Job)) bool {
	e := s.lookup(id)
	if e == nil {
		return false
	}
	e.deliver.Lock()
	defer e.deliver.Unlock()

	s.mu.Lock()
	if e.job.Status.Terminal() {
		s.mu.Unlock()
		s.logger.Debug("ignoring duplicate terminal call", "job_id", id)
		return false
	}
	apply(&e.job)
	now := s.now()
	e.job.UpdatedAt = now
	e.job.CompletedAt = &now
	snap, listeners := e.job, e.snapshotListeners()
	// Nothing is published after a terminal event.
	e.listeners = make(map[uint64]Listener)
	s.mu.Unlock()

	if snap.Status == StatusFailed {
		s.logger.Warn("job failed", "job_id", id, "error", snap.Error)
	} else {
		s.logger.Info("job completed", "job_id", id)
	}
	for _, l := range listeners {
		if fn := pick(l); fn != nil {
			fn(snap)
		}
	}
	return true
}

// Subscribe attaches l to the job and returns the current snapshot together
// with a function that detaches l. The snapshot reflects every event that l
// will not receive. ok is false when the job does not exist; subscribing to
// a terminal job returns its final snapshot and attaches nothing.
func (s *Store) Subscribe(id string, l Listener) (snapshot Job, unsubscribe func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.jobs[id]
	if !found {
		return Job{}, func() {}, false
	}
	if e.job.Status.Terminal() {
		return e.job, func() {}, true
	}
	s.nextSub++
	key := s.nextSub
	e.listeners[key] = l

	var once sync.Once
	return e.job, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(e.listeners, key)
			s.mu.Unlock()
		})
	}, true
}

// Stats counts jobs by status.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Total: len(s.jobs), Users: len(s.byUser)}
	for _, e := range s.jobs {
		switch e.job.Status {
		case StatusPending:
			st.Pending++
		case StatusRunning:
			st.Running++
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}

// Shutdown stops the reaper and detaches every subscriber. Jobs stay
// queryable. Safe to call more than once.
func (s *Store) Shutdown() {
	s.shutdown.Do(func() {
		close(s.done)
		s.mu.Lock()
		for _, e := range s.jobs {
			e.listeners = make(map[uint64]Listener)
		}
		s.mu.Unlock()
	})
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// snapshotListeners copies the listener set; callers hold s.mu.
func (e *entry) snapshotListeners() []Listener {
	if len(e.listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		out = append(out, l)
	}
	return out
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
