package jobs

import (
	"context"
	"time"
)

// RunReaper deletes expired terminal jobs every reap interval until ctx is
// cancelled or Shutdown is called.
func (s *Store) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.Reap(); n > 0 {
				s.logger.Info("reaped finished jobs", "count", n)
			}
		}
	}
}

// Reap runs one cleanup pass: completed or failed jobs whose CompletedAt is
// older than the retention window are removed, along with empty per-user
// index entries. It returns the number of jobs removed.
func (s *Store) Reap() int {
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.jobs {
		j := e.job
		if !j.Status.Terminal() || j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
			continue
		}
		delete(s.jobs, id)
		removed++
	}
	if removed == 0 {
		return 0
	}

	for user, ids := range s.byUser {
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := s.jobs[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(s.byUser, user)
		} else {
			s.byUser[user] = kept
		}
	}
	return removed
}
