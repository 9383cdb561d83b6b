package paste

import (
	"context"

	"github.com/mdouchement/pastry/internal/model"
	"github.com/mdouchement/pastry/internal/storage"
	"github.com/sirupsen/logrus"
)

// A reapJob designates backing bytes to reclaim once the store lock is
// released.
type reapJob struct {
	slug    string
	locator storage.Locator
}

// sweepLocked drops every evictable paste from the collection and the
// durable index, and returns the byte-reclaim jobs to run outside the lock.
// Index consistency wins over byte cleanup: a failed index delete is logged
// and the paste is evicted from memory anyway.
func (s *Store) sweepLocked(now int64) []reapJob {
	var jobs []reapJob

	kept := s.pastes[:0]
	for _, p := range s.pastes {
		if !p.Evictable(now, s.gcDays) {
			kept = append(kept, p)
			continue
		}

		logrus.Debugf("evicting paste %d", p.ID)
		if err := s.db.DeletePaste(p.ID); err != nil {
			logrus.WithError(err).Errorf("could not delete index row of paste %d", p.ID)
		}
		if job, ok := reapJobOf(p); ok {
			jobs = append(jobs, job)
		}
	}
	s.pastes = kept

	return jobs
}

// reap reclaims backing bytes. Local files are deleted inline, object-store
// deletes are deferred to a goroutine so they never block the caller.
func (s *Store) reap(jobs []reapJob) {
	for _, job := range jobs {
		if job.locator.IsS3() || job.locator.IsS3Encrypted() {
			go func(job reapJob) {
				if err := s.backend.Delete(context.Background(), job.slug, job.locator); err != nil {
					logrus.WithError(err).Errorf("could not delete object of paste %s", job.slug)
				}
			}(job)
			continue
		}

		if err := s.backend.Delete(context.Background(), job.slug, job.locator); err != nil {
			logrus.WithError(err).Errorf("could not delete file of paste %s", job.slug)
		}
	}
}

func reapJobOf(p *model.Paste) (reapJob, bool) {
	if !p.HasFile() {
		return reapJob{}, false
	}

	locator, err := storage.Parse(p.File.Locator, p.Privacy.EncryptedAtRest())
	if err != nil {
		logrus.WithError(err).Errorf("unreadable locator on paste %d", p.ID)
		return reapJob{}, false
	}
	return reapJob{slug: p.Slug(), locator: locator}, true
}
