// Package paste owns the authoritative in-memory paste collection and its
// lifecycle. Every mutation is mirrored to the durable index so both sides
// never diverge across a restart.
package paste

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/mdouchement/pastry/internal/database"
	"github.com/mdouchement/pastry/internal/model"
	"github.com/mdouchement/pastry/internal/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrPasteNotFound is returned when no alive paste matches the given id.
var ErrPasteNotFound = errors.New("paste not found")

// A Store is the authoritative collection of pastes. A single coarse lock
// serializes all accesses; backend byte I/O is never performed while holding
// it, so delete is a two-phase operation with a small documented race window
// between the byte deletion and the row removal.
type Store struct {
	mu     sync.Mutex
	pastes []*model.Paste
	issued map[uint64]struct{}

	db      database.Client
	backend storage.Backend
	gcDays  uint64
}

// NewStore loads the durable index into memory and returns the store.
func NewStore(db database.Client, backend storage.Backend, gcDays uint64) (*Store, error) {
	pastes, err := db.FindAllPastes()
	if err != nil {
		return nil, errors.Wrap(err, "could not load pastes")
	}

	return &Store{
		pastes:  pastes,
		issued:  make(map[uint64]struct{}),
		db:      db,
		backend: backend,
		gcDays:  gcDays,
	}, nil
}

// AllocateID reserves a fresh random id, distinct from every stored paste
// and from ids issued to in-flight creations. Callers must either Insert a
// paste carrying it or Release it.
func (s *Store) AllocateID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, errors.Wrap(err, "could not generate id")
		}
		id := binary.BigEndian.Uint64(buf[:])

		if _, taken := s.issued[id]; taken || s.findLocked(id) != nil {
			continue
		}
		s.issued[id] = struct{}{}
		return id, nil
	}
}

// Release returns an unused id reservation, after a failed creation.
func (s *Store) Release(id uint64) {
	s.mu.Lock()
	delete(s.issued, id)
	s.mu.Unlock()
}

// Insert commits a fully populated paste: collection and durable index
// together, or neither.
func (s *Store) Insert(p *model.Paste) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.issued, p.ID)
	if s.findLocked(p.ID) != nil {
		return errors.Errorf("paste %d already exists", p.ID)
	}

	if err := s.db.SavePaste(p); err != nil {
		return errors.Wrap(err, "could not index paste")
	}
	s.pastes = append(s.pastes, p)
	return nil
}

// Find runs the eviction sweep then returns a snapshot of the paste with
// the given id.
func (s *Store) Find(id uint64) (*model.Paste, bool) {
	s.mu.Lock()
	victims := s.sweepLocked(time.Now().Unix())
	p := s.findLocked(id)
	var snapshot *model.Paste
	if p != nil {
		snapshot = clone(p)
	}
	s.mu.Unlock()

	s.reap(victims)
	return snapshot, snapshot != nil
}

// List runs the eviction sweep then returns a snapshot of the collection.
func (s *Store) List() []*model.Paste {
	s.mu.Lock()
	victims := s.sweepLocked(time.Now().Unix())
	pastes := make([]*model.Paste, 0, len(s.pastes))
	for _, p := range s.pastes {
		pastes = append(pastes, clone(p))
	}
	s.mu.Unlock()

	s.reap(victims)
	return pastes
}

// Size returns the number of alive pastes.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pastes)
}

// Touch records a successful read. It is the only mutation a paste sees
// after creation.
func (s *Store) Touch(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(id)
	if p == nil {
		return ErrPasteNotFound
	}

	p.ReadCount++
	p.LastRead = time.Now().Unix()
	return errors.Wrap(s.db.SavePaste(p), "could not index read")
}

// Remove deletes the paste, its backing bytes and its index row. Byte
// deletion happens outside the lock; a concurrent operation on the same id
// during that gap is an accepted hazard.
func (s *Store) Remove(ctx context.Context, id uint64) error {
	s.mu.Lock()
	p := s.findLocked(id)
	if p == nil {
		s.mu.Unlock()
		return ErrPasteNotFound
	}
	job, hasFile := reapJobOf(p)
	s.mu.Unlock()

	if hasFile {
		if err := s.backend.Delete(ctx, job.slug, job.locator); err != nil {
			// An orphaned physical file is recoverable, a dangling index row
			// is not. Keep going.
			logrus.WithError(err).Errorf("could not delete file of paste %d", id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	return errors.Wrap(s.db.DeletePaste(id), "could not delete paste row")
}

// Sweep removes every evictable paste, its index row and its backing bytes.
// It normally piggybacks on lookups but can be triggered on its own.
func (s *Store) Sweep() {
	s.mu.Lock()
	victims := s.sweepLocked(time.Now().Unix())
	s.mu.Unlock()

	s.reap(victims)
}

func (s *Store) findLocked(id uint64) *model.Paste {
	for _, p := range s.pastes {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Store) removeLocked(id uint64) {
	for i, p := range s.pastes {
		if p.ID == id {
			s.pastes = append(s.pastes[:i], s.pastes[i+1:]...)
			return
		}
	}
}

func clone(p *model.Paste) *model.Paste {
	snapshot := *p
	if p.File != nil {
		file := *p.File
		snapshot.File = &file
	}
	return &snapshot
}
