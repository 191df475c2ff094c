package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// newID is a package-level var to allow test injection of deterministic ids.
var newID = uuid.NewString

// Config holds session store configuration.
type Config struct {
	// Path is the canonical location of the session table file.
	Path string
	// Capacity is the maximum number of live sessions. Creation past the
	// ceiling reaps expired sessions first, then fails with CapacityError.
	Capacity int
	// TTL is how long a session may stay idle before the reaper removes it.
	TTL time.Duration
	// ReapInterval is the cadence of the background reaper.
	ReapInterval time.Duration
}

// DefaultConfig returns the default store configuration, persisting under
// ~/.kat-planner/.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Path:         filepath.Join(home, ".kat-planner", "sessions.json"),
		Capacity:     100,
		TTL:          24 * time.Hour,
		ReapInterval: 5 * time.Minute,
	}
}

// Store is the durable keyed storage for session records. It owns the
// in-memory table and the backing file exclusively; all mutations are
// serialized through one mutex, and every create/update rewrites the whole
// table to a fresh file followed by an atomic rename, so a half-written
// file is never observable to a subsequent load.
type Store struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*Session
}

// Patch describes an update to a session. A nil field is left untouched.
// If Stage is set, the change is validated against the transition table
// before anything else is applied — an illegal transition rejects the
// entire patch.
type Patch struct {
	Stage *Stage
	// Revision must be set to take the document_review -> refining edge.
	Revision bool
	// Answers are merged into the session's answer map.
	Answers map[string]string
	// Artifacts are merged into the derived-artifact cache.
	Artifacts map[string]string
	// RemoveArtifacts drops cached artifacts, forcing regeneration.
	RemoveArtifacts []string
	Approval        *Approval
}

// NewStore creates a session store backed by cfg.Path and loads any
// existing table. Failure to create the storage directory is the one fatal
// condition: the store never silently runs memory-only while claiming to
// have persisted.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("session: store path is required")
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("session: capacity must be positive, got %d", cfg.Capacity)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create data dir: %w", err)
	}

	s := &Store{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	s.load()
	return s, nil
}

// load reads the session table from disk. A missing file is a fresh start.
// An unreadable or malformed file is logged and discarded — never fatal.
// Individually invalid records are skipped; the rest are recovered.
func (s *Store) load() {
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARNING: session store: reading %s: %v — starting with empty table", s.cfg.Path, err)
		}
		return
	}

	var records []Session
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("WARNING: session store: %s is corrupt: %v — starting with empty table", s.cfg.Path, err)
		return
	}

	for i := range records {
		rec := records[i]
		if err := rec.Validate(); err != nil {
			log.Printf("WARNING: session store: skipping record: %v", err)
			continue
		}
		if _, dup := s.sessions[rec.ID]; dup {
			log.Printf("WARNING: session store: skipping duplicate record %q", rec.ID)
			continue
		}
		s.sessions[rec.ID] = &rec
	}
}

// Create allocates a new session in the questioning stage. At capacity it
// makes a best-effort reaping pass over expired sessions; if the table is
// still full the creation fails with a CapacityError — live sessions are
// never evicted.
func (s *Store) Create(subject string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.cfg.Capacity {
		s.reapLocked()
	}
	if len(s.sessions) >= s.cfg.Capacity {
		return nil, &CapacityError{Capacity: s.cfg.Capacity}
	}

	now := timeNow().UTC()
	sess := &Session{
		ID:             newID(),
		Stage:          StageQuestioning,
		Subject:        subject,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	s.sessions[sess.ID] = sess
	if err := s.persistLocked(); err != nil {
		delete(s.sessions, sess.ID)
		return nil, err
	}
	return sess.Clone(), nil
}

// Get fetches a session and touches its last-activity timestamp. Expiry is
// eager-only: a stale session is still returned until the reaper removes it.
// Persisting the touch is best-effort — a read never fails on disk trouble.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	s.touchLocked(sess)
	if err := s.persistLocked(); err != nil {
		log.Printf("WARNING: session store: persisting activity for %q: %v", id, err)
	}
	return sess.Clone(), nil
}

// Update applies a patch to a session. Any stage change it contains is
// validated first; an illegal transition rejects the whole patch with no
// partial writes. On success the table is durably persisted before the
// updated record is returned.
func (s *Store) Update(id string, patch Patch) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	if patch.Stage != nil {
		if err := CanTransition(current.Stage, *patch.Stage); err != nil {
			return nil, err
		}
		if RequiresRevision(current.Stage, *patch.Stage) && !patch.Revision {
			return nil, &InvalidTransitionError{From: current.Stage, To: *patch.Stage}
		}
	}

	// Apply to a copy, swap in only after a successful persist.
	updated := current.Clone()
	if patch.Stage != nil {
		updated.Stage = *patch.Stage
	}
	if len(patch.Answers) > 0 {
		if updated.Answers == nil {
			updated.Answers = make(map[string]string, len(patch.Answers))
		}
		for k, v := range patch.Answers {
			updated.Answers[k] = v
		}
	}
	if len(patch.Artifacts) > 0 {
		if updated.Artifacts == nil {
			updated.Artifacts = make(map[string]string, len(patch.Artifacts))
		}
		for k, v := range patch.Artifacts {
			updated.Artifacts[k] = v
		}
	}
	for _, key := range patch.RemoveArtifacts {
		delete(updated.Artifacts, key)
	}
	if patch.Approval != nil {
		a := *patch.Approval
		updated.Approval = &a
	}
	s.touchLocked(updated)

	s.sessions[id] = updated
	if err := s.persistLocked(); err != nil {
		s.sessions[id] = current
		return nil, err
	}
	return updated.Clone(), nil
}

// ReapExpired removes sessions idle longer than the TTL and returns how
// many were removed. It holds the store lock only for its own sweep.
func (s *Store) ReapExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reapLocked()
}

func (s *Store) reapLocked() int {
	cutoff := timeNow().UTC().Add(-s.cfg.TTL)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		if err := s.persistLocked(); err != nil {
			log.Printf("WARNING: session store: persisting after reap: %v", err)
		}
	}
	return removed
}

// StartReaper runs the expiry sweep on a fixed interval until ctx is
// cancelled. It is independent of any particular call.
func (s *Store) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.ReapExpired(); n > 0 {
					log.Printf("session store: reaped %d expired session(s)", n)
				}
			}
		}
	}()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sessions returns a snapshot of all live sessions, oldest first.
// The snapshot does not touch activity timestamps.
func (s *Store) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// touchLocked advances LastActivityAt, keeping it monotonic even if the
// clock steps backward.
func (s *Store) touchLocked(sess *Session) {
	now := timeNow().UTC()
	if now.After(sess.LastActivityAt) {
		sess.LastActivityAt = now
	}
}

// persistLocked writes the whole table to a fresh file and atomically
// renames it over the canonical path. Records are sorted so the file is
// stable across writes.
func (s *Store) persistLocked() error {
	records := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		records = append(records, sess)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshaling table: %w", err)
	}

	tmp := s.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		return fmt.Errorf("session: replacing %s: %w", s.cfg.Path, err)
	}
	return nil
}
