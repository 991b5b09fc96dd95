package tokenstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Expired records are evicted lazily on
// lookup and in bulk by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]Record
	current map[string]string
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for expiry checks.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[string]Record),
		current: make(map[string]string),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores rec as the subject's active token.
func (s *MemoryStore) Record(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(rec, s.now()); err != nil {
		return err
	}
	s.put(rec)
	return nil
}

// IsValid reports whether tokenID is stored and unexpired, evicting it when
// it has lapsed.
func (s *MemoryStore) IsValid(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(tokenID)
	return ok, nil
}

// Rotate swaps oldTokenID for next under the store lock.
func (s *MemoryStore) Rotate(_ context.Context, oldTokenID string, next Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(next, s.now()); err != nil {
		return err
	}
	if oldTokenID == next.TokenID {
		return ErrRevoked
	}
	old, ok := s.live(oldTokenID)
	if !ok || old.Subject != next.Subject || s.current[old.Subject] != oldTokenID {
		return ErrRevoked
	}
	s.remove(old)
	s.put(next)
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[tokenID]; ok {
		s.remove(rec)
	}
	return nil
}

func (s *MemoryStore) RevokeAllForSubject(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.byID {
		if rec.Subject == subject {
			delete(s.byID, id)
		}
	}
	delete(s.current, subject)
	return nil
}

// RevokeFamily drops the subject's current token if family matches.
func (s *MemoryStore) RevokeFamily(_ context.Context, subject, family string) error {
	if family == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.current[subject]
	if !ok {
		return nil
	}
	if rec, ok := s.byID[id]; ok && rec.Family == family {
		s.remove(rec)
	}
	return nil
}

// Sweep drops expired records and reports how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, rec := range s.byID {
		if !now.Before(rec.ExpiresAt) {
			s.remove(rec)
			removed++
		}
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}

// Len reports the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// live must be called with mu held.
func (s *MemoryStore) live(tokenID string) (Record, bool) {
	rec, ok := s.byID[tokenID]
	if !ok {
		return Record{}, false
	}
	if !s.now().Before(rec.ExpiresAt) {
		s.remove(rec)
		return Record{}, false
	}
	return rec, true
}

func (s *MemoryStore) put(rec Record) {
	if prev, ok := s.current[rec.Subject]; ok && prev != rec.TokenID {
		delete(s.byID, prev)
	}
	s.byID[rec.TokenID] = rec
	s.current[rec.Subject] = rec.TokenID
}

func (s *MemoryStore) remove(rec Record) {
	delete(s.byID, rec.TokenID)
	if s.current[rec.Subject] == rec.TokenID {
		delete(s.current, rec.Subject)
	}
}
