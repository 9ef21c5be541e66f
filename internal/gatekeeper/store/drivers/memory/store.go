// Package memory keeps gatekeeper state in process. It is only correct for
// a single-instance deployment; multi-instance setups use the sqlite or
// redis driver.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

type revocationEntry struct {
	expires time.Time
}

type counterEntry struct {
	counter   domain.AttemptCounter
	windowEnd time.Time
	expires   time.Time
}

type lockoutEntry struct {
	state   domain.LockoutState
	expires time.Time
}

type principalEntry struct {
	principal domain.Principal
	hash      string
}

type Store struct {
	now func() time.Time

	mu          sync.Mutex
	revocations map[string]revocationEntry
	counters    map[string]counterEntry
	lockouts    map[string]lockoutEntry

	pmu        sync.RWMutex
	principals map[string]principalEntry
	accounts   map[string]string // normalized account -> principal id
}

var (
	_ store.State      = (*Store)(nil)
	_ store.Principals = (*Store)(nil)
)

// New returns an empty store. now may be nil.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:         now,
		revocations: map[string]revocationEntry{},
		counters:    map[string]counterEntry{},
		lockouts:    map[string]lockoutEntry{},
		principals:  map[string]principalEntry{},
		accounts:    map[string]string{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) Blacklist(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, store.ErrInvalidTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.revocations[fingerprint]; ok && now.Before(e.expires) {
		return false, nil
	}
	s.revocations[fingerprint] = revocationEntry{expires: now.Add(ttl)}
	return true, nil
}

func (s *Store) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.revocations[fingerprint]
	return ok && now.Before(e.expires), nil
}

func (s *Store) Hit(ctx context.Context, key string, window, ttl time.Duration) (domain.AttemptCounter, error) {
	if window <= 0 || ttl <= 0 {
		return domain.AttemptCounter{}, store.ErrInvalidTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.counters[key]
	if !ok || !now.Before(e.windowEnd) || !now.Before(e.expires) {
		e = counterEntry{
			counter:   domain.AttemptCounter{Key: key, WindowStart: now},
			windowEnd: now.Add(window),
			expires:   now.Add(ttl),
		}
	}
	e.counter.Count++
	s.counters[key] = e
	return e.counter, nil
}

func (s *Store) Counter(ctx context.Context, key string) (domain.AttemptCounter, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.counters[key]
	if !ok || !now.Before(e.expires) {
		return domain.AttemptCounter{Key: key}, nil
	}
	return e.counter, nil
}

func (s *Store) RecordFailure(ctx context.Context, key string, ttl time.Duration) (domain.LockoutState, error) {
	if ttl <= 0 {
		return domain.LockoutState{}, store.ErrInvalidTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lockouts[key]
	if !ok || !now.Before(e.expires) {
		e = lockoutEntry{state: domain.LockoutState{Key: key}}
	}
	e.state.ConsecutiveFailures++
	e.state.LastFailureAt = now
	e.expires = now.Add(ttl)
	s.lockouts[key] = e
	return e.state, nil
}

func (s *Store) Lockout(ctx context.Context, key string) (domain.LockoutState, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lockouts[key]
	if !ok || !now.Before(e.expires) {
		return domain.LockoutState{Key: key}, nil
	}
	return e.state, nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.counters, key)
	delete(s.lockouts, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Sweep(ctx context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.revocations {
		if !now.Before(e.expires) {
			delete(s.revocations, k)
			n++
		}
	}
	for k, e := range s.counters {
		if !now.Before(e.expires) {
			delete(s.counters, k)
			n++
		}
	}
	for k, e := range s.lockouts {
		if !now.Before(e.expires) {
			delete(s.lockouts, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) GetPrincipal(ctx context.Context, id string) (domain.Principal, error) {
	s.pmu.RLock()
	defer s.pmu.RUnlock()

	e, ok := s.principals[id]
	if !ok {
		return domain.Principal{}, store.ErrNotFound
	}
	return clonePrincipal(e.principal), nil
}

func (s *Store) GetCredential(ctx context.Context, account string) (domain.Credential, error) {
	s.pmu.RLock()
	defer s.pmu.RUnlock()

	id, ok := s.accounts[domain.NormalizeAccount(account)]
	if !ok {
		return domain.Credential{}, store.ErrNotFound
	}
	e := s.principals[id]
	return domain.Credential{
		PrincipalID:  id,
		Account:      e.principal.Account,
		PasswordHash: e.hash,
	}, nil
}

func (s *Store) CreatePrincipal(ctx context.Context, p domain.Principal, passwordHash string) error {
	account := domain.NormalizeAccount(p.Account)

	s.pmu.Lock()
	defer s.pmu.Unlock()

	if _, ok := s.principals[p.ID]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := s.accounts[account]; ok {
		return store.ErrAlreadyExists
	}
	p.Account = account
	s.principals[p.ID] = principalEntry{principal: clonePrincipal(p), hash: passwordHash}
	s.accounts[account] = p.ID
	return nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	s.pmu.Lock()
	defer s.pmu.Unlock()

	e, ok := s.principals[id]
	if !ok {
		return store.ErrNotFound
	}
	e.principal.Active = active
	s.principals[id] = e
	return nil
}

func clonePrincipal(p domain.Principal) domain.Principal {
	p.Permissions = slices.Clone(p.Permissions)
	return p
}
