// Package state owns the claim engine's global state: configuration,
// balances, ingested data, derived points and per-account claim records.
//
// There is exactly one State per Store and one Store per engine. The Store
// replaces an ambient global with an explicit object:
//   - Initialize runs once per Store lifetime; a second call fails
//   - every access before initialization (or after Teardown) fails
//   - SnapshotForUpgrade / RestoreFromUpgrade move the whole state across an
//     upgrade as one blob, never partially
//
// Callers access the state through View and Update closures. The Store
// serializes them; Update closures must validate before they mutate so that
// a returned error leaves the state untouched.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/inter"
)

var (
	// ErrNotInitialized is returned by every access before Initialize or
	// RestoreFromUpgrade, and after Teardown.
	ErrNotInitialized = errors.New("state not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("already initialized")
	// ErrRestoreFailed wraps the decode error of a rejected upgrade blob.
	ErrRestoreFailed = errors.New("restore from upgrade failed")
)

// Store serializes access to the single State.
type Store struct {
	mu       sync.RWMutex
	st       *State
	initDone bool // latched by Initialize and RestoreFromUpgrade; never reset
	torn     bool
}

// NewStore returns an uninitialized store.
func NewStore() *Store {
	return &Store{}
}

// Initialize installs a fresh state with cfg and bootstrap as the sole admin.
func (s *Store) Initialize(cfg airdrop.Config, bootstrap inter.AccountID) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initDone {
		return ErrAlreadyInitialized
	}
	st := New()
	st.Config = cfg.Copy()
	st.Admins[bootstrap] = struct{}{}
	st.Window = cfg.Window()
	st.RecomputePoints()

	s.st = st
	s.initDone = true
	return nil
}

// Initialized reports whether the store holds a live state.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live()
}

// View runs fn with read access to the state. Views run concurrently with
// each other; fn must not modify st.
func (s *Store) View(fn func(st *State) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live() {
		return ErrNotInitialized
	}
	return fn(s.st)
}

// Update runs fn with write access to the state.
func (s *Store) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live() {
		return ErrNotInitialized
	}
	return fn(s.st)
}

// SnapshotForUpgrade serializes the entire state into one blob.
func (s *Store) SnapshotForUpgrade() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live() {
		return nil, ErrNotInitialized
	}
	return Encode(s.st)
}

// RestoreFromUpgrade replaces the state with the one encoded in blob. If the
// blob cannot be decoded the store is reset to a default (empty) state
// instead, so the upgrade itself still completes; the decode error is
// returned for reporting. Either way the store counts as initialized
// afterwards.
func (s *Store) RestoreFromUpgrade(blob []byte) error {
	restored, err := Decode(blob)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initDone = true
	s.torn = false
	if err != nil {
		s.st = New()
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	s.st = restored
	return nil
}

// Teardown returns a final snapshot and releases the state. The store stays
// unusable afterwards, except for RestoreFromUpgrade.
func (s *Store) Teardown() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live() {
		return nil, ErrNotInitialized
	}
	blob, err := Encode(s.st)
	if err != nil {
		return nil, err
	}
	s.st = nil
	s.torn = true
	return blob, nil
}

func (s *Store) live() bool {
	return s.initDone && !s.torn && s.st != nil
}
