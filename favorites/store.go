package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotLoaded means an identity is active but its persisted set could not
// be loaded. Mutations are refused rather than silently dropped; a retry
// goes through SetIdentity.
var ErrNotLoaded = errors.New("favorites not loaded for the active user")

// State tracks where the store is in the identity lifecycle
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unauthenticated"
	}
}

// Identity is the authenticated-user view this store cares about. It is
// supplied by the auth collaborator; only UserID partitions favorites.
type Identity struct {
	UserID      string
	DisplayName string
}

// Storage is the persistence collaborator: a string-keyed value store.
// A missing key is (nil, false, nil), not an error.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Subscriber is notified synchronously with a snapshot after every change
type Subscriber func(ids []ID)

// Store holds the in-memory favorite set for the active identity and keeps
// it consistent with the persistence layer. Persisted data is partitioned
// by user id and is never deleted here; sign-out only clears memory.
type Store struct {
	storage Storage
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	userID  string
	ids     map[ID]struct{}
	subs    map[int]Subscriber
	nextSub int
}

func NewStore(storage Storage, log zerolog.Logger) *Store {
	return &Store{
		storage: storage,
		log:     log,
		ids:     make(map[ID]struct{}),
		subs:    make(map[int]Subscriber),
	}
}

// StorageKey is the persistence key for a user's favorites
func StorageKey(userID string) string {
	return "favorites_" + userID
}

// SetIdentity reacts to a sign-in or sign-out. A present identity loads
// that user's persisted set, replacing whatever was in memory; nil clears
// the in-memory set and leaves storage untouched.
func (s *Store) SetIdentity(ctx context.Context, ident *Identity) error {
	if ident == nil {
		s.mu.Lock()
		s.state = StateUnauthenticated
		s.userID = ""
		s.ids = make(map[ID]struct{})
		s.mu.Unlock()
		s.notify()
		return nil
	}

	s.mu.Lock()
	s.state = StateLoading
	s.userID = ident.UserID
	s.ids = make(map[ID]struct{})
	s.mu.Unlock()

	data, ok, err := s.storage.Get(ctx, StorageKey(ident.UserID))
	if err != nil {
		return fmt.Errorf("load favorites for %s: %w", ident.UserID, err)
	}

	loaded := make(map[ID]struct{})
	if ok {
		ids, err := DecodeIDs(data)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", ident.UserID).Msg("discarding unreadable favorites payload")
		} else {
			for _, id := range ids {
				loaded[id] = struct{}{}
			}
		}
	}

	s.mu.Lock()
	if s.userID != ident.UserID {
		// identity changed while loading; the newer transition wins
		s.mu.Unlock()
		return nil
	}
	s.ids = loaded
	s.state = StateReady
	s.mu.Unlock()
	s.notify()
	return nil
}

// Add inserts id into the active user's favorites. It is a no-op without
// an active identity or when the id is already present, and returns
// ErrNotLoaded when the identity's set never finished loading. The set is
// persisted before memory is mutated, so a failed write leaves both layers
// at their pre-call state.
func (s *Store) Add(ctx context.Context, id ID) error {
	id = CanonicalID(string(id))

	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.ids[id]; ok {
		s.mu.Unlock()
		return nil
	}
	userID := s.userID
	next := make([]ID, 0, len(s.ids)+1)
	for existing := range s.ids {
		next = append(next, existing)
	}
	next = append(next, id)
	s.mu.Unlock()

	data, err := encodeIDs(next)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.storage.Set(ctx, StorageKey(userID), data); err != nil {
		return fmt.Errorf("persist favorites for %s: %w", userID, err)
	}

	s.mu.Lock()
	if s.state == StateReady && s.userID == userID {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Remove deletes id from the active user's favorites; a no-op without an
// active identity or when the id is absent, ErrNotLoaded when the set
// never finished loading.
func (s *Store) Remove(ctx context.Context, id ID) error {
	id = CanonicalID(string(id))

	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.ids[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	userID := s.userID
	next := make([]ID, 0, len(s.ids)-1)
	for existing := range s.ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	s.mu.Unlock()

	data, err := encodeIDs(next)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.storage.Set(ctx, StorageKey(userID), data); err != nil {
		return fmt.Errorf("persist favorites for %s: %w", userID, err)
	}

	s.mu.Lock()
	if s.state == StateReady && s.userID == userID {
		delete(s.ids, id)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// IsFavorite reports membership for the active identity; always false
// when nobody is signed in.
func (s *Store) IsFavorite(id ID) bool {
	id = CanonicalID(string(id))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// List returns a sorted snapshot of the active user's favorites; empty
// when nobody is signed in.
func (s *Store) List() []ID {
	s.mu.Lock()
	ids := make([]ID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sortIDs(ids)
	return ids
}

// State returns the current lifecycle state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called synchronously with a snapshot after
// every change. The returned function cancels the subscription.
func (s *Store) Subscribe(fn Subscriber) (cancel func()) {
	s.mu.Lock()
	idx := s.nextSub
	s.nextSub++
	s.subs[idx] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, idx)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	ids := s.List()

	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ids)
	}
}
