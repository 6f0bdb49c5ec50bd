// Package orglock serializes payment mutations per organizer.
package orglock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/commission-engine/pkg/errors"
)

const defaultWait = 5 * time.Second

// Unlock releases a held organizer lock. It is safe to call once.
type Unlock func()

// Locker grants exclusive access to one organizer's payment set.
type Locker interface {
	Lock(ctx context.Context, organizerID string) (Unlock, error)
}

var errEmptyOrganizer = errors.New("organizer id is required for locking")

// Local is an in-process Locker keyed by organizer id. Entries are reference
// counted so idle organizers do not accumulate.
type Local struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	wait    time.Duration
}

type localEntry struct {
	slot chan struct{}
	refs int
}

// NewLocal builds an in-process locker that gives up after wait.
func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = defaultWait
	}
	return &Local{entries: map[string]*localEntry{}, wait: wait}
}

func (l *Local) Lock(ctx context.Context, organizerID string) (Unlock, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, errEmptyOrganizer
	}

	entry := l.retain(organizerID)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	select {
	case entry.slot <- struct{}{}:
	case <-waitCtx.Done():
		l.release(organizerID, entry)
		return nil, busyError(organizerID, waitCtx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.release(organizerID, entry)
		})
	}, nil
}

func (l *Local) retain(organizerID string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[organizerID]
	if !ok {
		entry = &localEntry{slot: make(chan struct{}, 1)}
		l.entries[organizerID] = entry
	}
	entry.refs++
	return entry
}

func (l *Local) release(organizerID string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, organizerID)
	}
}

func busyError(organizerID string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "organizer has a mutation in flight, retry shortly").
		WithDetails(map[string]any{"organizerId": organizerID})
}

// WithLock runs fn while holding the organizer's lock.
func WithLock(ctx context.Context, locker Locker, organizerID string, fn func(context.Context) error) error {
	unlock, err := locker.Lock(ctx, organizerID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}
