package orglock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/commission-engine/pkg/logger"
)

const (
	lockScope       = "organizer"
	defaultLockTTL  = 30 * time.Second
	retryInterval   = 40 * time.Millisecond
	releaseDeadline = 2 * time.Second
)

// redisStore defines the operations used by Redis.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	LockKey(scope, id string) string
}

// Redis implements Locker across service instances with SET NX PX and an
// owner token; release only deletes the key while the token still matches.
type Redis struct {
	client redisStore
	ttl    time.Duration
	wait   time.Duration
	logg   *logger.Logger
}

// NewRedis constructs a Redis-backed organizer locker.
func NewRedis(client redisStore, ttl, wait time.Duration, logg *logger.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required for organizer lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultWait
	}
	return &Redis{client: client, ttl: ttl, wait: wait, logg: logg}, nil
}

func (r *Redis) Lock(ctx context.Context, organizerID string) (Unlock, error) {
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return nil, errEmptyOrganizer
	}
	key := r.client.LockKey(lockScope, organizerID)
	owner := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	for {
		ok, err := r.client.SetNX(waitCtx, key, owner, r.ttl)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, busyError(organizerID, waitCtx.Err())
			}
			return nil, fmt.Errorf("acquire organizer lock: %w", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(retryInterval + time.Duration(rand.Int63n(int64(retryInterval))))
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, busyError(organizerID, waitCtx.Err())
		case <-timer.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		relCtx, relCancel := context.WithTimeout(context.Background(), releaseDeadline)
		defer relCancel()
		if _, err := r.client.DelIfValue(relCtx, key, owner); err != nil && r.logg != nil {
			r.logg.Error(r.logg.WithOrganizerID(ctx, organizerID), "failed to release organizer lock", err)
		}
	}, nil
}
