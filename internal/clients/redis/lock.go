package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/voxnote/voxnote-backend/internal/logger"
)

// MeetingLockService is the cross-process mutual exclusion primitive for
// meeting processing. One key per meeting, value is an owner token, TTL
// covers the worst-case stage duration; a crashed worker's lock simply
// expires and the queue's own redelivery picks the meeting back up.
type MeetingLockService interface {
	// Acquire returns ("", nil) without blocking when the lock is already held.
	Acquire(ctx context.Context, meetingID uuid.UUID, ttl time.Duration) (string, error)
	// Release is a no-op when token no longer owns the lock (TTL expiry may
	// have handed it to another worker in the meantime).
	Release(ctx context.Context, meetingID uuid.UUID, token string) error
	// Renew extends the TTL while token still owns the lock.
	Renew(ctx context.Context, meetingID uuid.UUID, token string, ttl time.Duration) error
	Close() error
}

type meetingLockService struct {
	log *logger.Logger
	rdb *goredis.Client
}

// releaseScript deletes the key only when the caller's token still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript re-arms the TTL only when the caller's token still owns it.
var renewScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

func NewMeetingLockService(log *logger.Logger) (MeetingLockService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &meetingLockService{
		log: log.With("service", "MeetingLockService"),
		rdb: rdb,
	}, nil
}

func LockKey(meetingID uuid.UUID) string {
	return fmt.Sprintf("lock:meeting:%s", meetingID)
}

func (s *meetingLockService) Acquire(ctx context.Context, meetingID uuid.UUID, ttl time.Duration) (string, error) {
	if s == nil || s.rdb == nil {
		return "", fmt.Errorf("meeting lock service not initialized")
	}
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, LockKey(meetingID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (s *meetingLockService) Release(ctx context.Context, meetingID uuid.UUID, token string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("meeting lock service not initialized")
	}
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, s.rdb, []string{LockKey(meetingID)}, token).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

func (s *meetingLockService) Renew(ctx context.Context, meetingID uuid.UUID, token string, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("meeting lock service not initialized")
	}
	if token == "" {
		return nil
	}
	if err := renewScript.Run(ctx, s.rdb, []string{LockKey(meetingID)}, token, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis renew: %w", err)
	}
	return nil
}

func (s *meetingLockService) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
