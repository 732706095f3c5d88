package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrClaimed means another invocation currently holds the row.
var ErrClaimed = errors.New("row already claimed")

// Lease is held for the duration of one invocation's work on a row.
type Lease interface {
	Release(ctx context.Context) error
}

// Claimer hands out leases so two overlapping invocations do not act on the same row.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// NopClaimer grants every claim. Overlapping invocations may select the same row.
type NopClaimer struct{}

func (NopClaimer) Claim(context.Context, string, time.Duration) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Release(context.Context) error { return nil }

// RedisClaimer leases rows with SET NX PX and releases them only if the token still matches.
type RedisClaimer struct {
	client *redis.Client
	prefix string
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewRedisClaimer(client *redis.Client, prefix string) *RedisClaimer {
	if prefix == "" {
		prefix = "reelqueue:claim:"
	}
	return &RedisClaimer{client: client, prefix: prefix}
}

func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.New().String()
	full := c.prefix + key
	ok, err := c.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		return nil, ErrClaimed
	}
	return &redisLease{client: c.client, key: full, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// FileClaimer leases rows with flock files. It only protects invocations on one host.
type FileClaimer struct {
	dir string
}

func NewFileClaimer(dir string) (*FileClaimer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create claim dir: %w", err)
	}
	return &FileClaimer{dir: dir}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (c *FileClaimer) Claim(_ context.Context, key string, _ time.Duration) (Lease, error) {
	path := filepath.Join(c.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		return nil, ErrClaimed
	}
	return fileLease{lock: lock}, nil
}

type fileLease struct {
	lock *flock.Flock
}

func (l fileLease) Release(context.Context) error {
	return l.lock.Unlock()
}
