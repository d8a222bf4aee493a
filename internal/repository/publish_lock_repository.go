package repository

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/crosspost/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const publishLockPrefix = "crosspost:publish:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PublishLockRepository holds per-post publish leases so that two runs never
// publish the same post at once.
type PublishLockRepository interface {
	// Acquire returns a release func and true when the lease was taken, or
	// false when another run holds it.
	Acquire(ctx context.Context, postID string, ttl time.Duration) (func(), bool, error)
}

type publishLockRepository struct {
	client *redis.Client
}

func NewPublishLockRepository(client *redis.Client) PublishLockRepository {
	return &publishLockRepository{client: client}
}

func (r *publishLockRepository) Acquire(ctx context.Context, postID string, ttl time.Duration) (func(), bool, error) {
	token, err := utils.GenerateRandomKey(16)
	if err != nil {
		return nil, false, err
	}

	key := publishLockPrefix + postID
	err = r.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	release := func() {
		// The lease must be released even when the publish ctx is done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
	}
	return release, true, nil
}
