package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const busyPrefix = "busy:"

type BusyRepo struct {
	client *goredis.Client
}

func NewBusyRepo(client *goredis.Client) *BusyRepo {
	return &BusyRepo{client: client}
}

// Acquire reports false when another request already holds the flag.
func (r *BusyRepo) Acquire(ctx context.Context, userID, action string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(action) == "" || ttl <= 0 {
		return false, fmt.Errorf("invalid busy flag payload")
	}

	ok, err := r.client.SetNX(ctx, busyKey(userID, action), time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire busy flag: %w", err)
	}
	return ok, nil
}

func (r *BusyRepo) Release(ctx context.Context, userID, action string) error {
	if r.client == nil {
		return errNilClient
	}
	if err := r.client.Del(ctx, busyKey(userID, action)).Err(); err != nil {
		return fmt.Errorf("release busy flag: %w", err)
	}
	return nil
}

func busyKey(userID, action string) string {
	return busyPrefix + action + ":" + userID
}
