package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
)

const (
	mirrorPrefix       = "mirror:"
	mirrorFieldRecord  = "record"
	mirrorFieldCredits = "credits"
)

var (
	ErrMirrorExhausted = errors.New("credits already exhausted")
	ErrMirrorMiss      = errors.New("mirror entry missing")
)

// The credit counter lives in its own hash field so the decrement can run
// server-side without re-encoding the record.
var decrementScript = goredis.NewScript(`
local credits = redis.call('HGET', KEYS[1], 'credits')
if not credits then
	return -2
end
credits = tonumber(credits)
if credits <= 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'credits', -1)
`)

// MirrorRepo keeps the last reconciled subscription record per user.
type MirrorRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewMirrorRepo(client *goredis.Client, ttl time.Duration) *MirrorRepo {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &MirrorRepo{client: client, ttl: ttl}
}

func (r *MirrorRepo) Get(ctx context.Context, userID string) (model.SubscriptionRecord, bool, error) {
	if r.client == nil {
		return model.SubscriptionRecord{}, false, errNilClient
	}
	if strings.TrimSpace(userID) == "" {
		return model.SubscriptionRecord{}, false, fmt.Errorf("user id is required")
	}

	values, err := r.client.HGetAll(ctx, mirrorKey(userID)).Result()
	if err != nil {
		return model.SubscriptionRecord{}, false, fmt.Errorf("get mirror hash: %w", err)
	}
	raw, ok := values[mirrorFieldRecord]
	if !ok {
		return model.SubscriptionRecord{}, false, nil
	}

	var rec model.SubscriptionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return model.SubscriptionRecord{}, false, fmt.Errorf("decode mirror record: %w", err)
	}
	if credits, ok := values[mirrorFieldCredits]; ok {
		n, err := strconv.Atoi(credits)
		if err != nil {
			return model.SubscriptionRecord{}, false, fmt.Errorf("parse mirror credits: %w", err)
		}
		rec.CreditsRemaining = n
	}
	return rec, true, nil
}

func (r *MirrorRepo) Set(ctx context.Context, rec model.SubscriptionRecord) error {
	if r.client == nil {
		return errNilClient
	}
	if strings.TrimSpace(rec.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode mirror record: %w", err)
	}

	key := mirrorKey(rec.UserID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		mirrorFieldRecord:  string(payload),
		mirrorFieldCredits: rec.CreditsRemaining,
	})
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set mirror record: %w", err)
	}
	return nil
}

// DecrementCredits lowers the cached counter by one and returns the new value.
// It returns ErrMirrorExhausted when the counter is already zero and leaves it
// untouched, and ErrMirrorMiss when there is no entry for the user.
func (r *MirrorRepo) DecrementCredits(ctx context.Context, userID string) (int, error) {
	if r.client == nil {
		return 0, errNilClient
	}

	res, err := decrementScript.Run(ctx, r.client, []string{mirrorKey(userID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("decrement mirror credits: %w", err)
	}
	switch res {
	case -2:
		return 0, ErrMirrorMiss
	case -1:
		return 0, ErrMirrorExhausted
	}
	return int(res), nil
}

func mirrorKey(userID string) string {
	return mirrorPrefix + strings.TrimSpace(userID)
}
