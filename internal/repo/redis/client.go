package redis

import (
	"errors"

	goredis "github.com/redis/go-redis/v9"
)

var errNilClient = errors.New("redis client is nil")

func NewClient(addr, password string, db int) *goredis.Client {
	if addr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
