package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// proxyTokenHandoutsKey buffers how often each proxy account's token was handed out.
const proxyTokenHandoutsKey = "proxy_account:counters:api_calls"

// Sink persists drained increments, keyed by proxy account id.
type Sink interface {
	AddAPICallCounts(counts map[uint]int64) error
}

// Counter buffers per-proxy-account usage in a Redis hash and periodically
// moves it into the database.
type Counter struct {
	rdb  *redis.Client
	sink Sink
}

func New(rdb *redis.Client, sink Sink) *Counter {
	return &Counter{rdb: rdb, sink: sink}
}

// AddProxyAccountCall increments the pending counter of accountID.
func (c *Counter) AddProxyAccountCall(ctx context.Context, accountID uint) error {
	field := strconv.FormatUint(uint64(accountID), 10)
	return c.rdb.HIncrBy(ctx, proxyTokenHandoutsKey, field, 1).Err()
}

// Pending returns the not yet flushed count of accountID.
func (c *Counter) Pending(ctx context.Context, accountID uint) (int64, error) {
	field := strconv.FormatUint(uint64(accountID), 10)
	n, err := c.rdb.HGet(ctx, proxyTokenHandoutsKey, field).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Flush drains the hash and applies the increments. The hash is renamed to a
// temporary key first so increments arriving during the flush are kept.
func (c *Counter) Flush(ctx context.Context) error {
	tmpKey := fmt.Sprintf("%s:tmp:%d", proxyTokenHandoutsKey, time.Now().UnixNano())
	renamed, err := c.rdb.RenameNX(ctx, proxyTokenHandoutsKey, tmpKey).Result()
	if err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return err
	}
	if !renamed {
		return nil
	}
	defer c.rdb.Del(ctx, tmpKey)

	data, err := c.rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	counts := make(map[uint]int64, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		counts[uint(id)] = inc
	}
	if len(counts) == 0 {
		return nil
	}
	return c.sink.AddAPICallCounts(counts)
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such key")
}
