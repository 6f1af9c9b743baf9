package cache

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
)

// Fiber storages live in their own databases so Reset never touches cache keys.
const (
	StateStorageDB   = 1
	LimiterStorageDB = 2
)

// NewStorage returns a fiber.Storage on the same Redis server as rdb, using database db.
func NewStorage(rdb *redis.Client, db int) fiber.Storage {
	host := "localhost"
	port := 6379
	opts := rdb.Options()
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: db,
		Reset:    false,
	})
}
