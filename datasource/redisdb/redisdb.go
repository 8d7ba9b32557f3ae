package redisdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisClient struct {
	client *redis.Client
	Name   string
}

var redisInstances sync.Map

func GetRedisClient(name string) (*RedisClient, error) {
	value, ok := redisInstances.Load(name)
	if !ok {
		return nil, fmt.Errorf("redis client not found, name:%s", name)
	}

	redisInstance, ok := value.(*RedisClient)
	if !ok {
		return nil, fmt.Errorf("redis client not found, name:%s", name)
	}

	return redisInstance, nil
}

func RegisterRedisClient(name, addr, password string, db int) error {
	if _, ok := redisInstances.Load(name); ok {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("register redis client error, name=%s, err=%v", name, err)
	}

	redisInstances.Store(name, &RedisClient{client: client, Name: name})
	return nil
}

func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

func RemoveRedisClient(name string) {
	value, ok := redisInstances.Load(name)
	if !ok {
		return
	}
	r, ok := value.(*RedisClient)
	if !ok {
		return
	}

	if r.client != nil {
		r.client.Close()
	}

	redisInstances.Delete(name)
}
