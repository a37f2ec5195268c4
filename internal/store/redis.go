package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rgehrsitz/finsight/internal/codec"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	docPrefix   = "finsight:doc:"
	eventPrefix = "finsight:events:"

	// maxUpdateAttempts bounds optimistic retries when a watched key
	// changes between read and EXEC.
	maxUpdateAttempts = 10
)

// ErrConflict is returned by Update when the document kept changing
// under every attempt.
var ErrConflict = errors.New("document changed concurrently")

// RedisStore is a Store that keeps documents as Redis strings and
// announces changes on a pub/sub channel per key.
type RedisStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, log *zap.Logger) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("module", "store"), zap.String("backend", "redis"))
	settings := gobreaker.Settings{
		Name:        "redis-store",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// A lost WATCH race is retried by Update and is not an outage.
			return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) ||
				errors.Is(err, redis.TxFailedErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &RedisStore{client: client, breaker: gobreaker.NewCircuitBreaker(settings), log: log}
}

// DialRedis connects to addr, retrying the initial ping with exponential
// backoff until it succeeds, ctx is done, or the attempts run out.
func DialRedis(ctx context.Context, addr string, log *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}, bo)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, log), nil
}

func docKey(key string) string     { return docPrefix + key }
func channelKey(key string) string { return eventPrefix + key }

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string, dst interface{}) error {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Get(ctx, docKey(key)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", key, err)
	}
	if err := codec.Unmarshal(out.([]byte), dst); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	return nil
}

// Put implements Store. The write and the notification are sent in one
// MULTI/EXEC so subscribers never see an event for an unwritten document.
func (r *RedisStore) Put(ctx context.Context, key string, value interface{}) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, docKey(key), data, 0)
		pipe.Publish(ctx, channelKey(key), data)
		return pipe.Exec(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return nil
}

// Update implements Store with WATCH/MULTI/EXEC. When another client
// writes the key between the read and EXEC the transaction is retried
// with a fresh copy of the document.
func (r *RedisStore) Update(ctx context.Context, key string, dst interface{}, fn func() error) error {
	var fnErr error
	txf := func(tx *redis.Tx) error {
		resetValue(dst)
		data, err := tx.Get(ctx, docKey(key)).Bytes()
		switch {
		case err == nil:
			if err := codec.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("failed to decode document %s: %w", key, err)
			}
		case errors.Is(err, redis.Nil):
		default:
			return err
		}
		if err := fn(); err != nil {
			fnErr = err
			return err
		}
		out, err := codec.Marshal(dst)
		if err != nil {
			return fmt.Errorf("failed to encode document %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey(key), out, 0)
			pipe.Publish(ctx, channelKey(key), out)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		_, err := r.breaker.Execute(func() (interface{}, error) {
			err := r.client.Watch(ctx, txf, docKey(key))
			if fnErr != nil {
				// Caller errors are not Redis failures.
				return nil, nil
			}
			return nil, err
		})
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			r.log.Debug("retrying update after concurrent write", zap.String("key", key), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update document %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrConflict, key, maxUpdateAttempts)
}

// Subscribe implements Store.
func (r *RedisStore) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	pubsub := r.client.Subscribe(ctx, channelKey(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	ch := make(chan Event, subscriptionBuffer)
	if data, err := r.client.Get(ctx, docKey(key)).Bytes(); err == nil {
		ch <- Event{Key: key, Data: data}
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warn("failed to read initial snapshot", zap.String("key", key), zap.Error(err))
	}

	go func() {
		defer close(ch)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case ch <- Event{Key: key, Data: []byte(msg.Payload)}:
				default:
					r.log.Warn("dropping change notification for slow subscriber", zap.String("key", key))
				}
			}
		}
	}()
	return ch, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.log.Error("failed to close Redis client", zap.Error(err))
		return err
	}
	return nil
}
