// Package redisstore is a Redis-backed orderservice.Repository.
//
// Everything for one store lives under a key prefix derived from its
// session name:
//
//	papapizza:<session>:current    hash, field "order" holds the JSON lines
//	papapizza:<session>:order_seq  INCR counter for order ids
//	papapizza:<session>:orders     list of JSON-encoded placed orders
//
// The current order is rewritten with WATCH/MULTI so concurrent writers
// never lose an update.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/roach88/papapizza/internal/order"
	"github.com/roach88/papapizza/internal/orderservice"
)

// DefaultSession is the session name used when none is configured.
const DefaultSession = "default"

const (
	currentField = "order"
	maxTxRetries = 10
)

var _ orderservice.Repository = (*Store)(nil)

// Store implements orderservice.Repository on Redis.
type Store struct {
	client  *redis.Client
	session string

	initAttempts int
	maxBackoff   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithSession sets the session name that namespaces every key.
func WithSession(name string) Option {
	return func(s *Store) { s.session = name }
}

// WithInitRetry bounds Initialize: at most attempts pings, sleeping with
// exponential backoff capped at maxBackoff between them.
func WithInitRetry(attempts int, maxBackoff time.Duration) Option {
	return func(s *Store) {
		s.initAttempts = attempts
		s.maxBackoff = maxBackoff
	}
}

// New creates a store for addr, which is either a redis:// URL or a plain
// host:port. It does not connect; call Initialize.
func New(addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	ropts, err := redis.ParseURL(addr)
	if err != nil {
		// Not a redis:// URL; use it as a plain address.
		ropts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	s := &Store{
		client:       redis.NewClient(ropts),
		session:      DefaultSession,
		initAttempts: 10,
		maxBackoff:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == "" {
		s.client.Close()
		return nil, errors.New("redis session name is empty")
	}
	return s, nil
}

// Session returns the session name.
func (s *Store) Session() string {
	return s.session
}

// Initialize pings Redis until it answers, backing off exponentially.
func (s *Store) Initialize(ctx context.Context) error {
	backoff := 100 * time.Millisecond
	var err error
	for attempt := 1; attempt <= s.initAttempts; attempt++ {
		if err = s.Ping(ctx); err == nil {
			slog.Info("redis store ready", "addr", s.client.Options().Addr, "session", s.session, "attempt", attempt)
			return nil
		}
		if attempt == s.initAttempts {
			break
		}
		slog.Warn("redis ping failed", "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
	return fmt.Errorf("connect to redis after %d attempts: %w", s.initAttempts, err)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Ping(pingCtx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(name string) string {
	return "papapizza:" + s.session + ":" + name
}

// CurrentItems returns the open order's lines in insertion order.
func (s *Store) CurrentItems(ctx context.Context) ([]orderservice.LineQty, error) {
	lines, err := readCurrent(ctx, s.client, s.key("current"))
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// SetItem inserts or updates a line. An existing line keeps its position.
func (s *Store) SetItem(ctx context.Context, itemID string, qty int) error {
	return s.updateCurrent(ctx, func(lines []orderservice.LineQty) []orderservice.LineQty {
		for i := range lines {
			if lines[i].ItemID == itemID {
				lines[i].Qty = qty
				return lines
			}
		}
		return append(lines, orderservice.LineQty{ItemID: itemID, Qty: qty})
	})
}

// RemoveItem deletes a line; a missing line is not an error.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	return s.updateCurrent(ctx, func(lines []orderservice.LineQty) []orderservice.LineQty {
		out := lines[:0]
		for _, l := range lines {
			if l.ItemID != itemID {
				out = append(out, l)
			}
		}
		return out
	})
}

// ClearCurrent deletes every open line.
func (s *Store) ClearCurrent(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key("current")).Err(); err != nil {
		return fmt.Errorf("clear current order: %w", err)
	}
	return nil
}

// PlaceOrder allocates the next order id, appends the order and clears the
// open order. The append and the clear run in one MULTI; an id whose MULTI
// fails is never reused.
func (s *Store) PlaceOrder(ctx context.Context, p order.PlacedOrder) (int64, error) {
	id, err := s.client.Incr(ctx, s.key("order_seq")).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate order id: %w", err)
	}
	p.ID = id
	p.Timestamp = p.Timestamp.UTC()
	data, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encode order %d: %w", id, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key("orders"), data)
		pipe.Del(ctx, s.key("current"))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store order %d: %w", id, err)
	}
	return id, nil
}

// Orders returns every committed order, oldest first.
func (s *Store) Orders(ctx context.Context) ([]order.PlacedOrder, error) {
	raw, err := s.client.LRange(ctx, s.key("orders"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]order.PlacedOrder, 0, len(raw))
	for i, r := range raw {
		var p order.PlacedOrder
		if err := json.Unmarshal([]byte(r), &p); err != nil {
			return nil, fmt.Errorf("decode order at index %d: %w", i, err)
		}
		if p.Items == nil {
			p.Items = []order.Item{}
		}
		orders = append(orders, p)
	}
	return orders, nil
}

// updateCurrent applies fn to the open order under WATCH, retrying when
// another writer got there first.
func (s *Store) updateCurrent(ctx context.Context, fn func([]orderservice.LineQty) []orderservice.LineQty) error {
	key := s.key("current")
	txf := func(tx *redis.Tx) error {
		lines, err := readCurrent(ctx, tx, key)
		if err != nil {
			return err
		}
		lines = fn(lines)
		data, err := json.Marshal(lines)
		if err != nil {
			return fmt.Errorf("encode current order: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, currentField, data)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			slog.Debug("current order changed concurrently, retrying", "attempt", i+1)
			continue
		}
		return fmt.Errorf("update current order: %w", err)
	}
	return fmt.Errorf("update current order: %w after %d attempts", redis.TxFailedErr, maxTxRetries)
}

// hgetter is satisfied by *redis.Client and *redis.Tx.
type hgetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func readCurrent(ctx context.Context, c hgetter, key string) ([]orderservice.LineQty, error) {
	val, err := c.HGet(ctx, key, currentField).Result()
	if errors.Is(err, redis.Nil) {
		return []orderservice.LineQty{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current order: %w", err)
	}
	lines := []orderservice.LineQty{}
	if err := json.Unmarshal([]byte(val), &lines); err != nil {
		return nil, fmt.Errorf("decode current order: %w", err)
	}
	return lines, nil
}
