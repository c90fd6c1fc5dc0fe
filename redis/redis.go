// Package redis is the production TransactionStore. Records live under a
// single key per id; per-status sets and a per-user index make the poller
// and the user listing cheap. The status check-and-set runs under WATCH so
// two process instances cannot both win the same transition.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"goaetherbridge/config"
	"goaetherbridge/types"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

type Store struct {
	pool   *redis.Pool
	logger *logrus.Logger
}

var _ types.TransactionStore = (*Store)(nil)

func NewStore(host string, port int, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	redisAddr := fmt.Sprintf("%s:%d", host, port)
	return &Store{
		pool: &redis.Pool{
			MaxIdle: 5,
			Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", redisAddr, timeoutDialOptions()...) },
		},
		logger: logger,
	}
}

func recordKey(id string) string {
	return fmt.Sprintf("bridgetx:record:%s", id)
}

func userKey(userID string) string {
	return fmt.Sprintf("bridgetx:user:%s", userID)
}

func statusSet(status types.Status) (string, error) {
	set, ok := config.RedisStatusSets[status]
	if !ok {
		return "", errors.Errorf("no redis set for status %q", status)
	}
	return set, nil
}

func (s *Store) Insert(ctx context.Context, tx *types.BridgeTransaction) (*types.BridgeTransaction, error) {
	if tx == nil {
		return nil, errors.New("null object to store")
	}
	set, err := statusSet(tx.Status)
	if err != nil {
		return nil, err
	}

	stored := *tx
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	txJSON, err := json.Marshal(&stored)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal bridge transaction to JSON")
	}

	conn := s.pool.Get()
	defer conn.Close()

	created, err := redis.Int(conn.Do("SETNX", recordKey(stored.ID), txJSON))
	if err != nil {
		s.logger.WithError(err).Error("error Redis SETNX")
		return nil, err
	}
	if created == 0 {
		return nil, errors.Errorf("duplicate transaction id %s", stored.ID)
	}

	// index writes: record is already durable, these are idempotent
	if _, err := conn.Do("SADD", set, stored.ID); err != nil {
		s.logger.WithError(err).Error("error Redis SADD")
		return nil, err
	}
	if _, err := conn.Do("ZADD", userKey(stored.UserID), stored.TsCreated, stored.ID); err != nil {
		s.logger.WithError(err).Error("error Redis ZADD")
		return nil, err
	}

	out := stored
	return &out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*types.BridgeTransaction, error) {
	conn := s.pool.Get()
	defer conn.Close()

	return s.get(conn, id)
}

func (s *Store) get(conn redis.Conn, id string) (*types.BridgeTransaction, error) {
	raw, err := redis.Bytes(conn.Do("GET", recordKey(id)))
	if errors.Is(err, redis.ErrNil) {
		return nil, errors.Wrapf(types.ErrNotFound, "id %s", id)
	}
	if err != nil {
		s.logger.WithError(err).Error("error Redis GET")
		return nil, err
	}

	var tx types.BridgeTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal bridge transaction")
	}
	return &tx, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next types.Status, patch types.Metadata, mutate func(*types.BridgeTransaction)) (*types.BridgeTransaction, error) {
	if !expected.CanTransitionTo(next) {
		return nil, errors.Wrapf(types.ErrInvalidTransition, "%s -> %s", expected, next)
	}
	prevSet, err := statusSet(expected)
	if err != nil {
		return nil, err
	}
	nextSet, err := statusSet(next)
	if err != nil {
		return nil, err
	}

	conn := s.pool.Get()
	defer conn.Close()

	key := recordKey(id)

	if _, err := conn.Do("WATCH", key); err != nil {
		s.logger.WithError(err).Error("error Redis WATCH")
		return nil, err
	}

	tx, err := s.get(conn, id)
	if err != nil {
		conn.Do("UNWATCH")
		return nil, err
	}
	if tx.Status != expected {
		conn.Do("UNWATCH")
		return nil, errors.Wrapf(types.ErrConflict, "id %s is %s, expected %s", id, tx.Status, expected)
	}

	updated := *tx
	updated.Status = next
	updated.Metadata = updated.Metadata.Merge(patch)
	if mutate != nil {
		mutate(&updated)
	}

	txJSON, err := json.Marshal(&updated)
	if err != nil {
		conn.Do("UNWATCH")
		return nil, errors.Wrap(err, "cannot marshal bridge transaction to JSON")
	}

	conn.Send("MULTI")
	conn.Send("SET", key, txJSON)
	conn.Send("SREM", prevSet, id)
	conn.Send("SADD", nextSet, id)

	reply, err := conn.Do("EXEC")
	if err != nil {
		s.logger.WithError(err).Error("error Redis EXEC")
		return nil, err
	}
	if reply == nil {
		// the watched key changed under us, a concurrent writer won
		return nil, errors.Wrapf(types.ErrConflict, "id %s mutated concurrently", id)
	}

	out := updated
	return &out, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*types.BridgeTransaction, error) {
	conn := s.pool.Get()
	defer conn.Close()

	ids, err := redis.Strings(conn.Do("ZREVRANGE", userKey(userID), 0, -1))
	if err != nil {
		s.logger.WithError(err).Error("error Redis ZREVRANGE")
		return nil, err
	}

	out := make([]*types.BridgeTransaction, 0, len(ids))
	for _, id := range ids {
		tx, err := s.get(conn, id)
		if errors.Is(err, types.ErrNotFound) {
			// index entry without a record should not happen, skip it
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) ListByStatus(ctx context.Context, status types.Status) ([]*types.BridgeTransaction, error) {
	return s.scanStatus(status, -1)
}

func (s *Store) FindOneByStatus(ctx context.Context, status types.Status) (*types.BridgeTransaction, error) {
	txs, err := s.scanStatus(status, 1)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return txs[0], nil
}

// scanStatus walks the status set with SSCAN. limit < 0 means no limit.
func (s *Store) scanStatus(status types.Status, limit int) ([]*types.BridgeTransaction, error) {
	set, err := statusSet(status)
	if err != nil {
		return nil, err
	}

	conn := s.pool.Get()
	defer conn.Close()

	txs := make([]*types.BridgeTransaction, 0)

	var cursor int64
	for {
		values, err := redis.Values(conn.Do("SSCAN", set, cursor))
		if err != nil {
			return nil, err
		}

		var ids []string
		if _, err := redis.Scan(values, &cursor, &ids); err != nil {
			return nil, err
		}

		for _, id := range ids {
			tx, err := s.get(conn, id)
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			// the set is eventually consistent with the record, re-check
			if tx.Status != status {
				continue
			}
			txs = append(txs, tx)
			if limit >= 0 && len(txs) >= limit {
				return txs, nil
			}
		}

		if cursor == 0 {
			break
		}
	}

	return txs, nil
}
