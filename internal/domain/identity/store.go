package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/syndtr/goleveldb/leveldb"
)

// StorageKey is the single namespaced key holding the JSON array of users.
const StorageKey = "vitalguard_demo_users"

// Store persists the whole user list as one JSON document.
type Store interface {
	Load(ctx context.Context) ([]*User, error)
	Save(ctx context.Context, users []*User) error
	Close() error
}

func decode(raw []byte) ([]*User, error) {
	if len(raw) == 0 {
		return []*User{}, nil
	}
	var users []*User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", StorageKey, err)
	}
	return users, nil
}

// -- memory --

type memoryStore struct {
	mu  sync.RWMutex
	raw []byte
}

func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decode(s.raw)
}

func (s *memoryStore) Save(_ context.Context, users []*User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error { return nil }

// -- leveldb --

type levelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (or creates) an embedded store at path.
func OpenLevelDBStore(path string) (Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &levelDBStore{db: db}, nil
}

func (s *levelDBStore) Load(_ context.Context) ([]*User, error) {
	raw, err := s.db.Get([]byte(StorageKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return []*User{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *levelDBStore) Save(_ context.Context, users []*User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(StorageKey), raw, nil)
}

func (s *levelDBStore) Close() error { return s.db.Close() }

// -- redis --

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type redisStore struct {
	client *redis.Client
}

// OpenRedisStore connects to redis and checks the connection before
// returning the store.
func OpenRedisStore(ctx context.Context, cfg RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) Load(ctx context.Context) ([]*User, error) {
	raw, err := s.client.Get(ctx, StorageKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*User{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *redisStore) Save(ctx context.Context, users []*User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, StorageKey, raw, 0).Err()
}

func (s *redisStore) Close() error { return s.client.Close() }
