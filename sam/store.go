package sam

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmbeddingStore Embedding 缓存, 键为图片摘要
type EmbeddingStore interface {
	// Get 未命中时返回 (nil, false, nil)
	Get(ctx context.Context, key string) (*Embedding, bool, error)
	Put(ctx context.Context, key string, emb *Embedding) error
}

// MemoryStore 进程内缓存, 超过容量时淘汰最早写入的条目
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*Embedding
	order    []string
}

// NewMemoryStore capacity <= 0 时默认 8
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 8
	}
	return &MemoryStore{capacity: capacity, items: make(map[string]*Embedding)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Embedding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emb, ok := s.items[key]
	return emb, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, emb *Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		s.order = append(s.order, key)
	}
	s.items[key] = emb
	for len(s.order) > s.capacity {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Len 当前条目数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// RedisStore 跨进程共享的 Embedding 缓存
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 缓存
//
// # Params:
//
//	client: redis 客户端
//	ttl: 过期时间, 0 表示不过期
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "sam:embedding:", ttl: ttl}
}

// Ping 检查连接
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Embedding, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, err
	}

	var emb Embedding
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&emb); err != nil {
		return nil, false, err
	}
	return &emb, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, emb *Embedding) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(emb); err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, buf.Bytes(), s.ttl).Err()
}

// Close 关闭客户端
func (s *RedisStore) Close() error {
	return s.client.Close()
}
